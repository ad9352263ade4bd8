package models

import "time"

// AuthProvider records how an account authenticates.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "LOCAL"
	ProviderGoogle AuthProvider = "GOOGLE"
)

// OAuth2Password is stored instead of a hash for accounts created through an
// OAuth2 login. It never matches a bcrypt comparison.
const OAuth2Password = "OAUTH2"

const (
	MaxUsernameLen = 20
	MaxEmailLen    = 50
	MaxPasswordLen = 120

	// Bounds on a plain password as typed by the user.
	MinPlainPasswordLen = 6
	MaxPlainPasswordLen = 40
)

type User struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	Username     string       `gorm:"size:20;uniqueIndex;not null" json:"username"`
	Email        string       `gorm:"size:50;uniqueIndex;not null" json:"email"`
	PasswordHash string       `gorm:"column:password;size:120;not null" json:"-"` // Don't expose password hash
	Provider     AuthProvider `gorm:"size:20;not null;default:LOCAL" json:"provider"`
	Roles        []Role       `gorm:"many2many:user_roles;" json:"roles"`
	Books        []Book       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// RoleNames returns the names of the user's roles.
func (u *User) RoleNames() []RoleName {
	names := make([]RoleName, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

func (u *User) HasRole(name RoleName) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}
