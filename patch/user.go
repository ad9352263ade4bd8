package patch

import (
	"strings"
	"unicode/utf8"

	"github.com/Mishari713/BMS/apperrors"
	"github.com/Mishari713/BMS/models"
)

var userSchema = &Schema[models.User]{
	Protected: map[string]func(models.User) string{
		"id": protectedID("User", func(u models.User) uint { return u.ID }),
	},
	Fields: map[string]Setter[models.User]{
		"username": StringField("username", func(u *models.User, v string) { u.Username = v }),
		"email":    StringField("email", func(u *models.User, v string) { u.Email = v }),
		"password": plainPassword,
		"roles": StringListField("roles", func(u *models.User, v []string) {
			names := models.MapRoleNames(v)
			u.Roles = make([]models.Role, 0, len(names))
			for _, n := range names {
				u.Roles = append(u.Roles, models.Role{Name: n})
			}
		}),
	},
	Clone: func(u models.User) models.User {
		u.Roles = append([]models.Role(nil), u.Roles...)
		return u
	},
	Restore: func(merged *models.User, original models.User) {
		merged.ID = original.ID
		merged.Provider = original.Provider
		merged.Books = original.Books
		merged.CreatedAt = original.CreatedAt
		merged.UpdatedAt = original.UpdatedAt
	},
	Validate: func(u *models.User) error {
		if err := Required("username", u.Username, models.MaxUsernameLen); err != nil {
			return err
		}
		if err := Required("email", u.Email, models.MaxEmailLen); err != nil {
			return err
		}
		if !strings.Contains(u.Email, "@") {
			return apperrors.BadRequest("Field 'email' must be a well-formed email address")
		}
		return Required("password", u.PasswordHash, models.MaxPasswordLen)
	},
}

// plainPassword holds the new password in PasswordHash until the caller
// hashes it. It follows the signup length rule.
func plainPassword(u *models.User, value any) error {
	v, ok := value.(string)
	if !ok {
		return apperrors.BadRequest("Field 'password' must be a string")
	}
	n := utf8.RuneCountInString(strings.TrimSpace(v))
	if n == 0 {
		return apperrors.BadRequest("Field 'password' must not be blank")
	}
	if n < models.MinPlainPasswordLen || n > models.MaxPlainPasswordLen {
		return apperrors.BadRequest("Field 'password' size must be between %d and %d",
			models.MinPlainPasswordLen, models.MaxPlainPasswordLen)
	}
	u.PasswordHash = v
	return nil
}

// MergeUser applies p to a copy of user. When p carries "password" the
// returned PasswordHash holds the plain value and must be hashed before
// saving; patched roles carry names only and must be resolved to stored roles.
func MergeUser(user models.User, p Patch) (models.User, error) {
	return userSchema.Merge(user, p)
}
