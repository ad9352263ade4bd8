package models

import "time"

// Book is owned by exactly one user. The owner is never serialized.
type Book struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;uniqueIndex;not null" json:"title"`
	AuthorName  string    `gorm:"size:255;not null" json:"authorName"`
	Description string    `gorm:"type:text;not null" json:"description"`
	UserID      uint      `gorm:"not null;index" json:"-"`
	Owner       User      `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OwnerUsername is the username of the loaded owner, empty if the owner
// association was not preloaded.
func (b *Book) OwnerUsername() string {
	return b.Owner.Username
}
