package patch

import "github.com/Mishari713/BMS/models"

const maxBookTextLen = 255

var bookSchema = &Schema[models.Book]{
	Protected: map[string]func(models.Book) string{
		"id":       protectedID("Book", func(b models.Book) uint { return b.ID }),
		"user":     editingUser,
		"username": editingUser,
	},
	Fields: map[string]Setter[models.Book]{
		"title":       StringField("title", func(b *models.Book, v string) { b.Title = v }),
		"authorName":  StringField("authorName", func(b *models.Book, v string) { b.AuthorName = v }),
		"description": StringField("description", func(b *models.Book, v string) { b.Description = v }),
	},
	Restore: func(merged *models.Book, original models.Book) {
		merged.ID = original.ID
		merged.UserID = original.UserID
		merged.Owner = original.Owner
		merged.CreatedAt = original.CreatedAt
		merged.UpdatedAt = original.UpdatedAt
	},
	Validate: func(b *models.Book) error {
		if err := Required("title", b.Title, maxBookTextLen); err != nil {
			return err
		}
		if err := Required("authorName", b.AuthorName, maxBookTextLen); err != nil {
			return err
		}
		return Required("description", b.Description, 0)
	},
}

func editingUser(models.Book) string { return "Editing 'user' is not allowed" }

// MergeBook applies p to a copy of book. The owner can never change.
func MergeBook(book models.Book, p Patch) (models.Book, error) {
	return bookSchema.Merge(book, p)
}
