package repositories

import (
	"github.com/Mishari713/BMS/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookRepository defines Book-related database operations. Lookups of a
// single book preload its owner.
type BookRepository interface {
	Create(book *models.Book) error
	FindByID(id uint) (*models.Book, error)
	FindByTitle(title string) (*models.Book, error)
	FindAllByAuthorName(authorName string) ([]models.Book, error)
	FindAll() ([]models.Book, error)
	ExistsByTitle(title string) (bool, error)
	Update(book *models.Book) error
	Delete(book *models.Book) error
}

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

// Create inserts the book without touching the owner row.
func (r *bookRepository) Create(book *models.Book) error {
	return r.db.Omit(clause.Associations).Create(book).Error
}

func (r *bookRepository) FindByID(id uint) (*models.Book, error) {
	var book models.Book
	if err := r.db.Preload("Owner").First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) FindByTitle(title string) (*models.Book, error) {
	var book models.Book
	if err := r.db.Preload("Owner").Where("title = ?", title).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) FindAllByAuthorName(authorName string) ([]models.Book, error) {
	var books []models.Book
	if err := r.db.Where("author_name = ?", authorName).Order("id").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) FindAll() ([]models.Book, error) {
	var books []models.Book
	if err := r.db.Order("id").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) ExistsByTitle(title string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Book{}).Where("title = ?", title).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update saves the book's own columns; the owner association is never written.
func (r *bookRepository) Update(book *models.Book) error {
	return r.db.Omit(clause.Associations).Save(book).Error
}

func (r *bookRepository) Delete(book *models.Book) error {
	return r.db.Delete(&models.Book{}, book.ID).Error
}
