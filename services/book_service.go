package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Mishari713/BMS/apperrors"
	"github.com/Mishari713/BMS/models"
	"github.com/Mishari713/BMS/openlibrary"
	"github.com/Mishari713/BMS/patch"
	"github.com/Mishari713/BMS/policy"
	"github.com/Mishari713/BMS/repositories"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type BookService interface {
	Create(input *BookRequest) (*models.Book, error)
	FindByID(id uint) (*models.Book, error)
	FindAll() ([]models.Book, error)
	FindAllByAuthorName(author string) ([]models.Book, error)
	FindByTitle(title string) (*models.Book, error)
	Update(principal policy.Principal, id uint, p patch.Patch) (*models.Book, error)
	Delete(principal policy.Principal, id uint) error
	FindInOpenLibrary(ctx context.Context, name string) (openlibrary.BookInfo, error)
}

// BookLookup finds book metadata in an external catalogue.
type BookLookup interface {
	FindByName(ctx context.Context, name string) (openlibrary.BookInfo, error)
}

type BookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Username    string `json:"username" description:"owner of the new book"`
}

func (r *BookRequest) Validate() error {
	fields := []struct{ name, value string }{
		{"title", r.Title},
		{"author", r.Author},
		{"description", r.Description},
		{"username", r.Username},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return apperrors.BadRequest("Field '%s' must not be blank", f.name)
		}
	}
	return nil
}

type bookService struct {
	repo    repositories.BookRepository
	users   UserService
	catalog BookLookup
	log     *zap.SugaredLogger
}

var _ BookService = (*bookService)(nil)

func NewBookService(repo repositories.BookRepository, users UserService, catalog BookLookup, log *zap.Logger) BookService {
	return &bookService{repo: repo, users: users, catalog: catalog, log: log.Named("books").Sugar()}
}

// Create stores a new book owned by input.Username. Text fields are stored
// lowercased.
func (s *bookService) Create(input *BookRequest) (*models.Book, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	title := strings.ToLower(input.Title)

	if exists, err := s.repo.ExistsByTitle(title); err != nil {
		return nil, fmt.Errorf("check title: %w", err)
	} else if exists {
		return nil, apperrors.BadRequest("Error: A book with this title already exists.")
	}

	owner, err := s.users.FindByUsername(input.Username)
	if err != nil {
		return nil, err
	}

	book := models.Book{
		Title:       title,
		AuthorName:  strings.ToLower(input.Author),
		Description: strings.ToLower(input.Description),
		UserID:      owner.ID,
		Owner:       *owner,
	}
	if err := s.repo.Create(&book); err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	s.log.Infow("Book creation request", "username", owner.Username, "id", book.ID)
	return &book, nil
}

func (s *bookService) FindByID(id uint) (*models.Book, error) {
	book, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, apperrors.NotFound("Book id : %d doesn't exists", id)
	}
	return book, nil
}

func (s *bookService) FindAll() ([]models.Book, error) {
	return s.repo.FindAll()
}

func (s *bookService) FindAllByAuthorName(author string) ([]models.Book, error) {
	return s.repo.FindAllByAuthorName(strings.ToLower(author))
}

func (s *bookService) FindByTitle(title string) (*models.Book, error) {
	book, err := s.repo.FindByTitle(strings.ToLower(title))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warnw("Book not found", "title", title)
			return nil, apperrors.NotFound("Book title : %s doesn't exists", title)
		}
		return nil, fmt.Errorf("find book %q: %w", title, err)
	}
	return book, nil
}

func (s *bookService) load(id uint) (*models.Book, error) {
	book, err := s.repo.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warnw("Book not found", "id", id)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find book %d: %w", id, err)
	}
	return book, nil
}

// authorize loads book id once and runs the access policy on it.
func (s *bookService) authorize(principal policy.Principal, action policy.Action, id uint) (*models.Book, error) {
	book, err := s.load(id)
	if err != nil {
		return nil, err
	}
	decision := policy.Authorize(principal, action, policy.BookTarget(id, book))
	if !decision.Allowed {
		if decision.Kind == apperrors.KindUnauthorized {
			s.log.Warnf("Unauthorized edit attempt: User %s tried to modify book %d", principal.Username, id)
		}
		return nil, decision.Err()
	}
	return book, nil
}

// Update merges p into book id. Only the owner or an admin may do so.
func (s *bookService) Update(principal policy.Principal, id uint, p patch.Patch) (*models.Book, error) {
	book, err := s.authorize(principal, policy.ActionUpdate, id)
	if err != nil {
		return nil, err
	}

	merged, err := patch.MergeBook(*book, p)
	if err != nil {
		return nil, err
	}
	merged.Title = strings.ToLower(merged.Title)
	merged.AuthorName = strings.ToLower(merged.AuthorName)
	merged.Description = strings.ToLower(merged.Description)

	if merged.Title != book.Title {
		if exists, err := s.repo.ExistsByTitle(merged.Title); err != nil {
			return nil, fmt.Errorf("check title: %w", err)
		} else if exists {
			return nil, apperrors.BadRequest("Error: A book with this title already exists.")
		}
	}

	if err := s.repo.Update(&merged); err != nil {
		return nil, fmt.Errorf("failed to save book updates: %w", err)
	}
	s.log.Infow("Book patch request", "id", id, "by", principal.Username)
	return &merged, nil
}

func (s *bookService) Delete(principal policy.Principal, id uint) error {
	book, err := s.authorize(principal, policy.ActionDelete, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(book); err != nil {
		return fmt.Errorf("failed to delete book %d: %w", id, err)
	}
	s.log.Infow("Deleted book", "id", id, "by", principal.Username)
	return nil
}

// FindInOpenLibrary looks name up in the external catalogue. Upstream
// failures surface as a single internal error.
func (s *bookService) FindInOpenLibrary(ctx context.Context, name string) (openlibrary.BookInfo, error) {
	info, err := s.catalog.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, openlibrary.ErrNotFound) {
			return openlibrary.BookInfo{}, apperrors.BadRequest("No book found in Open Library for '%s'", name)
		}
		s.log.Errorw("Open Library lookup failed", "name", name, "error", err)
		return openlibrary.BookInfo{}, fmt.Errorf("open library lookup: %w", err)
	}
	return info, nil
}
