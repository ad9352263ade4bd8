package services

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Mishari713/BMS/apperrors"
	"github.com/Mishari713/BMS/auth"
	"github.com/Mishari713/BMS/models"
	"github.com/Mishari713/BMS/patch"
	"github.com/Mishari713/BMS/policy"
	"github.com/Mishari713/BMS/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// The UserService interface defines the methods that user services need to implement
type UserService interface {
	Create(input *SignupRequest) error
	FindByID(id uint) (*models.User, error)
	FindByUsername(username string) (*models.User, error)
	FindAll() ([]models.User, error)
	Update(principal policy.Principal, id uint, p patch.Patch) (*models.User, error)
	Delete(principal policy.Principal, id uint) error
	FindOrCreateOAuth2(identity auth.OAuth2Identity, registration string) (*models.User, error)
}

// --- Structs for Input/Output ---
type SignupRequest struct {
	Username string   `json:"username" description:"3 to 20 characters"`
	Email    string   `json:"email" description:"at most 50 characters"`
	Password string   `json:"password" description:"6 to 40 characters"`
	Role     []string `json:"role,omitempty" description:"admin, author or user; defaults to user"`
}

// Validate checks the request shape; uniqueness is checked by Create.
func (r *SignupRequest) Validate() error {
	if err := lengthBetween("username", r.Username, 3, models.MaxUsernameLen); err != nil {
		return err
	}
	if err := lengthBetween("email", r.Email, 1, models.MaxEmailLen); err != nil {
		return err
	}
	if !strings.Contains(r.Email, "@") {
		return apperrors.BadRequest("Field 'email' must be a well-formed email address")
	}
	return lengthBetween("password", r.Password, models.MinPlainPasswordLen, models.MaxPlainPasswordLen)
}

func lengthBetween(field, value string, min, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n == 0 {
		return apperrors.BadRequest("Field '%s' must not be blank", field)
	}
	if n < min || n > max {
		return apperrors.BadRequest("Field '%s' size must be between %d and %d", field, min, max)
	}
	return nil
}

// The userService structure is the implementation of the UserService interface
type userService struct {
	repo  repositories.UserRepository
	roles repositories.RoleRepository
	log   *zap.SugaredLogger
}

var _ UserService = (*userService)(nil)

// NewUserService creates a new UserService instance
func NewUserService(repo repositories.UserRepository, roles repositories.RoleRepository, log *zap.Logger) UserService {
	return &userService{repo: repo, roles: roles, log: log.Named("users").Sugar()}
}

// Create registers a local account.
func (s *userService) Create(input *SignupRequest) error {
	if err := input.Validate(); err != nil {
		return err
	}
	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if exists, err := s.repo.ExistsByUsername(username); err != nil {
		return fmt.Errorf("check username: %w", err)
	} else if exists {
		return apperrors.BadRequest("Error: Username is already taken!")
	}
	if exists, err := s.repo.ExistsByEmail(email); err != nil {
		return fmt.Errorf("check email: %w", err)
	} else if exists {
		return apperrors.BadRequest("Error: Email is already in use!")
	}

	hashed, err := auth.HashPassword(input.Password)
	if err != nil {
		return fmt.Errorf("could not hash password: %w", err)
	}
	roles, err := s.roles.FindByNames(models.MapRoleNames(input.Role))
	if err != nil {
		return fmt.Errorf("resolve roles: %w", err)
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
		Provider:     models.ProviderLocal,
		Roles:        roles,
	}
	if err := s.repo.Create(&user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Infow("User signup request", "username", username)
	return nil
}

func (s *userService) FindByID(id uint) (*models.User, error) {
	user, err := s.repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warnw("User not found", "id", id)
			return nil, apperrors.NotFound("User id: %d doesn't exists", id)
		}
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return user, nil
}

func (s *userService) FindByUsername(username string) (*models.User, error) {
	user, err := s.repo.FindByUsername(strings.ToLower(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warnw("User not found", "username", username)
			return nil, apperrors.NotFound("Username: %s doesn't exists", username)
		}
		return nil, fmt.Errorf("find user %q: %w", username, err)
	}
	return user, nil
}

func (s *userService) FindAll() ([]models.User, error) {
	return s.repo.FindAll()
}

// load fetches user id for a targeted action; a missing row yields nil.
func (s *userService) load(id uint) (*models.User, error) {
	user, err := s.repo.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warnw("User not found", "id", id)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return user, nil
}

// Update merges p into user id and saves it.
func (s *userService) Update(principal policy.Principal, id uint, p patch.Patch) (*models.User, error) {
	user, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(principal, policy.ActionUpdate, policy.UserTarget(id, user)).Err(); err != nil {
		return nil, err
	}

	merged, err := patch.MergeUser(*user, p)
	if err != nil {
		return nil, err
	}
	merged.Username = strings.ToLower(strings.TrimSpace(merged.Username))
	merged.Email = strings.ToLower(strings.TrimSpace(merged.Email))

	if merged.Username != user.Username {
		if exists, err := s.repo.ExistsByUsername(merged.Username); err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		} else if exists {
			return nil, apperrors.BadRequest("Error: Username is already taken!")
		}
	}
	if merged.Email != user.Email {
		if exists, err := s.repo.ExistsByEmail(merged.Email); err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		} else if exists {
			return nil, apperrors.BadRequest("Error: Email is already in use!")
		}
	}
	if p.Has("password") {
		hashed, err := auth.HashPassword(merged.PasswordHash)
		if err != nil {
			return nil, fmt.Errorf("could not hash new password: %w", err)
		}
		merged.PasswordHash = hashed
	}
	if p.Has("roles") {
		roles, err := s.roles.FindByNames(merged.RoleNames())
		if err != nil {
			return nil, fmt.Errorf("resolve roles: %w", err)
		}
		merged.Roles = roles
	}

	if err := s.repo.Update(&merged); err != nil {
		return nil, fmt.Errorf("failed to save user updates: %w", err)
	}
	s.log.Infow("User patch request", "id", id, "by", principal.Username)
	return s.repo.FindByID(id)
}

// Delete removes user id and every book it owns.
func (s *userService) Delete(principal policy.Principal, id uint) error {
	user, err := s.load(id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(principal, policy.ActionDelete, policy.UserTarget(id, user)).Err(); err != nil {
		return err
	}
	if err := s.repo.Delete(user); err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	s.log.Infow("Deleted user", "id", id, "by", principal.Username)
	return nil
}

// FindOrCreateOAuth2 returns the account registered under identity's email,
// creating a ROLE_USER account for first-time logins.
func (s *userService) FindOrCreateOAuth2(identity auth.OAuth2Identity, registration string) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	user, err := s.repo.FindByEmail(email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	username, err := s.oauth2Username(identity)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.FindByName(models.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("resolve role: %w", err)
	}
	user = &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: models.OAuth2Password,
		Provider:     models.AuthProvider(strings.ToUpper(registration)),
		Roles:        []models.Role{*role},
	}
	if err := s.repo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create oauth2 user: %w", err)
	}
	s.log.Infow("Created OAuth2 user", "username", username, "provider", user.Provider)
	return user, nil
}

// oauth2Username picks a free username from the display name, then the
// email local part, then the local part with a random suffix.
func (s *userService) oauth2Username(identity auth.OAuth2Identity) (string, error) {
	local, _, _ := strings.Cut(strings.ToLower(identity.Email), "@")
	candidates := []string{
		strings.ToLower(strings.Join(strings.Fields(identity.Name), "")),
		local,
	}
	for _, c := range candidates {
		c = truncate(c, models.MaxUsernameLen)
		if c == "" {
			continue
		}
		exists, err := s.repo.ExistsByUsername(c)
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		if !exists {
			return c, nil
		}
	}
	return truncate(local, models.MaxUsernameLen-5) + "-" + uuid.NewString()[:4], nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) > max {
		return string(r[:max])
	}
	return s
}
