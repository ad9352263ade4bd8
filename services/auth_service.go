package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Mishari713/BMS/apperrors"
	"github.com/Mishari713/BMS/auth"
	"github.com/Mishari713/BMS/metrics"
	"github.com/Mishari713/BMS/models"

	"go.uber.org/zap"
)

const (
	msgSessionActive = "Error: Only 1 active session is allowed"
	msgNoSession     = "Error: No active session detected"
	msgBadLogin      = "Invalid username or password"
	msgOAuth2Account = "This account uses OAuth2 login. Please sign in with Google."
)

type SigninRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthService handles sign-in, sign-up and sign-out behind the session gate.
type AuthService interface {
	SignIn(ctx context.Context, input *SigninRequest) (string, error)
	SignUp(input *SignupRequest) error
	SignOut(ctx context.Context, token string) error
	OAuth2Login(ctx context.Context, identity auth.OAuth2Identity, registration string) (string, error)
}

type authService struct {
	users   UserService
	tokens  *auth.TokenService
	gate    auth.SessionGate
	scope   string
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
}

var _ AuthService = (*authService)(nil)

// NewAuthService wires the session gate with the given scope
// (auth.SessionScopeGlobal or auth.SessionScopeUser). m may be nil.
func NewAuthService(users UserService, tokens *auth.TokenService, gate auth.SessionGate, scope string, m *metrics.Metrics, log *zap.Logger) AuthService {
	return &authService{
		users:   users,
		tokens:  tokens,
		gate:    gate,
		scope:   scope,
		metrics: m,
		log:     log.Named("auth").Sugar(),
	}
}

// SignIn checks the credentials and returns a fresh token. The session gate
// is acquired before the password check and released again if it fails.
func (s *authService) SignIn(ctx context.Context, input *SigninRequest) (string, error) {
	if strings.TrimSpace(input.Username) == "" || input.Password == "" {
		return "", apperrors.BadRequest("Username and password are required")
	}

	user, err := s.users.FindByUsername(input.Username)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return "", apperrors.Unauthorized(msgBadLogin)
		}
		return "", err
	}
	if user.Provider != models.ProviderLocal {
		return "", apperrors.BadRequest(msgOAuth2Account)
	}

	key := auth.SessionKey(s.scope, user.Username)
	if err := s.gate.Acquire(ctx, key); err != nil {
		if errors.Is(err, auth.ErrSessionActive) {
			s.metrics.SessionEvent("rejected")
			return "", apperrors.BadRequest(msgSessionActive)
		}
		return "", err
	}

	if !auth.CheckPassword(user.PasswordHash, input.Password) {
		s.release(ctx, key)
		return "", apperrors.Unauthorized(msgBadLogin)
	}
	token, err := s.tokens.Issue(user.Username, user.RoleNames())
	if err != nil {
		s.release(ctx, key)
		return "", fmt.Errorf("could not generate token: %w", err)
	}

	s.metrics.SessionEvent("signin")
	s.log.Infow("User logged in", "username", user.Username)
	return token, nil
}

func (s *authService) release(ctx context.Context, key string) {
	if err := s.gate.Release(ctx, key); err != nil && !errors.Is(err, auth.ErrNoSession) {
		s.log.Errorw("Failed to release session", "key", key, "error", err)
	}
}

func (s *authService) SignUp(input *SignupRequest) error {
	return s.users.Create(input)
}

// SignOut ends the active session. token may be empty in global scope.
func (s *authService) SignOut(ctx context.Context, token string) error {
	username := ""
	if token != "" {
		if claims, err := s.tokens.Validate(ctx, token); err == nil {
			username = claims.Username
		}
	}
	if s.scope == auth.SessionScopeUser && username == "" {
		return apperrors.BadRequest(msgNoSession)
	}

	if err := s.gate.Release(ctx, auth.SessionKey(s.scope, username)); err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			return apperrors.BadRequest(msgNoSession)
		}
		return err
	}
	if token != "" {
		if err := s.tokens.Revoke(ctx, token); err != nil {
			s.log.Errorw("Failed to revoke token", "error", err)
		}
	}

	s.metrics.SessionEvent("signout")
	s.log.Infow("Current user has signed out", "username", username)
	return nil
}

// OAuth2Login resolves or creates the account behind identity and issues a
// token for it. OAuth2 logins do not hold the session gate.
func (s *authService) OAuth2Login(ctx context.Context, identity auth.OAuth2Identity, registration string) (string, error) {
	user, err := s.users.FindOrCreateOAuth2(identity, registration)
	if err != nil {
		return "", err
	}
	token, err := s.tokens.Issue(user.Username, user.RoleNames())
	if err != nil {
		return "", fmt.Errorf("could not generate token: %w", err)
	}
	s.log.Infow("OAuth2 login", "username", user.Username, "provider", registration)
	return token, nil
}
