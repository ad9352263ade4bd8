package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Mishari713/BMS/config"
	"github.com/Mishari713/BMS/models"
	"github.com/Mishari713/BMS/policy"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const issuer = "bms"

// OAuth2CookieName is the cookie set after a successful OAuth2 login.
const OAuth2CookieName = "JWT"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token has been revoked")
)

// CustomClaims are the claims carried by every token we issue.
type CustomClaims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Principal converts the claims into the caller identity used by policy.
func (c *CustomClaims) Principal() policy.Principal {
	roles := make([]models.RoleName, 0, len(c.Roles))
	for _, r := range c.Roles {
		roles = append(roles, models.RoleName(r))
	}
	return policy.Principal{Username: c.Username, Roles: roles}
}

// TokenService issues and validates HS256 tokens and frames them as cookies.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	cookieName string
	revoker    TokenRevoker
	now        func() time.Time
}

func NewTokenService(cfg config.JWTConfig, revoker TokenRevoker) *TokenService {
	if revoker == nil {
		revoker = NewMemoryTokenRevoker()
	}
	return &TokenService{
		signingKey: []byte(cfg.Secret),
		ttl:        cfg.Expiration,
		cookieName: cfg.CookieName,
		revoker:    revoker,
		now:        time.Now,
	}
}

func (s *TokenService) TTL() time.Duration { return s.ttl }

func (s *TokenService) CookieName() string { return s.cookieName }

// Issue creates a signed token for username carrying its roles.
func (s *TokenService) Issue(username string, roles []models.RoleName) (string, error) {
	now := s.now()
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	claims := &CustomClaims{
		Username: username,
		Roles:    names,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) parse(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, fmt.Errorf("%w: malformed token", ErrInvalidToken)
			case ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0:
				return nil, fmt.Errorf("%w: token is either expired or not active yet", ErrInvalidToken)
			case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
				return nil, fmt.Errorf("%w: invalid token signature", ErrInvalidToken)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.Username == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Validate parses tokenString and rejects revoked tokens.
func (s *TokenService) Validate(ctx context.Context, tokenString string) (*CustomClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke invalidates tokenString for the rest of its lifetime. Tokens that
// no longer validate are ignored.
func (s *TokenService) Revoke(ctx context.Context, tokenString string) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	return s.revoker.Revoke(ctx, claims.ID, ttl)
}

// Cookie frames token as the HttpOnly session cookie.
func (s *TokenService) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/api",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// CleanCookie expires the session cookie.
func (s *TokenService) CleanCookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/api",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// OAuth2Cookie frames token the way the OAuth2 success redirect hands it to
// the browser.
func OAuth2Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:   OAuth2CookieName,
		Value:  token,
		Path:   "/",
		MaxAge: 3600,
	}
}
