package auth

import (
	"net/http"
	"strings"

	"github.com/Mishari713/BMS/apperrors"
	"github.com/Mishari713/BMS/models"
	"github.com/Mishari713/BMS/policy"

	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

const (
	principalAttribute = "principal"
	tokenAttribute     = "token"
)

// TokenFromRequest returns the token carried by r: the session cookie first,
// then the OAuth2 cookie, then an Authorization bearer header.
func TokenFromRequest(r *http.Request, cookieName string) string {
	for _, name := range []string{cookieName, OAuth2CookieName} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return c.Value
		}
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// AuthFilter creates a go-restful FilterFunction that resolves the request
// principal from its token and rejects the request when there is none.
func AuthFilter(tokens *TokenService, log *zap.Logger) restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		tokenString := TokenFromRequest(req.Request, tokens.CookieName())
		if tokenString == "" {
			writeUnauthorized(resp)
			return
		}

		claims, err := tokens.Validate(req.Request.Context(), tokenString)
		if err != nil {
			log.Debug("rejected token", zap.String("path", req.Request.URL.Path), zap.Error(err))
			writeUnauthorized(resp)
			return
		}

		req.SetAttribute(principalAttribute, claims.Principal())
		req.SetAttribute(tokenAttribute, tokenString)
		chain.ProcessFilter(req, resp)
	}
}

// RequireRoles lets the request through when the principal holds at least
// one of roles. It must run after AuthFilter.
func RequireRoles(roles ...models.RoleName) restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		p, ok := PrincipalFrom(req)
		if !ok {
			writeUnauthorized(resp)
			return
		}
		if err := policy.RequireAnyRole(p, roles...); err != nil {
			appErr := apperrors.From(err)
			_ = resp.WriteHeaderAndJson(appErr.Code, appErr, restful.MIME_JSON)
			return
		}
		chain.ProcessFilter(req, resp)
	}
}

// PrincipalFrom returns the principal stored by AuthFilter.
func PrincipalFrom(req *restful.Request) (policy.Principal, bool) {
	p, ok := req.Attribute(principalAttribute).(policy.Principal)
	return p, ok
}

func writeUnauthorized(resp *restful.Response) {
	appErr := apperrors.Unauthorized("Unauthorized")
	_ = resp.WriteHeaderAndJson(appErr.Code, appErr, restful.MIME_JSON)
}
