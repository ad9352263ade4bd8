package interceptors

import (
	"context"
	"strings"

	"github.com/Mishari713/BMS/apperrors"
	"github.com/Mishari713/BMS/auth"
	"github.com/Mishari713/BMS/models"
	"github.com/Mishari713/BMS/policy"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// PrincipalKey is the context key for the authenticated caller.
const PrincipalKey contextKey = "principal"

// MethodRoles maps a full gRPC method name to the roles allowed to call it.
// Methods absent from the map are public.
type MethodRoles map[string][]models.RoleName

// AuthInterceptor returns a unary server interceptor that authenticates
// bearer tokens and applies the role gate of the called method.
func AuthInterceptor(tokens *auth.TokenService, protected MethodRoles) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		roles, isProtected := protected[info.FullMethod]
		if !isProtected {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "metadata is not provided")
		}
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "authorization token is not provided")
		}
		parts := strings.SplitN(values[0], " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return nil, status.Error(codes.Unauthenticated, "invalid authorization header format")
		}

		claims, err := tokens.Validate(ctx, strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
		}
		principal := claims.Principal()
		if err := policy.RequireAnyRole(principal, roles...); err != nil {
			return nil, status.Error(codes.PermissionDenied, apperrors.From(err).Message)
		}

		return handler(context.WithValue(ctx, PrincipalKey, principal), req)
	}
}

// PrincipalFromContext extracts the caller set by AuthInterceptor.
func PrincipalFromContext(ctx context.Context) (policy.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(policy.Principal)
	return p, ok
}
