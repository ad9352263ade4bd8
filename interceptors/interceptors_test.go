package interceptors

import (
	"context"
	"testing"
	"time"

	"github.com/Mishari713/BMS/apperrors"
	"github.com/Mishari713/BMS/auth"
	"github.com/Mishari713/BMS/config"
	"github.com/Mishari713/BMS/models"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const protectedMethod = "/bms.v1.Library/ListBooks"

func newTokens() *auth.TokenService {
	return auth.NewTokenService(config.JWTConfig{Secret: "interceptor-secret", Expiration: time.Hour, CookieName: "bms"}, nil)
}

func callWith(t *testing.T, tokens *auth.TokenService, method string, md metadata.MD) (any, error) {
	t.Helper()
	intercept := AuthInterceptor(tokens, MethodRoles{protectedMethod: {models.RoleAdmin}})
	ctx := context.Background()
	if md != nil {
		ctx = metadata.NewIncomingContext(ctx, md)
	}
	return intercept(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, func(ctx context.Context, _ any) (any, error) {
		p, ok := PrincipalFromContext(ctx)
		if !ok {
			return "anonymous", nil
		}
		return p.Username, nil
	})
}

func TestAuthInterceptor(t *testing.T) {
	tokens := newTokens()
	adminToken, err := tokens.Issue("root", []models.RoleName{models.RoleAdmin})
	require.NoError(t, err)
	userToken, err := tokens.Issue("reader", []models.RoleName{models.RoleUser})
	require.NoError(t, err)

	t.Run("public method skips auth", func(t *testing.T) {
		got, err := callWith(t, tokens, "/grpc.health.v1.Health/Check", nil)
		require.NoError(t, err)
		assert.Equal(t, "anonymous", got)
	})

	t.Run("no metadata", func(t *testing.T) {
		_, err := callWith(t, tokens, protectedMethod, nil)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("bad scheme", func(t *testing.T) {
		_, err := callWith(t, tokens, protectedMethod, metadata.Pairs("authorization", "Basic abc"))
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := callWith(t, tokens, protectedMethod, metadata.Pairs("authorization", "Bearer nope"))
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("wrong role", func(t *testing.T) {
		_, err := callWith(t, tokens, protectedMethod, metadata.Pairs("authorization", "Bearer "+userToken))
		st, _ := status.FromError(err)
		assert.Equal(t, codes.PermissionDenied, st.Code())
		assert.Equal(t, apperrors.ForbiddenMessage, st.Message())
	})

	t.Run("admin passes with principal", func(t *testing.T) {
		got, err := callWith(t, tokens, protectedMethod, metadata.Pairs("authorization", "bearer "+adminToken))
		require.NoError(t, err)
		assert.Equal(t, "root", got)
	})
}

func TestInterceptorLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := InterceptorLogger(zap.New(core))

	logger.Log(context.Background(), logging.LevelWarn, "finished call", "grpc.code", "NotFound", 42, "dropped")
	logger.Log(context.Background(), logging.Level(99), "odd level")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, map[string]any{"grpc.code": "NotFound"}, entries[0].ContextMap())
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestFieldsFromContext(t *testing.T) {
	assert.Nil(t, fieldsFromContext(context.Background()))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDMetadata, "req-7"))
	assert.Equal(t, logging.Fields{"request_id", "req-7"}, fieldsFromContext(ctx))
}
