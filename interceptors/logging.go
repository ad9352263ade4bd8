package interceptors

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const requestIDMetadata = "x-request-id"

var zapLevels = map[logging.Level]zapcore.Level{
	logging.LevelDebug: zapcore.DebugLevel,
	logging.LevelInfo:  zapcore.InfoLevel,
	logging.LevelWarn:  zapcore.WarnLevel,
	logging.LevelError: zapcore.ErrorLevel,
}

// InterceptorLogger bridges the middleware's key/value logger onto zap.
// Pairs with a non-string key are dropped.
func InterceptorLogger(l *zap.Logger) logging.Logger {
	return logging.LoggerFunc(func(_ context.Context, lvl logging.Level, msg string, kv ...any) {
		fields := make([]zap.Field, 0, len(kv)/2)
		for i := 1; i < len(kv); i += 2 {
			if key, ok := kv[i-1].(string); ok {
				fields = append(fields, zap.Any(key, kv[i]))
			}
		}

		level, known := zapLevels[lvl]
		if !known {
			level = zapcore.ErrorLevel
			fields = append(fields, zap.Any("grpc.log_level", lvl))
		}
		l.Log(level, msg, fields...)
	})
}

// fieldsFromContext adds the caller's request id when it sent one.
func fieldsFromContext(ctx context.Context) logging.Fields {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}
	if ids := md.Get(requestIDMetadata); len(ids) > 0 {
		return logging.Fields{"request_id", ids[0]}
	}
	return nil
}

// ZapLoggingInterceptor logs every finished call with its code and duration.
func ZapLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return logging.UnaryServerInterceptor(InterceptorLogger(logger),
		logging.WithLogOnEvents(logging.FinishCall),
		logging.WithDurationField(logging.DurationToDurationField),
		logging.WithFieldsFromContext(fieldsFromContext),
		logging.WithLevels(logging.DefaultServerCodeToLevel),
	)
}
