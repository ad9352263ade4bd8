// Package grpcserver exposes the book catalogue and a health service over
// gRPC.
package grpcserver

import (
	"github.com/Mishari713/BMS/auth"
	"github.com/Mishari713/BMS/interceptors"
	"github.com/Mishari713/BMS/policy"
	"github.com/Mishari713/BMS/services"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ProtectedMethods lists the role gate of every authenticated method. The
// library methods mirror the HTTP read routes; health checks stay public.
func ProtectedMethods() interceptors.MethodRoles {
	read := policy.RequiredRoles(policy.ResourceBook, policy.ActionRead)
	return interceptors.MethodRoles{
		ListBooksMethod:         read,
		FindBooksByAuthorMethod: read,
		FindBookByTitleMethod:   read,
	}
}

// NewServer builds a gRPC server with the library and health services
// registered. The health status of LibraryServiceName starts as SERVING.
func NewServer(books services.BookService, tokens *auth.TokenService, log *zap.Logger) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.ZapLoggingInterceptor(log.Named("grpc")),
			interceptors.AuthInterceptor(tokens, ProtectedMethods()),
		),
	)

	RegisterLibraryServer(srv, NewLibraryServer(books))

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(LibraryServiceName, healthpb.HealthCheckResponse_SERVING)
	return srv, healthSrv
}
