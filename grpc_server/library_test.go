package grpcserver

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/Mishari713/BMS/apperrors"
	"github.com/Mishari713/BMS/auth"
	"github.com/Mishari713/BMS/config"
	"github.com/Mishari713/BMS/models"
	"github.com/Mishari713/BMS/openlibrary"
	"github.com/Mishari713/BMS/patch"
	"github.com/Mishari713/BMS/policy"
	"github.com/Mishari713/BMS/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// fakeBooks serves a fixed catalogue; write operations are never reached
// over gRPC.
type fakeBooks struct {
	books []models.Book
}

var _ services.BookService = (*fakeBooks)(nil)

func (f *fakeBooks) Create(*services.BookRequest) (*models.Book, error) { return nil, nil }
func (f *fakeBooks) FindByID(id uint) (*models.Book, error) {
	for i := range f.books {
		if f.books[i].ID == id {
			return &f.books[i], nil
		}
	}
	return nil, apperrors.NotFound("Book id : %d doesn't exists", id)
}
func (f *fakeBooks) FindAll() ([]models.Book, error) { return f.books, nil }
func (f *fakeBooks) FindAllByAuthorName(author string) ([]models.Book, error) {
	var out []models.Book
	for _, b := range f.books {
		if b.AuthorName == strings.ToLower(author) {
			out = append(out, b)
		}
	}
	return out, nil
}
func (f *fakeBooks) FindByTitle(title string) (*models.Book, error) {
	for i := range f.books {
		if f.books[i].Title == strings.ToLower(title) {
			return &f.books[i], nil
		}
	}
	return nil, apperrors.NotFound("Book title : %s doesn't exists", title)
}
func (f *fakeBooks) Update(policy.Principal, uint, patch.Patch) (*models.Book, error) {
	return nil, nil
}
func (f *fakeBooks) Delete(policy.Principal, uint) error { return nil }
func (f *fakeBooks) FindInOpenLibrary(context.Context, string) (openlibrary.BookInfo, error) {
	return openlibrary.BookInfo{}, nil
}

func setupServer(t *testing.T) (*grpc.ClientConn, *auth.TokenService) {
	t.Helper()
	tokens := auth.NewTokenService(config.JWTConfig{
		Secret:     "grpc-test-secret",
		Expiration: time.Hour,
		CookieName: "bms",
	}, nil)
	books := &fakeBooks{books: []models.Book{
		{ID: 1, Title: "dune", AuthorName: "frank herbert", Description: "desert planet"},
		{ID: 2, Title: "children of dune", AuthorName: "frank herbert", Description: "sequel"},
		{ID: 3, Title: "neuromancer", AuthorName: "william gibson", Description: "cyberpunk"},
	}}

	srv, _ := NewServer(books, tokens, zap.NewNop())
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, tokens
}

func withToken(t *testing.T, tokens *auth.TokenService, roles ...models.RoleName) context.Context {
	t.Helper()
	tok, err := tokens.Issue("reader", roles)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok)
}

func TestLibrary_ListBooks(t *testing.T) {
	conn, tokens := setupServer(t)
	client := NewLibraryClient(conn)

	list, err := client.ListBooks(withToken(t, tokens, models.RoleUser))
	require.NoError(t, err)
	require.Len(t, list.GetValues(), 3)

	first := list.GetValues()[0].GetStructValue().AsMap()
	assert.Equal(t, float64(1), first["id"])
	assert.Equal(t, "dune", first["title"])
	assert.Equal(t, "frank herbert", first["authorName"])
	assert.Equal(t, "desert planet", first["description"])
}

func TestLibrary_FindBooksByAuthor(t *testing.T) {
	conn, tokens := setupServer(t)
	client := NewLibraryClient(conn)
	ctx := withToken(t, tokens, models.RoleAuthor)

	list, err := client.FindBooksByAuthor(ctx, "Frank Herbert")
	require.NoError(t, err)
	assert.Len(t, list.GetValues(), 2)

	_, err = client.FindBooksByAuthor(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestLibrary_FindBookByTitle(t *testing.T) {
	conn, tokens := setupServer(t)
	client := NewLibraryClient(conn)
	ctx := withToken(t, tokens, models.RoleAdmin)

	book, err := client.FindBookByTitle(ctx, "Neuromancer")
	require.NoError(t, err)
	assert.Equal(t, "william gibson", book.AsMap()["authorName"])

	_, err = client.FindBookByTitle(ctx, "missing")
	st, _ := status.FromError(err)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Equal(t, "Book title : missing doesn't exists", st.Message())
}

func TestLibrary_Auth(t *testing.T) {
	conn, tokens := setupServer(t)
	client := NewLibraryClient(conn)

	t.Run("missing token", func(t *testing.T) {
		_, err := client.ListBooks(context.Background())
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("malformed header", func(t *testing.T) {
		ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Token abc")
		_, err := client.ListBooks(ctx)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("revoked token", func(t *testing.T) {
		tok, err := tokens.Issue("reader", []models.RoleName{models.RoleUser})
		require.NoError(t, err)
		require.NoError(t, tokens.Revoke(context.Background(), tok))

		ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok)
		_, err = client.ListBooks(ctx)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("no roles", func(t *testing.T) {
		_, err := client.ListBooks(withToken(t, tokens))
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})
}

func TestHealthIsPublic(t *testing.T) {
	conn, _ := setupServer(t)
	client := healthpb.NewHealthClient(conn)

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: LibraryServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{apperrors.BadRequest("bad"), codes.InvalidArgument},
		{apperrors.NotFound("gone"), codes.NotFound},
		{apperrors.Unauthorized("who"), codes.Unauthenticated},
		{apperrors.Forbidden(), codes.PermissionDenied},
		{assert.AnError, codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, status.Code(toStatus(tc.err)), tc.err.Error())
	}
}
