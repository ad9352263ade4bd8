package grpcserver

import (
	"context"

	"github.com/Mishari713/BMS/apperrors"
	"github.com/Mishari713/BMS/models"
	"github.com/Mishari713/BMS/services"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const LibraryServiceName = "bms.v1.Library"

// Full method names, as seen by interceptors.
const (
	ListBooksMethod         = "/" + LibraryServiceName + "/ListBooks"
	FindBooksByAuthorMethod = "/" + LibraryServiceName + "/FindBooksByAuthor"
	FindBookByTitleMethod   = "/" + LibraryServiceName + "/FindBookByTitle"
)

// LibraryServer is the read-only book catalogue exposed over gRPC. Books are
// encoded as google.protobuf.Struct with the same keys as the JSON API.
type LibraryServer interface {
	ListBooks(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	FindBooksByAuthor(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	FindBookByTitle(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

type libraryServer struct {
	books services.BookService
}

func NewLibraryServer(books services.BookService) LibraryServer {
	return &libraryServer{books: books}
}

func (s *libraryServer) ListBooks(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	books, err := s.books.FindAll()
	if err != nil {
		return nil, toStatus(err)
	}
	return bookList(books)
}

func (s *libraryServer) FindBooksByAuthor(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "author name required")
	}
	books, err := s.books.FindAllByAuthorName(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return bookList(books)
}

func (s *libraryServer) FindBookByTitle(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "title required")
	}
	book, err := s.books.FindByTitle(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return bookStruct(book)
}

func bookStruct(b *models.Book) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]any{
		"id":          float64(b.ID),
		"title":       b.Title,
		"authorName":  b.AuthorName,
		"description": b.Description,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode book %d: %v", b.ID, err)
	}
	return s, nil
}

func bookList(books []models.Book) (*structpb.ListValue, error) {
	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(books))}
	for i := range books {
		s, err := bookStruct(&books[i])
		if err != nil {
			return nil, err
		}
		list.Values = append(list.Values, structpb.NewStructValue(s))
	}
	return list, nil
}

// toStatus maps service errors onto gRPC codes.
func toStatus(err error) error {
	appErr := apperrors.From(err)
	switch appErr.Kind {
	case apperrors.KindBadRequest:
		return status.Error(codes.InvalidArgument, appErr.Message)
	case apperrors.KindNotFound:
		return status.Error(codes.NotFound, appErr.Message)
	case apperrors.KindUnauthorized:
		return status.Error(codes.Unauthenticated, appErr.Message)
	case apperrors.KindForbidden:
		return status.Error(codes.PermissionDenied, appErr.Message)
	default:
		return status.Error(codes.Internal, appErr.Message)
	}
}

// LibraryServiceDesc is the grpc.ServiceDesc for LibraryServer.
var LibraryServiceDesc = grpc.ServiceDesc{
	ServiceName: LibraryServiceName,
	HandlerType: (*LibraryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListBooks", Handler: listBooksHandler},
		{MethodName: "FindBooksByAuthor", Handler: findBooksByAuthorHandler},
		{MethodName: "FindBookByTitle", Handler: findBookByTitleHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bms/v1/library.proto",
}

func RegisterLibraryServer(s grpc.ServiceRegistrar, srv LibraryServer) {
	s.RegisterService(&LibraryServiceDesc, srv)
}

func listBooksHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LibraryServer).ListBooks(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListBooksMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LibraryServer).ListBooks(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func findBooksByAuthorHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LibraryServer).FindBooksByAuthor(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FindBooksByAuthorMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LibraryServer).FindBooksByAuthor(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func findBookByTitleHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LibraryServer).FindBookByTitle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FindBookByTitleMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LibraryServer).FindBookByTitle(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// LibraryClient calls bms.v1.Library.
type LibraryClient struct {
	cc grpc.ClientConnInterface
}

func NewLibraryClient(cc grpc.ClientConnInterface) *LibraryClient {
	return &LibraryClient{cc: cc}
}

func (c *LibraryClient) ListBooks(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, ListBooksMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LibraryClient) FindBooksByAuthor(ctx context.Context, author string, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, FindBooksByAuthorMethod, wrapperspb.String(author), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LibraryClient) FindBookByTitle(ctx context.Context, title string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FindBookByTitleMethod, wrapperspb.String(title), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
