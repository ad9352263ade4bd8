package controllers

import (
	"net/http"

	"github.com/Mishari713/BMS/auth"
	"github.com/Mishari713/BMS/models"
	"github.com/Mishari713/BMS/openlibrary"
	"github.com/Mishari713/BMS/patch"
	"github.com/Mishari713/BMS/policy"
	"github.com/Mishari713/BMS/services"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

// BookController serves /api/lib. Every route needs a valid token.
type BookController struct {
	bookService services.BookService
	tokens      *auth.TokenService
	log         *zap.Logger
}

func NewBookController(bookService services.BookService, tokens *auth.TokenService, log *zap.Logger) *BookController {
	return &BookController{bookService: bookService, tokens: tokens, log: log}
}

func requireRoles(kind policy.ResourceKind, action policy.Action) restful.FilterFunction {
	return auth.RequireRoles(policy.RequiredRoles(kind, action)...)
}

// RegisterRoutes sets up the book routes on ws.
func (ctl *BookController) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/api/lib").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Filter(auth.AuthFilter(ctl.tokens, ctl.log))
	tags := []string{"books"}
	canRead := requireRoles(policy.ResourceBook, policy.ActionRead)

	ws.Route(ws.GET("/books").Filter(canRead).To(ctl.listBooksHandler).
		Doc("List all books").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes([]models.Book{}).
		Returns(http.StatusOK, "OK", []models.Book{}).
		Returns(http.StatusUnauthorized, "Unauthorized", MessageResponse{}).
		Returns(http.StatusForbidden, "Forbidden", MessageResponse{}))

	ws.Route(ws.GET("/books/author/{name}").Filter(canRead).To(ctl.booksByAuthorHandler).
		Doc("List books by author name").
		Param(ws.PathParameter("name", "Author name").DataType("string")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes([]models.Book{}).
		Returns(http.StatusOK, "OK", []models.Book{}))

	ws.Route(ws.GET("/books/title/{title}").Filter(canRead).To(ctl.bookByTitleHandler).
		Doc("Get a book by title").
		Param(ws.PathParameter("title", "Book title").DataType("string")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(models.Book{}).
		Returns(http.StatusOK, "OK", models.Book{}).
		Returns(http.StatusBadRequest, "Book not found", MessageResponse{}))

	ws.Route(ws.GET("/open-library/{name}").Filter(canRead).To(ctl.openLibraryHandler).
		Doc("Look a book up in Open Library").
		Param(ws.PathParameter("name", "Book name").DataType("string")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(openlibrary.BookInfo{}).
		Returns(http.StatusOK, "OK", openlibrary.BookInfo{}).
		Returns(http.StatusBadRequest, "No match", MessageResponse{}))

	ws.Route(ws.POST("/books").Filter(requireRoles(policy.ResourceBook, policy.ActionCreate)).To(ctl.createBookHandler).
		Doc("Create a book owned by the given username").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(services.BookRequest{}).
		Returns(http.StatusOK, "Book created successfully!", MessageResponse{}).
		Returns(http.StatusBadRequest, "Duplicate title or unknown owner", MessageResponse{}).
		Returns(http.StatusForbidden, "Forbidden", MessageResponse{}))

	ws.Route(ws.PATCH("/books/{id}").Filter(requireRoles(policy.ResourceBook, policy.ActionUpdate)).To(ctl.patchBookHandler).
		Doc("Partially update a book; owner or admin only").
		Param(ws.PathParameter("id", "Book id").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(map[string]any{}).
		Returns(http.StatusOK, "Book updated successfully!", MessageResponse{}).
		Returns(http.StatusBadRequest, "Invalid patch or unknown book", MessageResponse{}).
		Returns(http.StatusUnauthorized, "Not the owner", MessageResponse{}))

	ws.Route(ws.DELETE("/books/{id}").Filter(requireRoles(policy.ResourceBook, policy.ActionDelete)).To(ctl.deleteBookHandler).
		Doc("Delete a book; owner or admin only").
		Param(ws.PathParameter("id", "Book id").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "Book has been deleted successfully!", MessageResponse{}).
		Returns(http.StatusUnauthorized, "Not the owner", MessageResponse{}))
}

func (ctl *BookController) listBooksHandler(request *restful.Request, response *restful.Response) {
	books, err := ctl.bookService.FindAll()
	if err != nil {
		writeError(ctl.log, request, response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, books, restful.MIME_JSON)
}

func (ctl *BookController) booksByAuthorHandler(request *restful.Request, response *restful.Response) {
	books, err := ctl.bookService.FindAllByAuthorName(request.PathParameter("name"))
	if err != nil {
		writeError(ctl.log, request, response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, books, restful.MIME_JSON)
}

func (ctl *BookController) bookByTitleHandler(request *restful.Request, response *restful.Response) {
	book, err := ctl.bookService.FindByTitle(request.PathParameter("title"))
	if err != nil {
		writeError(ctl.log, request, response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, book, restful.MIME_JSON)
}

func (ctl *BookController) openLibraryHandler(request *restful.Request, response *restful.Response) {
	info, err := ctl.bookService.FindInOpenLibrary(request.Request.Context(), request.PathParameter("name"))
	if err != nil {
		writeError(ctl.log, request, response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, info, restful.MIME_JSON)
}

func (ctl *BookController) createBookHandler(request *restful.Request, response *restful.Response) {
	input := new(services.BookRequest)
	if err := request.ReadEntity(input); err != nil {
		writeBadBody(response, err)
		return
	}
	if _, err := ctl.bookService.Create(input); err != nil {
		writeError(ctl.log, request, response, err)
		return
	}
	writeOK(response, "Book created successfully!")
}

func (ctl *BookController) patchBookHandler(request *restful.Request, response *restful.Response) {
	id, err := pathID(request, "id")
	if err != nil {
		writeError(ctl.log, request, response, err)
		return
	}
	principal, _ := auth.PrincipalFrom(request)

	p := patch.Patch{}
	if err := request.ReadEntity(&p); err != nil {
		writeBadBody(response, err)
		return
	}
	if _, err := ctl.bookService.Update(principal, id, p); err != nil {
		writeError(ctl.log, request, response, err)
		return
	}
	writeOK(response, "Book updated successfully!")
}

func (ctl *BookController) deleteBookHandler(request *restful.Request, response *restful.Response) {
	id, err := pathID(request, "id")
	if err != nil {
		writeError(ctl.log, request, response, err)
		return
	}
	principal, _ := auth.PrincipalFrom(request)

	if err := ctl.bookService.Delete(principal, id); err != nil {
		writeError(ctl.log, request, response, err)
		return
	}
	writeOK(response, "Book has been deleted successfully!")
}
