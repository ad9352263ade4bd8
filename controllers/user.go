package controllers

import (
	"net/http"
	"time"

	"github.com/Mishari713/BMS/auth"
	"github.com/Mishari713/BMS/models"
	"github.com/Mishari713/BMS/patch"
	"github.com/Mishari713/BMS/policy"
	"github.com/Mishari713/BMS/services"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

// UserController serves the admin-only /api/admin routes.
type UserController struct {
	userService services.UserService
	tokens      *auth.TokenService
	log         *zap.Logger
}

// Constructor, used to create a UserController instance
func NewUserController(userService services.UserService, tokens *auth.TokenService, log *zap.Logger) *UserController {
	return &UserController{userService: userService, tokens: tokens, log: log}
}

// UserResponse Defines the response structure of user information
type UserResponse struct {
	ID        uint              `json:"id"`
	Username  string            `json:"username"`
	Email     string            `json:"email"`
	Provider  string            `json:"provider"`
	Roles     []models.RoleName `json:"roles"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// --- Helper to map model to response ---
func mapModelToUserResponse(user *models.User) UserResponse {
	if user == nil {
		return UserResponse{}
	}
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Provider:  string(user.Provider),
		Roles:     user.RoleNames(),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

// --- go-restful Route Definitions ---

// RegisterRoutes sets up the user administration routes on ws.
func (ctl *UserController) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/api/admin").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Filter(auth.AuthFilter(ctl.tokens, ctl.log))
	tags := []string{"admin"}

	ws.Route(ws.GET("/users").Filter(requireRoles(policy.ResourceUser, policy.ActionRead)).To(ctl.listUsersHandler).
		Doc("List all users").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes([]UserResponse{}).
		Returns(http.StatusOK, "OK", []UserResponse{}).
		Returns(http.StatusUnauthorized, "Unauthorized", MessageResponse{}).
		Returns(http.StatusForbidden, "Forbidden", MessageResponse{}))

	ws.Route(ws.GET("/users/{user-id}").Filter(requireRoles(policy.ResourceUser, policy.ActionRead)).To(ctl.getUserByIDHandler).
		Doc("Get user by ID").
		Param(ws.PathParameter("user-id", "Identifier of the user").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(UserResponse{}).
		Returns(http.StatusOK, "User found", UserResponse{}).
		Returns(http.StatusBadRequest, "User not found", MessageResponse{}))

	ws.Route(ws.POST("/users").Filter(requireRoles(policy.ResourceUser, policy.ActionCreate)).To(ctl.createUserHandler).
		Doc("Create a user with any roles").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(services.SignupRequest{}).
		Returns(http.StatusOK, "User registered successfully!", MessageResponse{}).
		Returns(http.StatusBadRequest, "Username or email already in use", MessageResponse{}))

	ws.Route(ws.PATCH("/users/{user-id}").Filter(requireRoles(policy.ResourceUser, policy.ActionUpdate)).To(ctl.patchUserHandler).
		Doc("Partially update a user").
		Param(ws.PathParameter("user-id", "Identifier of the user to update").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(map[string]any{}).
		Returns(http.StatusOK, "User updated successfully!", MessageResponse{}).
		Returns(http.StatusBadRequest, "Invalid patch or unknown user", MessageResponse{}))

	ws.Route(ws.DELETE("/users/{user-id}").Filter(requireRoles(policy.ResourceUser, policy.ActionDelete)).To(ctl.deleteUserHandler).
		Doc("Delete a user and every book it owns").
		Param(ws.PathParameter("user-id", "Identifier of the user to delete").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "User has been deleted successfully!", MessageResponse{}).
		Returns(http.StatusBadRequest, "User not found", MessageResponse{}))
}

// --- go-restful Handler Functions ---

func (ctl *UserController) listUsersHandler(request *restful.Request, response *restful.Response) {
	users, err := ctl.userService.FindAll()
	if err != nil {
		writeError(ctl.log, request, response, err)
		return
	}

	userResponses := make([]UserResponse, len(users))
	for i := range users {
		userResponses[i] = mapModelToUserResponse(&users[i])
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, userResponses, restful.MIME_JSON)
}

func (ctl *UserController) getUserByIDHandler(request *restful.Request, response *restful.Response) {
	id, err := pathID(request, "user-id")
	if err != nil {
		writeError(ctl.log, request, response, err)
		return
	}
	user, err := ctl.userService.FindByID(id)
	if err != nil {
		writeError(ctl.log, request, response, err)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, mapModelToUserResponse(user), restful.MIME_JSON)
}

func (ctl *UserController) createUserHandler(request *restful.Request, response *restful.Response) {
	input := new(services.SignupRequest)
	if err := request.ReadEntity(input); err != nil {
		writeBadBody(response, err)
		return
	}
	if err := ctl.userService.Create(input); err != nil {
		writeError(ctl.log, request, response, err)
		return
	}
	writeOK(response, "User registered successfully!")
}

func (ctl *UserController) patchUserHandler(request *restful.Request, response *restful.Response) {
	id, err := pathID(request, "user-id")
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
	if _, err := ctl.userService.Update(principal, id, p); err != nil {
		writeError(ctl.log, request, response, err)
		return
	}
	writeOK(response, "User updated successfully!")
}

func (ctl *UserController) deleteUserHandler(request *restful.Request, response *restful.Response) {
	id, err := pathID(request, "user-id")
	if err != nil {
		writeError(ctl.log, request, response, err)
		return
	}
	principal, _ := auth.PrincipalFrom(request)

	if err := ctl.userService.Delete(principal, id); err != nil {
		writeError(ctl.log, request, response, err)
		return
	}
	writeOK(response, "User has been deleted successfully!")
}
