package controllers

import (
	"net/http"

	"github.com/Mishari713/BMS/auth"
	"github.com/Mishari713/BMS/services"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

// AuthController serves /api/auth. None of its routes require a token.
type AuthController struct {
	authService services.AuthService
	tokens      *auth.TokenService
	log         *zap.Logger
}

func NewAuthController(authService services.AuthService, tokens *auth.TokenService, log *zap.Logger) *AuthController {
	return &AuthController{authService: authService, tokens: tokens, log: log}
}

// RegisterRoutes sets up the auth routes on ws.
func (ctl *AuthController) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/api/auth").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	tags := []string{"auth"}

	ws.Route(ws.POST("/signin").To(ctl.signInHandler).
		Doc("Sign in with username and password; sets the session cookie").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(services.SigninRequest{}).
		Returns(http.StatusOK, "User logged in successfully!", MessageResponse{}).
		Returns(http.StatusBadRequest, "Another session is active", MessageResponse{}).
		Returns(http.StatusUnauthorized, "Invalid username or password", MessageResponse{}))

	ws.Route(ws.POST("/signup").To(ctl.signUpHandler).
		Doc("Register a new local account").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(services.SignupRequest{}).
		Returns(http.StatusOK, "User registered successfully!", MessageResponse{}).
		Returns(http.StatusBadRequest, "Username or email already in use", MessageResponse{}))

	ws.Route(ws.GET("/signout").To(ctl.signOutHandler).
		Doc("End the active session and clear the session cookie").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "You've been signed out successfully!", MessageResponse{}).
		Returns(http.StatusBadRequest, "No active session", MessageResponse{}))
}

func (ctl *AuthController) signInHandler(request *restful.Request, response *restful.Response) {
	input := new(services.SigninRequest)
	if err := request.ReadEntity(input); err != nil {
		writeBadBody(response, err)
		return
	}

	token, err := ctl.authService.SignIn(request.Request.Context(), input)
	if err != nil {
		writeError(ctl.log, request, response, err)
		return
	}

	http.SetCookie(response.ResponseWriter, ctl.tokens.Cookie(token))
	writeOK(response, "User logged in successfully!")
}

func (ctl *AuthController) signUpHandler(request *restful.Request, response *restful.Response) {
	input := new(services.SignupRequest)
	if err := request.ReadEntity(input); err != nil {
		writeBadBody(response, err)
		return
	}
	if err := ctl.authService.SignUp(input); err != nil {
		writeError(ctl.log, request, response, err)
		return
	}
	writeOK(response, "User registered successfully!")
}

func (ctl *AuthController) signOutHandler(request *restful.Request, response *restful.Response) {
	token := auth.TokenFromRequest(request.Request, ctl.tokens.CookieName())
	if err := ctl.authService.SignOut(request.Request.Context(), token); err != nil {
		writeError(ctl.log, request, response, err)
		return
	}

	http.SetCookie(response.ResponseWriter, ctl.tokens.CleanCookie())
	writeOK(response, "You've been signed out successfully!")
}
