package controllers

import (
	"net/http"

	"github.com/Mishari713/BMS/auth"
	"github.com/Mishari713/BMS/services"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const oauth2StateCookie = "oauth2_state"

// OAuth2Controller runs the browser side of the authorization-code flow.
type OAuth2Controller struct {
	authService     services.AuthService
	providers       map[string]auth.OAuth2Provider
	successRedirect string
	log             *zap.Logger
}

func NewOAuth2Controller(authService services.AuthService, providers []auth.OAuth2Provider, successRedirect string, log *zap.Logger) *OAuth2Controller {
	byName := make(map[string]auth.OAuth2Provider, len(providers))
	for _, p := range providers {
		byName[p.Registration()] = p
	}
	return &OAuth2Controller{
		authService:     authService,
		providers:       byName,
		successRedirect: successRedirect,
		log:             log,
	}
}

func (ctl *OAuth2Controller) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/").Produces(restful.MIME_JSON)
	tags := []string{"oauth2"}

	ws.Route(ws.GET("/oauth2/authorization/{registration}").To(ctl.authorizeHandler).
		Doc("Start an OAuth2 login").
		Param(ws.PathParameter("registration", "Provider registration id, e.g. google").DataType("string")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusFound, "Redirect to the provider", nil).
		Returns(http.StatusBadRequest, "Unknown registration", MessageResponse{}))

	ws.Route(ws.GET("/login/oauth2/code/{registration}").To(ctl.callbackHandler).
		Doc("OAuth2 callback; sets the JWT cookie and redirects").
		Param(ws.PathParameter("registration", "Provider registration id").DataType("string")).
		Param(ws.QueryParameter("code", "Authorization code").DataType("string")).
		Param(ws.QueryParameter("state", "Opaque state").DataType("string")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusFound, "Redirect after login", nil).
		Returns(http.StatusUnauthorized, "Login failed", MessageResponse{}))
}

func (ctl *OAuth2Controller) provider(request *restful.Request, response *restful.Response) (auth.OAuth2Provider, bool) {
	registration := request.PathParameter("registration")
	p, ok := ctl.providers[registration]
	if !ok {
		writeMessage(response, http.StatusBadRequest, "Unknown OAuth2 registration '"+registration+"'")
	}
	return p, ok
}

func (ctl *OAuth2Controller) authorizeHandler(request *restful.Request, response *restful.Response) {
	p, ok := ctl.provider(request, response)
	if !ok {
		return
	}
	state := uuid.NewString()
	http.SetCookie(response.ResponseWriter, &http.Cookie{
		Name:     oauth2StateCookie,
		Value:    state,
		Path:     "/login/oauth2",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	redirect(response, p.AuthCodeURL(state))
}

func (ctl *OAuth2Controller) callbackHandler(request *restful.Request, response *restful.Response) {
	p, ok := ctl.provider(request, response)
	if !ok {
		return
	}

	state, err := request.Request.Cookie(oauth2StateCookie)
	if err != nil || state.Value == "" || state.Value != request.QueryParameter("state") {
		writeMessage(response, http.StatusUnauthorized, "Invalid OAuth2 state")
		return
	}
	code := request.QueryParameter("code")
	if code == "" {
		writeMessage(response, http.StatusUnauthorized, "Missing authorization code")
		return
	}

	ctx := request.Request.Context()
	identity, err := p.Exchange(ctx, code)
	if err != nil {
		ctl.log.Warn("OAuth2 exchange failed", zap.String("registration", p.Registration()), zap.Error(err))
		writeMessage(response, http.StatusUnauthorized, "OAuth2 login failed")
		return
	}
	token, err := ctl.authService.OAuth2Login(ctx, identity, p.Registration())
	if err != nil {
		writeError(ctl.log, request, response, err)
		return
	}

	http.SetCookie(response.ResponseWriter, &http.Cookie{Name: oauth2StateCookie, Path: "/login/oauth2", MaxAge: -1})
	http.SetCookie(response.ResponseWriter, auth.OAuth2Cookie(token))
	redirect(response, ctl.successRedirect)
}

// redirect goes through restful.Response so the status is seen by filters.
func redirect(response *restful.Response, location string) {
	response.AddHeader("Location", location)
	response.WriteHeader(http.StatusFound)
}
