package controllers

import (
	"fmt"
	"net/http"

	"github.com/Mishari713/BMS/metrics"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/go-openapi/spec"
	"go.uber.org/zap"
)

const APIDocsPath = "/v3/api-docs"

// RouteRegistrar is implemented by every controller.
type RouteRegistrar interface {
	RegisterRoutes(ws *restful.WebService)
}

// NewContainer builds the HTTP container: one WebService per controller, the
// request filters, /metrics (when m is set) and the OpenAPI document.
func NewContainer(log *zap.Logger, m *metrics.Metrics, controllers ...RouteRegistrar) *restful.Container {
	container := restful.NewContainer()
	container.Router(restful.CurlyRouter{})
	container.RecoverHandler(func(panicReason interface{}, w http.ResponseWriter) {
		log.Error("Recovered from panic", zap.String("reason", fmt.Sprint(panicReason)), zap.Stack("stack"))
		w.Header().Set("Content-Type", restful.MIME_JSON)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":500,"message":"Internal server error"}`))
	})

	container.Filter(RequestID())
	container.Filter(MyLogger(log))

	for _, ctl := range controllers {
		ws := new(restful.WebService)
		if m != nil {
			ws.Filter(m.Filter())
		}
		ctl.RegisterRoutes(ws)
		container.Add(ws)
	}

	if m != nil {
		container.Handle("/metrics", m.Handler())
	}
	container.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices:                   container.RegisteredWebServices(),
		APIPath:                       APIDocsPath,
		PostBuildSwaggerObjectHandler: enrichSwaggerObject,
	}))
	return container
}

func enrichSwaggerObject(swo *spec.Swagger) {
	swo.Info = &spec.Info{
		InfoProps: spec.InfoProps{
			Title:       "BMS",
			Description: "Book management service",
			Version:     "1.0.0",
		},
	}
	swo.Tags = []spec.Tag{
		{TagProps: spec.TagProps{Name: "auth", Description: "Sign in, sign up and sign out"}},
		{TagProps: spec.TagProps{Name: "books", Description: "Managing books"}},
		{TagProps: spec.TagProps{Name: "admin", Description: "Managing users"}},
		{TagProps: spec.TagProps{Name: "oauth2", Description: "OAuth2 login"}},
	}
}
