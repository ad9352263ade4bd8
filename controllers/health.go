package controllers

import (
	"context"
	"net/http"
	"time"

	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthPath is probed by load balancers and the Consul HTTP check.
const HealthPath = "/healthz"

// HealthController serves HealthPath.
type HealthController struct {
	checks map[string]HealthCheck
	log    *zap.Logger
}

func NewHealthController(checks map[string]HealthCheck, log *zap.Logger) *HealthController {
	return &HealthController{checks: checks, log: log}
}

func (ctl *HealthController) RegisterRoutes(ws *restful.WebService) {
	ws.Path(HealthPath).Produces(restful.MIME_JSON)
	ws.Route(ws.GET("").To(ctl.healthHandler).
		Doc("Liveness and dependency check").
		Returns(http.StatusOK, "UP", HealthResponse{}).
		Returns(http.StatusServiceUnavailable, "DOWN", HealthResponse{}))
}

func (ctl *HealthController) healthHandler(request *restful.Request, response *restful.Response) {
	ctx, cancel := context.WithTimeout(request.Request.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "UP", Checks: make(map[string]string, len(ctl.checks))}
	code := http.StatusOK
	for name, check := range ctl.checks {
		if err := check(ctx); err != nil {
			ctl.log.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			resp.Checks[name] = "DOWN"
			resp.Status = "DOWN"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "UP"
	}
	_ = response.WriteHeaderAndJson(code, resp, restful.MIME_JSON)
}
