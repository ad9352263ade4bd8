package controllers

import (
	"time"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-Id"

// RequestID makes sure every request and response carries an id.
func RequestID() restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		id := req.Request.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			req.Request.Header.Set(RequestIDHeader, id)
		}
		resp.AddHeader(RequestIDHeader, id)
		chain.ProcessFilter(req, resp)
	}
}

// MyLogger logs one line per request once it has been handled.
func MyLogger(logger *zap.Logger) restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		startTime := time.Now()

		chain.ProcessFilter(req, resp)

		logger.Info("Request",
			zap.String("request_id", req.Request.Header.Get(RequestIDHeader)),
			zap.String("client_ip", req.Request.RemoteAddr),
			zap.String("method", req.Request.Method),
			zap.Int("status_code", resp.StatusCode()),
			zap.Duration("latency", time.Since(startTime)),
			zap.String("user_agent", req.Request.UserAgent()),
			zap.String("path", req.Request.URL.Path),
		)
	}
}
