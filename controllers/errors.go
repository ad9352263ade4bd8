package controllers

import (
	"net/http"
	"strconv"

	"github.com/Mishari713/BMS/apperrors"

	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

// MessageResponse is the body of every non-entity response.
type MessageResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeMessage(response *restful.Response, code int, message string) {
	_ = response.WriteHeaderAndJson(code, MessageResponse{Code: code, Message: message}, restful.MIME_JSON)
}

func writeOK(response *restful.Response, message string) {
	writeMessage(response, http.StatusOK, message)
}

// writeError translates a service error into a {code,message} response.
// Anything that is not an AppError is logged and reported as a 500.
func writeError(log *zap.Logger, request *restful.Request, response *restful.Response, err error) {
	appErr := apperrors.From(err)
	if appErr.Kind == apperrors.KindInternal {
		log.Error("Unhandled service error",
			zap.String("method", request.Request.Method),
			zap.String("path", request.Request.URL.Path),
			zap.Error(err))
	}
	writeMessage(response, appErr.Code, appErr.Message)
}

func writeBadBody(response *restful.Response, err error) {
	writeMessage(response, http.StatusBadRequest, "Invalid request body: "+err.Error())
}

// pathID parses a numeric path parameter.
func pathID(request *restful.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(request.PathParameter(name), 10, 32)
	if err != nil || id == 0 {
		return 0, apperrors.BadRequest("Invalid %s format", name)
	}
	return uint(id), nil
}
