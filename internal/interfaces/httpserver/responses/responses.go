package responses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"adscope/utils/platformerrors"
)

type ErrorResponse struct {
	Code          string `json:"code"` // UUID from PlatformError
	Error         string `json:"error"`
	ErrorInstance error  `json:"-"`
}

// HandleError translates a domain error into an HTTP response. The status
// code follows the error classification.
func HandleError(reqCtx *gin.Context, err error, message string) {
	var platformErr *platformerrors.PlatformError
	if errors.As(err, &platformErr) {
		statusCode := platformerrors.ErrorTypeToHTTPStatus(platformErr.Type)
		reqCtx.AbortWithStatusJSON(statusCode, ErrorResponse{
			Code:          platformErr.UUID,
			Error:         message,
			ErrorInstance: platformErr,
		})
		return
	}

	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Error:         message,
		ErrorInstance: err,
	})
}

// HandleNewError creates a typed error at the route layer and responds with it.
func HandleNewError(reqCtx *gin.Context, errorType platformerrors.ErrorType, message string) {
	err := platformerrors.NewError(reqCtx.Request.Context(), platformerrors.LayerRoute, errorType, message, nil)
	reqCtx.AbortWithStatusJSON(platformerrors.ErrorTypeToHTTPStatus(errorType), ErrorResponse{
		Code:          err.UUID,
		Error:         message,
		ErrorInstance: err,
	})
}
