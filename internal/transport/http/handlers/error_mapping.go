package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/busline/backoffice-iam/internal/transport/http/middleware"
	"github.com/busline/backoffice-iam/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// commonCases cover the failures every endpoint can surface. Handler-specific cases are checked first.
var commonCases = []ErrorCase{
	{Err: usecase.ErrUnauthenticated, Status: http.StatusUnauthorized, Message: "not authenticated"},
	{Err: usecase.ErrPermissionDenied, Status: http.StatusForbidden, Message: "missing permission"},
	{Err: usecase.ErrInvalidInput, Status: http.StatusBadRequest, Message: "invalid input"},
	{Err: usecase.ErrUnknownPermission, Status: http.StatusBadRequest, Message: "unknown permission"},
	{Err: usecase.ErrStorageUnavailable, Status: http.StatusServiceUnavailable, Message: "storage unavailable"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, set := range [][]ErrorCase{cases, commonCases} {
		for _, cs := range set {
			if cs.Err == nil {
				continue
			}
			if errors.Is(err, cs.Err) {
				if cs.Status >= http.StatusInternalServerError {
					_ = c.Error(err)
				}
				c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
				return
			}
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// requireMark refuses to run a mutating handler that no permission guard admitted.
func requireMark(c *gin.Context) bool {
	if _, ok := middleware.AuthorizedFor(c); ok {
		return true
	}
	c.JSON(http.StatusForbidden, NewErrorResponse(c, "missing permission"))
	return false
}
