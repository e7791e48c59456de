// internal/handler/errors.go
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"evactron-service/internal/repository"
	"evactron-service/internal/service"
	"evactron-service/internal/utils"
	"evactron-service/pkg/evactron"
)

// statusFor maps service and vendor errors onto HTTP status codes
func statusFor(err error) int {
	var (
		callErr    *evactron.CallError
		connectErr *evactron.ConnectError
		fault      *evactron.Fault
	)
	switch {
	case errors.Is(err, evactron.ErrNotConnected),
		errors.Is(err, service.ErrAlreadyConnected),
		errors.Is(err, service.ErrPortInUse):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidPort),
		errors.Is(err, service.ErrNothingToUpdate):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	case errors.As(err, &connectErr), errors.As(err, &callErr), errors.As(err, &fault):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err through the error envelope, logging server side
// failures
func respondError(c *gin.Context, logger *utils.ServiceLogger, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(message,
			zap.Error(err),
			zap.String("request_id", utils.GetRequestID(c)),
		)
	}
	utils.ErrorResponse(c, status, message, err)
}
