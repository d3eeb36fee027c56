package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fyp-inbox/internal/domain"
)

// statusFor traduce errores de dominio a codigos HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrInvalidAudience):
		return http.StatusUnprocessableEntity, "audience resolved to no recipients"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "too many messages"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func respondError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Error(err))
	} else {
		logger.Warn(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}
