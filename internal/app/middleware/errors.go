package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/medical-record/internal/app/models"
)

const internalErrorMessage = "Internal Server Error"

// ErrorHandler turns the last error a handler pushed with c.Error into a
// JSON response. Unknown errors are logged and answered with a generic 500.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, body := errorResponse(err)
		if status == http.StatusInternalServerError {
			logger.Error("Unhandled request error",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(err))
		}
		c.AbortWithStatusJSON(status, body)
	}
}

func errorResponse(err error) (int, gin.H) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, gin.H{"error": validationErr.Error(), "fields": validationErr.Fields}
	}

	var conflictErr *models.ConflictError
	if errors.As(err, &conflictErr) {
		return http.StatusConflict, gin.H{"error": conflictErr.Error(), "field": conflictErr.Field}
	}

	status, fallback := statusFor(err)
	if status == http.StatusInternalServerError {
		return status, gin.H{"error": internalErrorMessage}
	}

	var publicErr *models.PublicError
	if errors.As(err, &publicErr) {
		return status, gin.H{"error": publicErr.Message}
	}
	return status, gin.H{"error": fallback}
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrBadRequest):
		return http.StatusBadRequest, "Bad request"
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, "Already exists"
	case errors.Is(err, models.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many requests"
	default:
		return http.StatusInternalServerError, internalErrorMessage
	}
}
