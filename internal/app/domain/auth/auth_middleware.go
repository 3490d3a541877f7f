package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/FACorreiaa/medical-record/internal/app/middleware"
	"github.com/FACorreiaa/medical-record/internal/app/models"
)

// Middleware guards a route. It pulls the token from the cookie or bearer
// header, verifies it and attaches the stored user to the context. Errors
// are left for middleware.ErrorHandler.
func Middleware(service AuthService, carrier *SessionCarrier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _, ok := carrier.ExtractToken(c.Request)
		if !ok {
			_ = c.Error(models.NewPublicError(models.ErrUnauthenticated, msgNotAuthenticated))
			c.Abort()
			return
		}

		user, err := service.Authenticate(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		middleware.SetUser(c, user)
		c.Next()
	}
}
