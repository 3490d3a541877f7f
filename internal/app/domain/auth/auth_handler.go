package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/medical-record/internal/app/middleware"
	"github.com/FACorreiaa/medical-record/internal/app/models"
	"github.com/FACorreiaa/medical-record/internal/app/observability/metrics"
)

type AuthHandlers struct {
	authService AuthService
	carrier     *SessionCarrier
	logger      *zap.Logger
}

func NewAuthHandlers(authService AuthService, carrier *SessionCarrier, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		carrier:     carrier,
		logger:      logger,
	}
}

// RegisterRoutes mounts the auth endpoints on rg (normally /api/auth).
func (h *AuthHandlers) RegisterRoutes(rg *gin.RouterGroup, requireAuth, loginLimiter gin.HandlerFunc) {
	rg.POST("/register", h.Register)
	rg.POST("/login", loginLimiter, h.Login)
	rg.GET("/me", requireAuth, h.Me)
	rg.GET("/profile", requireAuth, h.Me)
	rg.POST("/logout", h.Logout)
}

func (h *AuthHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.observe(c, "register", "bad_request")
		_ = c.Error(models.NewPublicError(models.ErrBadRequest, "Invalid JSON body"))
		return
	}

	user, token, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		h.observe(c, "register", outcome(err))
		_ = c.Error(err)
		return
	}

	h.carrier.SetSession(c, token)
	h.observe(c, "register", "success")
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.observe(c, "login", "bad_request")
		_ = c.Error(models.NewPublicError(models.ErrBadRequest, "Invalid JSON body"))
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		h.observe(c, "login", outcome(err))
		_ = c.Error(err)
		return
	}

	h.carrier.SetSession(c, token)
	h.observe(c, "login", "success")
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

// Me returns the identity the auth middleware resolved.
func (h *AuthHandlers) Me(c *gin.Context) {
	user := middleware.GetUserFromContext(c)
	if user == nil {
		_ = c.Error(models.NewPublicError(models.ErrUnauthenticated, msgNotAuthenticated))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout only clears the cookie. Tokens are not revocable.
func (h *AuthHandlers) Logout(c *gin.Context) {
	h.carrier.ClearSession(c)
	h.observe(c, "logout", "success")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AuthHandlers) observe(c *gin.Context, endpoint, result string) {
	metrics.Get().AuthRequestsTotal.Add(c.Request.Context(), 1,
		metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("outcome", result),
		))
}

func outcome(err error) string {
	switch {
	case errors.Is(err, models.ErrValidation):
		return "invalid"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	case errors.Is(err, models.ErrUnauthenticated):
		return "denied"
	default:
		return "error"
	}
}
