package labreports

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FACorreiaa/medical-record/internal/app/middleware"
	"github.com/FACorreiaa/medical-record/internal/app/models"
)

type Handler struct {
	service Service
	log     *zap.Logger
}

func NewHandler(service Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	g := rg.Group("/lab-reports", requireAuth)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.DELETE("/:id", h.Delete)
}

func (h *Handler) List(c *gin.Context) {
	reports, err := h.service.List(c.Request.Context(), middleware.GetUserIDFromContext(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

// Create answers with the stored report itself, which is what the dashboard
// appends to its list.
func (h *Handler) Create(c *gin.Context) {
	var params models.LabReportParams
	if err := c.ShouldBindJSON(&params); err != nil {
		h.log.Debug("Invalid lab report payload", zap.Error(err))
		_ = c.Error(models.NewPublicError(models.ErrBadRequest, "Invalid JSON body"))
		return
	}

	report, err := h.service.Create(c.Request.Context(), middleware.GetUserIDFromContext(c), params)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (h *Handler) Delete(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(models.NewPublicError(models.ErrBadRequest, "Invalid lab report id"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), middleware.GetUserIDFromContext(c), reportID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			err = models.NewPublicError(models.ErrNotFound, "Lab report not found")
		}
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Lab report deleted successfully"})
}
