package records

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
	return &Handler{
		service: service,
		log:     log,
	}
}

// RegisterRoutes mounts /api/records. Every route sits behind requireAuth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	g := rg.Group("/records", requireAuth)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func (h *Handler) List(c *gin.Context) {
	records, err := h.service.List(c.Request.Context(), middleware.GetUserIDFromContext(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) Create(c *gin.Context) {
	var params models.MedicalRecordParams
	if err := c.ShouldBindJSON(&params); err != nil {
		h.log.Debug("Invalid record payload", zap.Error(err))
		_ = c.Error(models.NewPublicError(models.ErrBadRequest, "Invalid JSON body"))
		return
	}

	record, err := h.service.Create(c.Request.Context(), middleware.GetUserIDFromContext(c), params)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Record created successfully", "record": record})
}

func (h *Handler) Update(c *gin.Context) {
	recordID, ok := parseRecordID(c)
	if !ok {
		return
	}

	var params models.MedicalRecordParams
	if err := c.ShouldBindJSON(&params); err != nil {
		h.log.Debug("Invalid record payload", zap.Error(err))
		_ = c.Error(models.NewPublicError(models.ErrBadRequest, "Invalid JSON body"))
		return
	}

	record, err := h.service.Update(c.Request.Context(), middleware.GetUserIDFromContext(c), recordID, params)
	if err != nil {
		_ = c.Error(notFoundAsRecord(err))
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) Delete(c *gin.Context) {
	recordID, ok := parseRecordID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), middleware.GetUserIDFromContext(c), recordID); err != nil {
		_ = c.Error(notFoundAsRecord(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Record deleted successfully"})
}

func parseRecordID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(models.NewPublicError(models.ErrBadRequest, "Invalid record id"))
		return uuid.Nil, false
	}
	return id, true
}

func notFoundAsRecord(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.NewPublicError(models.ErrNotFound, "Record not found")
	}
	return err
}
