package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/promolens/backend/internal/domain"
	"github.com/promolens/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	flyers   *usecase.FlyerService
	products *usecase.MatchingService
	units    *usecase.UnitParser
	logger   logrus.FieldLogger
}

// NewHandler creates a new HTTP handler. A nil flyer service makes the
// extraction endpoint answer 503.
func NewHandler(flyers *usecase.FlyerService, products *usecase.MatchingService, units *usecase.UnitParser, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		flyers:   flyers,
		products: products,
		units:    units,
		logger:   logger.WithField("component", "http"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "promolens-backend",
		"version": "1.0.0",
	})
}

// ExtractPromotions runs the layout and extraction stages over an
// annotation posted by the caller
func (h *Handler) ExtractPromotions(c *gin.Context) {
	if h.flyers == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Flyer extraction is not configured",
		})
		return
	}

	var req domain.ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	response, err := h.flyers.ProcessAnnotation(c.Request.Context(), req.FlyerName, req.Annotation)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// DictionaryStats reports the sizes of the loaded dictionaries
func (h *Handler) DictionaryStats(c *gin.Context) {
	stats := gin.H{"products": 0, "units": 0}
	if h.products != nil {
		stats["products"] = h.products.Size()
	}
	if h.units != nil {
		stats["units"] = h.units.Size()
	}
	c.JSON(http.StatusOK, stats)
}

// handleError maps domain errors to HTTP status codes
func (h *Handler) handleError(c *gin.Context, err error) {
	var extractionErr *domain.ExtractionError

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &extractionErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   err.Error(),
			"image":   extractionErr.Image,
			"cluster": extractionErr.Cluster,
		})
	default:
		h.logger.WithError(err).Error("extraction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
