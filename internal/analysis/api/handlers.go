package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"PitchAdvisor/internal/analysis"
	"PitchAdvisor/internal/deckstore"
	"PitchAdvisor/internal/models"
	"PitchAdvisor/internal/parser/publisher"
	"PitchAdvisor/pkg/logger"
)

// API provides handlers for the nlp worker.
type API struct {
	service   *analysis.Service
	publisher *publisher.AnalyzePublisher
	logger    *logger.Logger
}

// NewAPI creates a new API handler. publisher may be nil when Kafka is not
// configured; the async endpoint then responds 503.
func NewAPI(service *analysis.Service, pub *publisher.AnalyzePublisher, log *logger.Logger) *API {
	return &API{service: service, publisher: pub, logger: log}
}

type analyzeRequest struct {
	DeckID string `json:"deck_id" binding:"required"`
}

// DetectStructureHandler runs structure detection and KPI extraction
// synchronously over a deck's persisted slides.
func (a *API) DetectStructureHandler(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	structure, kpis, err := a.service.AnalyzeDeck(c.Request.Context(), req.DeckID)
	if err != nil {
		if errors.Is(err, deckstore.ErrDeckNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Deck not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to analyze deck"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"structure": structure,
		"kpis":      kpis,
	})
}

// DetectStructureAsyncHandler enqueues an analysis request on the
// deck.analyze topic.
func (a *API) DetectStructureAsyncHandler(c *gin.Context) {
	if a.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Async analysis is not configured"})
		return
	}

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	task := models.AnalyzeTask{
		DeckID:      req.DeckID,
		TraceID:     c.GetHeader("X-Trace-ID"),
		SubmittedAt: time.Now(),
	}
	if err := a.publisher.PublishAnalyzeTask(c.Request.Context(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue analyze task"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"deck_id": req.DeckID, "status": "queued"})
}

// GetStructureHandler returns the stored structure analysis of a deck.
func (a *API) GetStructureHandler(c *gin.Context) {
	deckID := c.Param("id")

	structure, err := a.service.GetStructure(c.Request.Context(), deckID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve analysis"})
		return
	}
	if structure == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deck has not been analyzed"})
		return
	}

	c.JSON(http.StatusOK, structure)
}

// GetKPIsHandler returns the stored KPI analysis of a deck.
func (a *API) GetKPIsHandler(c *gin.Context) {
	deckID := c.Param("id")

	kpis, err := a.service.GetKPIs(c.Request.Context(), deckID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve analysis"})
		return
	}
	if kpis == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deck has not been analyzed"})
		return
	}

	c.JSON(http.StatusOK, kpis)
}

// HealthHandler reports liveness.
func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "nlp_worker"})
}
