package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"PitchAdvisor/internal/deckstore"
	"PitchAdvisor/internal/models"
	"PitchAdvisor/internal/parser"
	"PitchAdvisor/internal/parser/publisher"
	"PitchAdvisor/internal/storage"
	"PitchAdvisor/pkg/logger"
)

// signedURLExpiry 是返回给调用方的幻灯片图像链接的有效期。
const signedURLExpiry = time.Hour

// API provides handlers for the parse worker.
type API struct {
	service   *parser.Service
	store     *deckstore.Store
	gateway   storage.Gateway
	publisher *publisher.ParsePublisher
	logger    *logger.Logger
}

// NewAPI creates a new API handler. publisher may be nil when Kafka is not
// configured; the async endpoint then responds 503.
func NewAPI(service *parser.Service, store *deckstore.Store, gw storage.Gateway, pub *publisher.ParsePublisher, log *logger.Logger) *API {
	return &API{service: service, store: store, gateway: gw, publisher: pub, logger: log}
}

// parseRequest is the payload for both the sync and async parse endpoints.
// DeckID is optional: absent means "register a new deck for this file".
type parseRequest struct {
	DeckID   string `json:"deck_id"`
	FileKey  string `json:"file_key" binding:"required"`
	FileType string `json:"file_type" binding:"required"`
}

// ParseHandler runs a full ingestion synchronously and returns the outcome.
func (a *API) ParseHandler(c *gin.Context) {
	task, ok := a.bindAndRegister(c)
	if !ok {
		return
	}

	count, err := a.service.ParseDeck(c.Request.Context(), task)
	if err != nil {
		a.respondParseError(c, task.DeckID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deck_id": task.DeckID,
		"status":  string(models.DeckStatusParsed),
		"slides":  count,
	})
}

// ParseAsyncHandler enqueues an ingestion request on the deck.parse topic.
func (a *API) ParseAsyncHandler(c *gin.Context) {
	if a.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Async ingestion is not configured"})
		return
	}

	task, ok := a.bindAndRegister(c)
	if !ok {
		return
	}

	if err := a.publisher.PublishParseTask(c.Request.Context(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue parse task"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"deck_id": task.DeckID,
		"status":  "queued",
	})
}

// GetDeckHandler returns a deck record together with its parsed slides.
func (a *API) GetDeckHandler(c *gin.Context) {
	deckID := c.Param("id")

	deck, err := a.store.GetDeck(c.Request.Context(), deckID)
	if err != nil {
		if errors.Is(err, deckstore.ErrDeckNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Deck not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve deck"})
		return
	}

	slides, err := a.store.GetSlides(c.Request.Context(), deckID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve slides"})
		return
	}

	// Attach presigned image links so callers never touch the bucket directly.
	views := make([]slideView, 0, len(slides))
	for _, slide := range slides {
		view := slideView{Slide: slide}
		if slide.ImageObjectKey != "" {
			url, err := a.gateway.SignedURL(c.Request.Context(), slide.ImageObjectKey, signedURLExpiry)
			if err != nil {
				a.logger.WithDeck(deckID).WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to presign slide image")
			} else {
				view.ImageURL = url
			}
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{
		"deck":   deck,
		"slides": views,
	})
}

// slideView is a slide record enriched with a presigned image URL.
type slideView struct {
	models.Slide
	ImageURL string `json:"image_url,omitempty"`
}

// HealthHandler reports liveness.
func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "parse_worker"})
}

// bindAndRegister validates the request and makes sure the deck row exists.
// A request without deck_id registers a fresh deck.
func (a *API) bindAndRegister(c *gin.Context) (models.ParseTask, bool) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return models.ParseTask{}, false
	}

	format, err := parser.ResolveFormat(req.FileType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type: " + req.FileType})
		return models.ParseTask{}, false
	}

	ctx := c.Request.Context()
	if req.DeckID == "" {
		req.DeckID = uuid.New().String()
	}
	if _, err := a.store.GetDeck(ctx, req.DeckID); err != nil {
		if !errors.Is(err, deckstore.ErrDeckNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up deck"})
			return models.ParseTask{}, false
		}
		deck := &models.Deck{
			ID:       req.DeckID,
			FileKey:  req.FileKey,
			FileType: format,
			Status:   models.DeckStatusPending,
		}
		if err := a.store.CreateDeck(ctx, deck); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register deck"})
			return models.ParseTask{}, false
		}
	}

	return models.ParseTask{
		DeckID:      req.DeckID,
		FileKey:     req.FileKey,
		FileType:    string(format),
		TraceID:     c.GetHeader("X-Trace-ID"),
		SubmittedAt: time.Now(),
	}, true
}

// respondParseError maps ingestion errors onto HTTP statuses.
func (a *API) respondParseError(c *gin.Context, deckID string, err error) {
	switch {
	case errors.Is(err, parser.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported or unreadable file", "deck_id": deckID})
	case errors.Is(err, parser.ErrCorruptInput):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "File is corrupt", "deck_id": deckID})
	case errors.Is(err, parser.ErrParseLocked), errors.Is(err, deckstore.ErrParseInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "Deck is already being parsed", "deck_id": deckID})
	case errors.Is(err, deckstore.ErrDeckNotFound), errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Deck or source file not found", "deck_id": deckID})
	default:
		// The service layer already logged the detailed error
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse deck", "deck_id": deckID})
	}
}
