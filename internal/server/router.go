// Package server exposes the card/chunk/view manager surface over HTTP to
// the editor host. Transport is deliberately thin: payloads map one-to-one
// onto manager requests and every entity is returned as its JSON snapshot.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storyboardlab/cardboard/internal/cards"
)

var errMissingManager = errors.New("cards manager dependency required")

// Dependencies carries the collaborators of the HTTP handler.
type Dependencies struct {
	Manager *cards.Manager
	Logger  *zap.Logger
}

// NewHTTPHandler wires the full manager surface into a gin router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Manager == nil {
		return nil, errMissingManager
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{manager: deps.Manager, logger: logger}

	router.GET("/healthz", handler.handleHealth)

	router.POST("/cards", handler.handleCreateCard)
	router.GET("/cards", handler.handleListCards)
	router.GET("/cards/:id", handler.handleGetCard)
	router.PATCH("/cards/:id", handler.handleUpdateCard)
	router.DELETE("/cards/:id", handler.handleDeleteCard)
	router.POST("/cards/:id/split", handler.handleSplitCard)
	router.POST("/cards/merge", handler.handleMergeCards)
	router.POST("/cards/arrange", handler.handleArrangeCards)

	router.POST("/chunks", handler.handleCreateChunk)
	router.GET("/chunks", handler.handleListChunks)
	router.GET("/chunks/:id", handler.handleGetChunk)
	router.PATCH("/chunks/:id", handler.handleUpdateChunk)
	router.DELETE("/chunks/:id", handler.handleDeleteChunk)
	router.GET("/chunks/:id/export", handler.handleExportChunk)

	router.POST("/views", handler.handleCreateView)
	router.GET("/views", handler.handleListViews)
	router.GET("/views/:id", handler.handleGetView)
	router.PATCH("/views/:id", handler.handleUpdateView)
	router.DELETE("/views/:id", handler.handleDeleteView)

	router.POST("/import", handler.handleImportText)

	return router, nil
}

type httpHandler struct {
	manager *cards.Manager
	logger  *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createCardPayload struct {
	Content  string          `json:"content"`
	Title    string          `json:"title"`
	Tags     []string        `json:"tags"`
	Position *cards.Position `json:"position"`
	Author   string          `json:"author"`
}

func (h *httpHandler) handleCreateCard(c *gin.Context) {
	var payload createCardPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	card, err := h.manager.CreateCard(c.Request.Context(), cards.CreateCardRequest{
		Content:  payload.Content,
		Title:    payload.Title,
		Tags:     payload.Tags,
		Position: payload.Position,
		Author:   payload.Author,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

func (h *httpHandler) handleListCards(c *gin.Context) {
	list, err := h.manager.ListCards(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": list})
}

func (h *httpHandler) handleGetCard(c *gin.Context) {
	card, err := h.manager.GetCard(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

type metadataPatchPayload struct {
	ChunkID  *string `json:"chunkId"`
	Color    *string `json:"color"`
	Priority *int    `json:"priority"`
}

type updateCardPayload struct {
	Title    *string               `json:"title"`
	Content  *string               `json:"content"`
	Tags     *[]string             `json:"tags"`
	Status   *cards.CardStatus     `json:"status"`
	Position *cards.Position       `json:"position"`
	Metadata *metadataPatchPayload `json:"metadata"`
	Author   string                `json:"author"`
}

func (h *httpHandler) handleUpdateCard(c *gin.Context) {
	var payload updateCardPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	patch := cards.CardPatch{
		Title:    payload.Title,
		Content:  payload.Content,
		Tags:     payload.Tags,
		Status:   payload.Status,
		Position: payload.Position,
		Author:   payload.Author,
	}
	if payload.Metadata != nil {
		patch.Metadata = &cards.MetadataPatch{
			ChunkID:  payload.Metadata.ChunkID,
			Color:    payload.Metadata.Color,
			Priority: payload.Metadata.Priority,
		}
	}

	card, err := h.manager.UpdateCard(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *httpHandler) handleDeleteCard(c *gin.Context) {
	removed, err := h.manager.DeleteCard(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type splitCardPayload struct {
	SplitPoint *int `json:"splitPoint"`
}

type splitCardResponse struct {
	Original cards.Card `json:"original"`
	Created  cards.Card `json:"created"`
}

func (h *httpHandler) handleSplitCard(c *gin.Context) {
	var payload splitCardPayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.SplitPoint == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	original, created, err := h.manager.SplitCard(c.Request.Context(), c.Param("id"), *payload.SplitPoint)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, splitCardResponse{Original: original, Created: created})
}

type mergeCardsPayload struct {
	CardIDA string `json:"cardIdA"`
	CardIDB string `json:"cardIdB"`
}

func (h *httpHandler) handleMergeCards(c *gin.Context) {
	var payload mergeCardsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	card, err := h.manager.MergeCards(c.Request.Context(), payload.CardIDA, payload.CardIDB)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

type arrangeCardsPayload struct {
	CardIDs []string          `json:"cardIds"`
	Layout  cards.ChunkLayout `json:"layout"`
}

func (h *httpHandler) handleArrangeCards(c *gin.Context) {
	var payload arrangeCardsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	arranged, err := h.manager.AutoArrangeCards(c.Request.Context(), payload.CardIDs, payload.Layout)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": arranged})
}

type createChunkPayload struct {
	Name    string             `json:"name"`
	Purpose string             `json:"purpose"`
	CardIDs []string           `json:"cardIds"`
	Layout  *cards.ChunkLayout `json:"layout"`
}

func (h *httpHandler) handleCreateChunk(c *gin.Context) {
	var payload createChunkPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	chunk, err := h.manager.CreateChunk(c.Request.Context(), cards.CreateChunkRequest{
		Name:    payload.Name,
		Purpose: payload.Purpose,
		CardIDs: payload.CardIDs,
		Layout:  payload.Layout,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chunk)
}

func (h *httpHandler) handleListChunks(c *gin.Context) {
	list, err := h.manager.ListChunks(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chunks": list})
}

func (h *httpHandler) handleGetChunk(c *gin.Context) {
	chunk, err := h.manager.GetChunk(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chunk)
}

type updateChunkPayload struct {
	Name    *string            `json:"name"`
	Purpose *string            `json:"purpose"`
	CardIDs *[]string          `json:"cardIds"`
	Layout  *cards.ChunkLayout `json:"layout"`
}

func (h *httpHandler) handleUpdateChunk(c *gin.Context) {
	var payload updateChunkPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	chunk, err := h.manager.UpdateChunk(c.Request.Context(), c.Param("id"), cards.ChunkPatch{
		Name:    payload.Name,
		Purpose: payload.Purpose,
		CardIDs: payload.CardIDs,
		Layout:  payload.Layout,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chunk)
}

func (h *httpHandler) handleDeleteChunk(c *gin.Context) {
	removed, err := h.manager.DeleteChunk(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleExportChunk(c *gin.Context) {
	text, err := h.manager.ExportChunkAsText(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

type createViewPayload struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	ChunkIDs    []string            `json:"chunkIds"`
	Settings    *cards.ViewSettings `json:"viewSettings"`
}

func (h *httpHandler) handleCreateView(c *gin.Context) {
	var payload createViewPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	view, err := h.manager.CreateView(c.Request.Context(), cards.CreateViewRequest{
		Name:        payload.Name,
		Description: payload.Description,
		ChunkIDs:    payload.ChunkIDs,
		Settings:    payload.Settings,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *httpHandler) handleListViews(c *gin.Context) {
	list, err := h.manager.ListViews(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"views": list})
}

func (h *httpHandler) handleGetView(c *gin.Context) {
	view, err := h.manager.GetView(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type updateViewPayload struct {
	Name        *string             `json:"name"`
	Description *string             `json:"description"`
	ChunkIDs    *[]string           `json:"chunkIds"`
	Settings    *cards.ViewSettings `json:"viewSettings"`
}

func (h *httpHandler) handleUpdateView(c *gin.Context) {
	var payload updateViewPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	view, err := h.manager.UpdateView(c.Request.Context(), c.Param("id"), cards.ViewPatch{
		Name:         payload.Name,
		Description:  payload.Description,
		ChunkIDs:     payload.ChunkIDs,
		ViewSettings: payload.Settings,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *httpHandler) handleDeleteView(c *gin.Context) {
	removed, err := h.manager.DeleteView(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type importTextPayload struct {
	Text      string   `json:"text"`
	ChunkName string   `json:"chunkName"`
	SplitBy   string   `json:"splitBy"`
	Tags      []string `json:"tags"`
}

func (h *httpHandler) handleImportText(c *gin.Context) {
	var payload importTextPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	chunk, err := h.manager.ImportTextAsCards(c.Request.Context(), cards.ImportRequest{
		Text:      payload.Text,
		ChunkName: payload.ChunkName,
		SplitBy:   cards.SplitMode(payload.SplitBy),
		Tags:      payload.Tags,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chunk)
}

func (h *httpHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cards.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, cards.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_argument"})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failure"})
	}
}
