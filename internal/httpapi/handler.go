// Package httpapi exposes the conversation service over HTTP.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"ai-concierge/internal/conversation"
	"ai-concierge/internal/trace"
)

// HeaderTraceID carries the correlation id of a chat request.
const HeaderTraceID = "X-Trace-Id"

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// Handler handles HTTP requests.
type Handler struct {
	orchestrator *conversation.Orchestrator
}

func NewHandler(orchestrator *conversation.Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

// NewServer creates the echo server with middleware and routes registered.
func NewServer(orchestrator *conversation.Orchestrator) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	NewHandler(orchestrator).RegisterRoutes(e)
	return e
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/chat", h.Chat)
	e.GET("/v1/stats", h.Stats)
	e.GET("/health", h.Health)
}

// Chat runs one conversation turn.
// POST /v1/chat
func (h *Handler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		// an unreadable body is reported like missing fields
		req = ChatRequest{}
	}

	traceID := trace.NewTraceID()
	c.Response().Header().Set(HeaderTraceID, traceID)

	result, err := h.orchestrator.HandleTurn(c.Request().Context(), req.UserID, req.Message, traceID)
	var verr *conversation.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, result)
	}
	return c.JSON(http.StatusOK, result)
}

// Stats reports live session counters.
// GET /v1/stats
func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.orchestrator.Store().Stats())
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
