package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"bsky-notifier/internal/application"
	"bsky-notifier/internal/domain"
)

// Handler holds all HTTP handler methods.
type Handler struct {
	svc    *application.Service
	hub    *Hub
	status func() string
}

// NewHandler creates a new Handler. status reports the poll loop state and
// may be nil.
func NewHandler(svc *application.Service, hub *Hub, status func() string) *Handler {
	return &Handler{svc: svc, hub: hub, status: status}
}

// accountRequest is the add/update payload.
type accountRequest struct {
	Handle      string                      `json:"handle"`
	Preferences map[domain.ChannelType]bool `json:"notification_preferences"`
}

// ListAccounts GET /api/accounts
func (h *Handler) ListAccounts(c echo.Context) error {
	accounts, err := h.svc.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	if accounts == nil {
		accounts = []*domain.Account{}
	}
	return c.JSON(http.StatusOK, map[string]any{"data": map[string]any{"accounts": accounts}})
}

// AddAccount POST /api/accounts
func (h *Handler) AddAccount(c echo.Context) error {
	var req accountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Handle == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "handle is required")
	}

	account, err := h.svc.Add(c.Request().Context(), req.Handle, req.Preferences)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"data": account})
}

// RemoveAccount DELETE /api/accounts/:handle
func (h *Handler) RemoveAccount(c echo.Context) error {
	if err := h.svc.Remove(c.Request().Context(), c.Param("handle")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdatePreferences PATCH /api/accounts/:handle/preferences
func (h *Handler) UpdatePreferences(c echo.Context) error {
	var prefs map[domain.ChannelType]bool
	if err := c.Bind(&prefs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	account, err := h.svc.UpdatePreferences(c.Request().Context(), c.Param("handle"), prefs)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": account})
}

// ToggleAccount POST /api/accounts/:handle/toggle
func (h *Handler) ToggleAccount(c echo.Context) error {
	account, err := h.svc.Toggle(c.Request().Context(), c.Param("handle"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": account})
}

// Stream GET /api/stream — SSE endpoint backing the browser channel.
func (h *Handler) Stream(c echo.Context) error {
	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sendCh := make(chan []byte, 32)
	client := h.hub.Register(sendCh)
	defer h.hub.Unregister(client)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"ok\"}\n\n")
	w.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case msg, ok := <-sendCh:
			if !ok {
				return nil
			}
			if _, err := w.Write(msg); err != nil {
				return nil
			}
			w.Flush()

		case <-ctx.Done():
			log.Debug().Msg("SSE stream closed by client")
			return nil
		}
	}
}

// Health GET /health
func (h *Handler) Health(c echo.Context) error {
	pollerState := "unknown"
	if h.status != nil {
		pollerState = h.status()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"poller":      pollerState,
		"sse_clients": h.hub.ConnectedCount(),
	})
}

// writeError maps domain sentinels onto HTTP status codes.
func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrProfileNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateAccount):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidChannel), errors.Is(err, domain.ErrInvalidHandle):
		status = http.StatusBadRequest
	default:
		log.Error().Err(err).Msg("internal error")
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
