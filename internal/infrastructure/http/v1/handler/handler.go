package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/podusowski/walkers/internal/manager"
	"github.com/podusowski/walkers/internal/tile"
)

const (
	internalServerErrorText = "the server encountered an error and could not process your request"

	// viewportWindow is how long a requested tile counts as visible. HTTP
	// clients have no viewport to report, so recent requests stand in for
	// one.
	viewportWindow = 30 * time.Second
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Handler struct {
	validate *validator.Validate

	// mu serializes access to the manager, which expects a single logical
	// thread. The handler goroutines take turns being that thread.
	mu       sync.Mutex
	manager  *manager.Manager
	lastSeen map[tile.ID]time.Time
	now      func() time.Time
}

func NewHandler(v *validator.Validate, m *manager.Manager) *Handler {
	return &Handler{
		validate: v,
		manager:  m,
		lastSeen: make(map[tile.ID]time.Time),
		now:      time.Now,
	}
}

// resolve runs one engine pass with the sliding viewport of recently
// requested tiles and returns the view for id.
func (h *Handler) resolve(id tile.ID) manager.TileView {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	h.lastSeen[id] = now

	visible := make([]tile.ID, 0, len(h.lastSeen))
	for seen, at := range h.lastSeen {
		if now.Sub(at) > viewportWindow {
			delete(h.lastSeen, seen)
			continue
		}
		visible = append(visible, seen)
	}

	return h.manager.Resolve(visible)[id]
}

func (h *Handler) stats() manager.Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.manager.Stats()
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusInternalServerError, internalServerErrorText, nil)
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	r := response{
		Success: success,
		Message: message,
		Data:    data,
	}

	c.JSON(code, r)
}
