package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type statsResponse struct {
	Cached      int    `json:"cached"`
	Pending     int    `json:"pending"`
	Failed      int    `json:"failed"`
	Attribution string `json:"attribution"`
}

func (h *Handler) Stats(c *gin.Context) {
	stats := h.stats()

	h.RespondWithJSON(c, http.StatusOK, "engine stats", statsResponse{
		Cached:      stats.Cached,
		Pending:     stats.Pending,
		Failed:      stats.Failed,
		Attribution: h.manager.Attribution().Text,
	})
}
