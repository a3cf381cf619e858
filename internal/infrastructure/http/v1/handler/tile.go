package handler

import (
	"bytes"
	"image/png"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/podusowski/walkers/internal/manager"
	"github.com/podusowski/walkers/internal/tile"
	"github.com/podusowski/walkers/pkg/logger"
)

type tileParams struct {
	Z int `validate:"gte=0,lte=30"`
	X int `validate:"gte=0"`
	Y int `validate:"gte=0"`
}

type placeholderResponse struct {
	Ancestor string      `json:"ancestor"`
	Region   tile.Region `json:"region"`
}

func (h *Handler) Tile(c *gin.Context) {
	l := logger.FromContext(c.Request.Context())

	strX := c.Param("x")
	strY := c.Param("y")
	strZ := c.Param("z")

	x, err := strconv.Atoi(strX)
	if err != nil {
		l.Warn("invalid x parameter", "x", strX, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "x should be integer",
		})
		return
	}

	y, err := strconv.Atoi(strY)
	if err != nil {
		l.Warn("invalid y parameter", "y", strY, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "y should be integer",
		})
		return
	}

	z, err := strconv.Atoi(strZ)
	if err != nil {
		l.Warn("invalid z parameter", "z", strZ, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "z should be integer",
		})
		return
	}

	if err := h.validate.Struct(tileParams{Z: z, X: x, Y: y}); err != nil {
		l.Warn("tile parameters out of range", "z", z, "x", x, "y", y)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "tile coordinates out of range",
		})
		return
	}

	id := tile.ID{X: uint32(x), Y: uint32(y), Zoom: uint8(z)}
	view := h.resolve(id)

	switch view.Kind {
	case manager.Exact:
		h.respondWithTile(c, l, view.Tile)
	case manager.Placeholder:
		h.RespondWithJSON(c, http.StatusOK, "placeholder", placeholderResponse{
			Ancestor: view.Source.String(),
			Region:   view.Region,
		})
	case manager.Pending:
		h.RespondWithJSON(c, http.StatusAccepted, "tile download pending, retry", nil)
	default:
		h.RespondWithJSON(c, http.StatusNotFound, "tile unavailable", nil)
	}
}

func (h *Handler) respondWithTile(c *gin.Context, l logger.Logger, t *tile.Tile) {
	switch img := t.Image.(type) {
	case tile.Raster:
		var buf bytes.Buffer
		if err := png.Encode(&buf, img.Pixels); err != nil {
			l.Error("failed to encode tile", "tile", t.ID.String(), "error", err)
			h.RespondWithInternalServerError(c)
			return
		}
		c.Data(http.StatusOK, "image/png", buf.Bytes())
	case tile.Vector:
		contentType := "application/x-protobuf"
		if img.Compressed {
			c.Header("Content-Encoding", "gzip")
		}
		c.Data(http.StatusOK, contentType, img.Data)
	default:
		h.RespondWithInternalServerError(c)
	}
}
