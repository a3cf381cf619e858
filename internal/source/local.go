package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/podusowski/walkers/internal/tile"
)

// LocalSource reads tiles from a directory laid out as z/x/y.png.
type LocalSource struct {
	dir      string
	tileSize int
	maxZoom  uint8
}

var _ Source = (*LocalSource)(nil)

func NewLocalSource(dir string, maxZoom uint8) *LocalSource {
	if maxZoom == 0 {
		maxZoom = 19
	}
	return &LocalSource{
		dir:      dir,
		tileSize: 256,
		maxZoom:  maxZoom,
	}
}

func (s *LocalSource) path(id tile.ID) string {
	return filepath.Join(s.dir,
		strconv.FormatUint(uint64(id.Zoom), 10),
		strconv.FormatUint(uint64(id.X), 10),
		strconv.FormatUint(uint64(id.Y), 10)+".png",
	)
}

func (s *LocalSource) Fetch(_ context.Context, id tile.ID) ([]byte, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, &FetchError{ID: id, Err: fmt.Errorf("failed to read tile file: %w", err)}
	}
	return data, nil
}

func (s *LocalSource) Attribution() Attribution {
	return Attribution{Text: "Local tiles"}
}

func (s *LocalSource) TileSize() int {
	return s.tileSize
}

func (s *LocalSource) MaxZoom() uint8 {
	return s.maxZoom
}
