package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/podusowski/walkers/internal/tile"
)

// HTTPOptions control how tiles are fetched over HTTP.
type HTTPOptions struct {
	// UserAgent sent with every request. Many providers (OpenStreetMap
	// among them) require a meaningful one.
	UserAgent string

	// Timeout per request. Zero means the default of 30 seconds.
	Timeout time.Duration

	// TileSize and MaxZoom describe the provider's grid.
	TileSize int
	MaxZoom  uint8

	Attribution Attribution
}

// HTTPSource fetches tiles from a templated URL with {z}, {x} and {y}
// placeholders.
type HTTPSource struct {
	template    string
	userAgent   string
	tileSize    int
	maxZoom     uint8
	attribution Attribution
	client      *http.Client
}

var _ Source = (*HTTPSource)(nil)

func NewHTTPSource(template string, opts HTTPOptions) *HTTPSource {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	tileSize := opts.TileSize
	if tileSize == 0 {
		tileSize = 256
	}
	maxZoom := opts.MaxZoom
	if maxZoom == 0 {
		maxZoom = 19
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "walkers/1.0"
	}

	return &HTTPSource{
		template:    template,
		userAgent:   userAgent,
		tileSize:    tileSize,
		maxZoom:     maxZoom,
		attribution: opts.Attribution,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// OpenStreetMap returns a source for the public OSM tile servers.
// See https://operations.osmfoundation.org/policies/tiles/ before using it.
func OpenStreetMap(userAgent string) *HTTPSource {
	return NewHTTPSource("https://tile.openstreetmap.org/{z}/{x}/{y}.png", HTTPOptions{
		UserAgent: userAgent,
		MaxZoom:   19,
		Attribution: Attribution{
			Text: "OpenStreetMap contributors",
			URL:  "https://www.openstreetmap.org/copyright",
		},
	})
}

// TileURL expands the template for the given tile.
func (s *HTTPSource) TileURL(id tile.ID) string {
	r := strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(id.Zoom), 10),
		"{x}", strconv.FormatUint(uint64(id.X), 10),
		"{y}", strconv.FormatUint(uint64(id.Y), 10),
	)
	return r.Replace(s.template)
}

func (s *HTTPSource) Fetch(ctx context.Context, id tile.ID) ([]byte, error) {
	url := s.TileURL(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{ID: id, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{ID: id, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{ID: id, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{ID: id, Err: fmt.Errorf("failed to read tile data: %w", err)}
	}

	return data, nil
}

func (s *HTTPSource) Attribution() Attribution {
	return s.attribution
}

func (s *HTTPSource) TileSize() int {
	return s.tileSize
}

func (s *HTTPSource) MaxZoom() uint8 {
	return s.maxZoom
}
