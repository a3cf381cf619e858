package store

import (
	"context"
	"database/sql"
	"embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/podusowski/walkers/internal/tile"
	"github.com/podusowski/walkers/pkg/logger"
)

//go:embed migrations
var migrations embed.FS

// SQLiteStore keeps raw tiles in a single SQLite file, keyed by z/x/y.
type SQLiteStore struct {
	db     *sql.DB
	logger logger.Logger
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(path string, l logger.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{
		db:     db,
		logger: l,
	}

	if err := s.runMigrations(); err != nil {
		return nil, err
	}

	l.Info("sqlite tile store initialized", "path", path)

	return s, nil
}

func (s *SQLiteStore) runMigrations() error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}

	return goose.Up(s.db, "migrations")
}

func (s *SQLiteStore) Get(ctx context.Context, id tile.ID) ([]byte, bool, error) {
	s.logger.Debug("sqlite store get", "tile", id.String())

	query := `SELECT tile_data
	FROM tile_store
	WHERE x = ? AND y = ? AND z = ?`

	var tileData []byte
	err := s.db.QueryRowContext(ctx, query, id.X, id.Y, id.Zoom).Scan(&tileData)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		s.logger.Error("sqlite store get failed", "tile", id.String(), "error", err)
		return nil, false, err
	}

	return tileData, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, id tile.ID, data []byte) error {
	s.logger.Debug("sqlite store set", "tile", id.String(), "size", len(data))

	query := `INSERT INTO tile_store (x, y, z, tile_data)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(x, y, z) DO UPDATE SET tile_data = excluded.tile_data`

	_, err := s.db.ExecContext(ctx, query, id.X, id.Y, id.Zoom, data)
	if err != nil {
		s.logger.Error("sqlite store set failed", "tile", id.String(), "error", err)
		return err
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
