package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		HTTP      HTTP      `envPrefix:"HTTP_"`
		Logger    Logger    `envPrefix:"LOGGER_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
		Engine    Engine    `envPrefix:"ENGINE_"`
		Source    Source    `envPrefix:"SOURCE_"`
		Store     Store     `envPrefix:"STORE_"`
		Warmup    Warmup    `envPrefix:"WARMUP_"`
	}

	HTTP struct {
		Server  Server        `envPrefix:"SERVER_"`
		Timeout time.Duration `envPrefix:"TIMEOUT" envDefault:"10s"`
	}

	Server struct {
		Port         string        `env:"PORT" envDefault:"8080"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}

	Logger struct {
		Level string `env:"LEVEL" envDefault:"info"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"walkers"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`
	}

	// Engine controls the tile acquisition core: cache size, download
	// concurrency and how requests that left the viewport are treated.
	Engine struct {
		CacheCapacity        int           `env:"CACHE_CAPACITY" envDefault:"256"`
		MaxParallelDownloads int           `env:"MAX_PARALLEL_DOWNLOADS" envDefault:"6"`
		FetchTimeout         time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
		UserAgent            string        `env:"USER_AGENT" envDefault:"walkers/1.0"`
		QueuePolicy          string        `env:"QUEUE_POLICY" envDefault:"drop" validate:"oneof=drop reorder"`
		ClampZoom            bool          `env:"CLAMP_ZOOM" envDefault:"true"`
	}

	Source struct {
		URLTemplate string `env:"URL_TEMPLATE" envDefault:"https://tile.openstreetmap.org/{z}/{x}/{y}.png"`
		Directory   string `env:"DIRECTORY" envDefault:""`
		MaxZoom     uint8  `env:"MAX_ZOOM" envDefault:"19"`
		TileSize    int    `env:"TILE_SIZE" envDefault:"256"`
	}

	Store struct {
		Backend string `env:"BACKEND" envDefault:"none" validate:"oneof=none sqlite redis"`
		SQLite  SQLite `envPrefix:"SQLITE_"`
		Redis   Redis  `envPrefix:"REDIS_"`
	}

	SQLite struct {
		Path string `env:"PATH" envDefault:"tiles.db"`
	}

	Redis struct {
		Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
		Password string        `env:"PASSWORD" envDefault:""`
		DB       int           `env:"DB" envDefault:"0"`
		TTL      time.Duration `env:"TTL" envDefault:"24h"`
	}

	Warmup struct {
		Levels  int `env:"LEVELS" envDefault:"0"`
		Workers int `env:"WORKERS" envDefault:"2"`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
