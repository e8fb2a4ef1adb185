package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:"127.0.0.1:8080"`
	DBPath     string `env:"DB_PATH" envDefault:"./data/inspectreport.db"`
	PhotoPath  string `env:"PHOTO_LOCAL_PATH" envDefault:"./data/photos"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile    string `env:"LOG_FILE"`
	LogFormat  string `env:"LOG_FORMAT" envDefault:"json"`

	// StorageQuotaBytes caps the serialized report blob, mirroring the
	// per-origin limit of browser local storage.
	StorageQuotaBytes int `env:"STORAGE_QUOTA_BYTES" envDefault:"5242880"`

	PhotoMaxWidth    int `env:"PHOTO_MAX_WIDTH" envDefault:"520"`
	PhotoMaxHeight   int `env:"PHOTO_MAX_HEIGHT" envDefault:"390"`
	PhotoJPEGQuality int `env:"PHOTO_JPEG_QUALITY" envDefault:"45"`
	DefaultItemCount int `env:"DEFAULT_ITEM_COUNT" envDefault:"8"`

	PDFExport bool   `env:"PDF_EXPORT" envDefault:"true"`
	ChromeBin string `env:"CHROME_BIN"`
}

// Load reads an optional .env file from the working directory and then
// parses the environment. Variables already set in the environment win over
// the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PhotoMaxWidth <= 0 || c.PhotoMaxHeight <= 0 {
		return fmt.Errorf("photo target box must be positive, got %dx%d", c.PhotoMaxWidth, c.PhotoMaxHeight)
	}
	if c.PhotoJPEGQuality < 1 || c.PhotoJPEGQuality > 100 {
		return fmt.Errorf("PHOTO_JPEG_QUALITY must be within 1..100, got %d", c.PhotoJPEGQuality)
	}
	if c.StorageQuotaBytes <= 0 {
		return fmt.Errorf("STORAGE_QUOTA_BYTES must be positive, got %d", c.StorageQuotaBytes)
	}
	if c.DefaultItemCount < 1 {
		return fmt.Errorf("DEFAULT_ITEM_COUNT must be at least 1, got %d", c.DefaultItemCount)
	}
	return nil
}
