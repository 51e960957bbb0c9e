package app

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"icloud-photo-downloader/internal/app/controller"
	"icloud-photo-downloader/internal/icloud"
)

// Config is the top-level configuration struct that is loaded via TOML
// decoding of the file given by --config, the ICLOUD_PHOTO_DOWNLOADER_CONFIG
// environment variable, or "config.toml", in that order.
type Config struct {
	icloud.Config
	App struct {
		// AppleID and DownloadDir fill in the form or the CLI inputs.
		AppleID     string
		DownloadDir string
		LogLevel    string
		controller.Config
	}
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{Config: icloud.DefaultConfig()}
}

// ConfigPath returns the configuration file to load.
func ConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv("ICLOUD_PHOTO_DOWNLOADER_CONFIG"); env != "" {
		return env
	}
	return "config.toml"
}

// LoadConfig decodes the file at path over the defaults. A missing file is
// not an error. Environment variables take precedence over the file.
func LoadConfig(path string) (*Config, error) {
	conf := DefaultConfig()
	if _, err := toml.DecodeFile(path, &conf); errors.Is(err, fs.ErrNotExist) {
		slog.Debug("config file not found, using defaults", "path", path)
	} else if err != nil {
		return nil, err
	}

	// Load values from environment variables.
	conf.Remote.HydrateFromEnv()
	if v, ok := os.LookupEnv("ICLOUD_APPLE_ID"); ok {
		conf.App.AppleID = v
	}
	return &conf, nil
}

// Level returns the configured log level, defaulting to info.
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.App.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}
