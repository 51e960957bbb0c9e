package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"icloud-photo-downloader/internal/icloud/api"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[Remote]
SetupEndpoint = "http://setup.example"
PageSize = 50

[App]
AppleID = "file@example.com"
DownloadDir = "/photos"
TimeZone = "UTC+2"
DirCacheSize = 8
WriteBufferSize = "64 KiB"
LogLevel = "debug"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ICLOUD_APPLE_ID", "env@example.com")

	conf, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Remote.SetupEndpoint != "http://setup.example" || conf.Remote.PageSize != 50 {
		t.Fatalf("unexpected remote config %+v", conf.Remote)
	}
	if conf.Remote.AuthEndpoint != api.DefaultAuthEndpoint {
		t.Fatalf("expected the default auth endpoint, got %q", conf.Remote.AuthEndpoint)
	}
	if conf.App.AppleID != "env@example.com" {
		t.Fatalf("expected the environment to take precedence, got %q", conf.App.AppleID)
	}
	if conf.App.DownloadDir != "/photos" || conf.App.TimeZone != "UTC+2" {
		t.Fatalf("unexpected app config %+v", conf.App)
	}
	if conf.App.DirCacheSize != 8 || conf.App.WriteBufferSize != 64<<10 {
		t.Fatalf("unexpected storage config %+v", conf.App.StorageConfig)
	}
	if conf.Level() != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", conf.Level())
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	conf, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if conf.Remote != api.DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", conf.Remote)
	}
	if conf.Level() != slog.LevelInfo {
		t.Fatalf("expected info level, got %v", conf.Level())
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[App]\nWriteBufferSize = \"lots\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an invalid size to be rejected")
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("ICLOUD_PHOTO_DOWNLOADER_CONFIG", "")
	if got := ConfigPath(""); got != "config.toml" {
		t.Fatalf(`expected "config.toml", got %q`, got)
	}
	t.Setenv("ICLOUD_PHOTO_DOWNLOADER_CONFIG", "/etc/env.toml")
	if got := ConfigPath(""); got != "/etc/env.toml" {
		t.Fatalf("expected the environment path, got %q", got)
	}
	if got := ConfigPath("flag.toml"); got != "flag.toml" {
		t.Fatalf("expected the flag path, got %q", got)
	}
}
