package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"icloud-photo-downloader/internal/downloader"
	"icloud-photo-downloader/internal/icloud/icloudtest"
)

func testConfig(t *testing.T, srv *icloudtest.Server) Config {
	conf := DefaultConfig()
	conf.Remote = srv.Config()
	conf.App.AppleID = "me@example.com"
	conf.App.DownloadDir = t.TempDir()
	return conf
}

func TestRunTerminal_Download(t *testing.T) {
	srv := icloudtest.NewServer(t,
		icloudtest.Photo{Name: "IMG_0001.JPG", Created: time.Date(2023, 7, 4, 9, 0, 0, 0, time.UTC), Data: []byte("one")},
		icloudtest.Photo{Name: "IMG_0002.JPG", Created: time.Date(2023, 8, 1, 9, 0, 0, 0, time.UTC), Data: []byte("two")},
	)
	srv.TwoFactor = true
	t.Setenv("ICLOUD_PASSWORD", srv.Password)
	conf := testConfig(t, srv)

	var out bytes.Buffer
	summary, err := RunTerminal(context.Background(), conf, downloader.ModeFull, TerminalOptions{
		In:  strings.NewReader(srv.Code + "\ny\n"),
		Out: &out,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out.String())
	}
	if summary.Downloaded != 2 {
		t.Fatalf("expected 2 downloads, got %d\n%s", summary.Downloaded, out.String())
	}
	data, err := os.ReadFile(filepath.Join(conf.App.DownloadDir, "2023-08", "img_0002.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Fatalf(`expected "two", got %q`, data)
	}
	for _, expected := range []string{
		"Enter the 2FA code sent to your devices:",
		"Found 2 items. Start download? [y/N]",
		"[2/2] IMG_0002.JPG",
		"Success",
	} {
		if !strings.Contains(out.String(), expected) {
			t.Fatalf("expected %q in output:\n%s", expected, out.String())
		}
	}
}

func TestRunTerminal_Declined(t *testing.T) {
	srv := icloudtest.NewServer(t, icloudtest.Photo{Name: "a.jpg", Data: []byte("a")})
	t.Setenv("ICLOUD_PASSWORD", srv.Password)
	conf := testConfig(t, srv)

	var out bytes.Buffer
	summary, err := RunTerminal(context.Background(), conf, downloader.ModeFull, TerminalOptions{
		In:  strings.NewReader("n\n"),
		Out: &out,
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Outcome != downloader.Declined {
		t.Fatalf("expected declined, got %v", summary.Outcome)
	}
	if srv.Downloads() != 0 {
		t.Fatalf("expected no downloads, got %d", srv.Downloads())
	}
	entries, err := os.ReadDir(conf.App.DownloadDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected an empty folder, got %d entries", len(entries))
	}
}

func TestRunTerminal_Yes(t *testing.T) {
	srv := icloudtest.NewServer(t, icloudtest.Photo{Name: "a.jpg", Data: []byte("a")})
	t.Setenv("ICLOUD_PASSWORD", srv.Password)
	conf := testConfig(t, srv)

	var out bytes.Buffer
	summary, err := RunTerminal(context.Background(), conf, downloader.ModeFull, TerminalOptions{
		Yes: true,
		In:  strings.NewReader(""),
		Out: &out,
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Downloaded != 1 {
		t.Fatalf("expected 1 download, got %d\n%s", summary.Downloaded, out.String())
	}
}

func TestRunTerminal_InvalidCode(t *testing.T) {
	srv := icloudtest.NewServer(t, icloudtest.Photo{Name: "a.jpg"})
	srv.TwoFactor = true
	t.Setenv("ICLOUD_PASSWORD", srv.Password)
	conf := testConfig(t, srv)

	var out bytes.Buffer
	_, err := RunTerminal(context.Background(), conf, downloader.ModeTest, TerminalOptions{
		In:  strings.NewReader("000000\n"),
		Out: &out,
	})
	if !errors.Is(err, downloader.ErrAuth) {
		t.Fatalf("expected an auth error, got %v", err)
	}
	if !strings.Contains(out.String(), "Error: Invalid 2FA code.") {
		t.Fatalf("expected the error in output:\n%s", out.String())
	}
}

func TestRunTerminal_PromptsForInputs(t *testing.T) {
	srv := icloudtest.NewServer(t, icloudtest.Photo{Name: "a.jpg", Data: []byte("a")})
	conf := testConfig(t, srv)
	conf.App.AppleID = ""
	t.Setenv("ICLOUD_PASSWORD", "")
	os.Unsetenv("ICLOUD_PASSWORD")

	var out bytes.Buffer
	summary, err := RunTerminal(context.Background(), conf, downloader.ModeTest, TerminalOptions{
		In:  strings.NewReader("me@example.com\n" + srv.Password + "\n"),
		Out: &out,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out.String())
	}
	if summary.Downloaded != 1 {
		t.Fatalf("expected 1 download, got %d", summary.Downloaded)
	}
	if !strings.Contains(out.String(), "Test Mode Complete") {
		t.Fatalf("expected the test summary in output:\n%s", out.String())
	}
}

func TestRunTerminal_MissingDestination(t *testing.T) {
	srv := icloudtest.NewServer(t)
	t.Setenv("ICLOUD_PASSWORD", srv.Password)
	conf := testConfig(t, srv)
	conf.App.DownloadDir = ""

	var out bytes.Buffer
	_, err := RunTerminal(context.Background(), conf, downloader.ModeFull, TerminalOptions{
		In:  strings.NewReader(""),
		Out: &out,
	})
	if !errors.Is(err, downloader.ErrMissingField) {
		t.Fatalf("expected a missing field error, got %v", err)
	}
	if !strings.Contains(out.String(), "Please select a download folder.") {
		t.Fatalf("expected the error in output:\n%s", out.String())
	}
	if srv.Queries() != 0 {
		t.Fatal("no request should be made with missing inputs")
	}
}
