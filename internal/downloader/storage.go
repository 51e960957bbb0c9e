package downloader

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"
)

// StorageConfig holds configuration values for writing to the local
// filesystem.
//
// It is organized to take advantage of TOML parsing, however this package does
// not handle parsing and has no expectation on how it will be initialized.
type StorageConfig struct {
	// DirCacheSize is how many created directories are remembered so
	// they are not re-created for every item.
	DirCacheSize int
	// WriteBufferSize is the copy buffer used per file.
	WriteBufferSize HumanBytes
}

// HumanBytes is a custom type to decode human-readable byte values into an
// integer.
type HumanBytes uint64

// UnmarshalText implements toml.TextUnmarshaler.
func (h *HumanBytes) UnmarshalText(text []byte) error {
	nbytes, err := humanize.ParseBytes(string(text))
	*h = HumanBytes(nbytes)
	return err
}

// String converts the integer back into a human-readable representation.
func (h *HumanBytes) String() string {
	if h == nil {
		return ""
	}
	return humanize.IBytes(uint64(*h))
}

const (
	defaultDirCacheSize    = 256
	defaultWriteBufferSize = 1 << 20
)

// Storage creates directories and writes downloaded files.
type Storage struct {
	dirs    *lru.Cache[string, struct{}]
	bufSize int
}

// NewStorage initializes a [Storage]. Zero values in conf fall back to
// defaults.
func NewStorage(conf StorageConfig) *Storage {
	size := conf.DirCacheSize
	if size <= 0 {
		size = defaultDirCacheSize
	}
	bufSize := int(conf.WriteBufferSize)
	if bufSize <= 0 {
		bufSize = defaultWriteBufferSize
	}
	dirs, _ := lru.New[string, struct{}](size)
	buf := HumanBytes(bufSize)
	slog.Debug("initialized storage", "dirCacheSize", size, "writeBufferSize", buf.String())
	return &Storage{dirs: dirs, bufSize: bufSize}
}

// EnsureDir creates dir and any missing parents. It is safe to call
// repeatedly; directories created earlier are remembered.
func (s *Storage) EnsureDir(dir string) error {
	dir = filepath.Clean(dir)
	if s.dirs.Contains(dir) {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return nil
		}
		// Removed behind our back.
		s.dirs.Remove(dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	s.dirs.Add(dir, struct{}{})
	return nil
}

// WriteFile copies r into path, replacing any existing file. The data is
// staged in a temporary file next to path and renamed into place, so path
// never holds a partial file.
func (s *Storage) WriteFile(path string, r io.Reader) (int64, error) {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*.part")
	if err != nil {
		return 0, err
	}
	log := slog.With("path", path, "tmp", tmp.Name())

	// CreateTemp uses 0600; downloaded media should be readable like any
	// other file the user creates.
	if err := tmp.Chmod(0644); err != nil {
		log.Debug("failed to chmod temporary file", "error", err)
	}
	// Hide (*os.File).ReadFrom so the configured buffer is used.
	n, err := io.CopyBuffer(struct{ io.Writer }{tmp}, r, make([]byte, s.bufSize))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warn("failed to remove temporary file", "error", rmErr)
		}
		return n, err
	}
	log.Debug("wrote file", "size", humanize.Bytes(uint64(n)))
	return n, nil
}
