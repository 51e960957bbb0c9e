package icloud

import "icloud-photo-downloader/internal/icloud/api"

// Config holds configuration values for connecting to iCloud.
//
// It is organized to take advantage of TOML parsing, however this package does
// not handle parsing and has no expectation on how it will be initialized.
type Config struct {
	// Remote configuration for the iCloud web services.
	Remote api.Config
}

// DefaultConfig returns a Config pointing at the production services.
func DefaultConfig() Config {
	return Config{Remote: api.DefaultConfig()}
}
