package icloud

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"icloud-photo-downloader/internal/downloader"
	"icloud-photo-downloader/internal/icloud/api"
)

// ErrNoPhotoService is returned when the account has no iCloud Photos web
// service.
var ErrNoPhotoService = errors.New("iCloud Photos is not available for this account")

// Session is an open iCloud session.
type Session struct {
	api      *api.Client
	pageSize int

	mu   sync.Mutex
	info *api.AccountInfo
}

// Session implements downloader.Session.
var _ downloader.Session = (*Session)(nil)

// RequiresTwoFactor reports whether a two-factor code must be validated
// before the library can be listed.
func (s *Session) RequiresTwoFactor() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info.RequiresTwoFactor()
}

// ValidateCode submits a two-factor code. On success the session is
// trusted and reopened, and the result reports whether Apple now considers
// it fully authenticated. A rejected code is false with a nil error.
func (s *Session) ValidateCode(ctx context.Context, code string) (bool, error) {
	ok, err := s.api.VerifySecurityCode(ctx, code)
	if err != nil || !ok {
		return false, err
	}
	if err := s.api.TrustSession(ctx); err != nil {
		// The code was accepted but the session stays untrusted, which the
		// next account login reports.
		slog.Warn("failed to trust session", "error", err)
	}
	info, err := s.api.AccountLogin(ctx)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
	return !info.RequiresTwoFactor(), nil
}

// ListItems checks that the library is indexed and lists every photo.
func (s *Session) ListItems(ctx context.Context) ([]downloader.Item, error) {
	endpoint := s.endpoint()
	if endpoint == "" {
		return nil, ErrNoPhotoService
	}
	if err := s.api.CheckIndexingState(ctx, endpoint); err != nil {
		return nil, err
	}
	var items []downloader.Item
	for photo, err := range s.Photos(ctx) {
		if err != nil {
			return nil, err
		}
		items = append(items, photo)
	}
	return items, nil
}

// endpoint returns the photo database endpoint, or "" if there is none.
func (s *Session) endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return api.PhotosEndpoint(s.info)
}
