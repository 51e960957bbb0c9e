// Package icloud connects the downloader to an iCloud photo library.
package icloud

import (
	"context"
	"log/slog"
	"sync"

	"icloud-photo-downloader/internal/downloader"
	"icloud-photo-downloader/internal/icloud/api"
)

// Client opens iCloud sessions. Every call to [Client.Login] starts a new
// session with its own cookies.
type Client struct {
	conf api.Config

	mu   sync.Mutex
	last *Session
}

// Client implements downloader.Authenticator.
var _ downloader.Authenticator = (*Client)(nil)

// clientOpt is used for configuring the [Client].
type clientOpt func(*Client)

// WithRemote sets the iCloud endpoints. If multiple are provided, the last
// is used.
func WithRemote(conf api.Config) clientOpt {
	return func(c *Client) { c.conf = conf }
}

// NewClient initializes a new client with the provided options. Without
// [WithRemote] the production endpoints are used.
func NewClient(opts ...clientOpt) *Client {
	client := &Client{conf: api.DefaultConfig()}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Login signs in with the Apple ID and password and opens an iCloud
// session. The returned session may still need a two-factor code.
func (c *Client) Login(ctx context.Context, accountID, password string) (downloader.Session, error) {
	sess, err := c.login(ctx, accountID, password)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (c *Client) login(ctx context.Context, accountID, password string) (*Session, error) {
	log := slog.With("account", accountID)
	remote := api.NewClient(c.conf)
	if err := remote.SignIn(ctx, accountID, password); err != nil {
		log.Debug("sign in failed", "error", err)
		return nil, err
	}
	info, err := remote.AccountLogin(ctx)
	if err != nil {
		log.Debug("account login failed", "error", err)
		return nil, err
	}
	sess := &Session{api: remote, info: info, pageSize: remote.Config().PageSize}
	log.Info("opened iCloud session",
		"two_factor", info.RequiresTwoFactor(),
		"photos", sess.endpoint() != "",
	)

	c.mu.Lock()
	c.last = sess
	c.mu.Unlock()
	return sess, nil
}
