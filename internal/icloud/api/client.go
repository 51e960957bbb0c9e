package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// Client provides a raw HTTP client for the iCloud web services. It keeps
// the cookies and session headers Apple hands out, so one Client is one
// login session.
//
// Example:
//
// ```
// client := NewClient(DefaultConfig())
// err := client.SignIn(ctx, "me@example.com", password)
// info, err := client.AccountLogin(ctx)
// ```
type Client struct {
	conf Config
	http *http.Client
	sess *session
}

// Config holds configuration values for configuring the iCloud client.
//
// It is organized to take advantage of TOML parsing, however this package does
// not handle parsing and has no expectation on how it will be initialized.
type Config struct {
	// AuthEndpoint is the Apple ID authentication service.
	AuthEndpoint string
	// SetupEndpoint is the iCloud setup service used to open a session.
	SetupEndpoint string
	// HomeEndpoint is sent as Origin and Referer.
	HomeEndpoint string
	// MaxRetries is how many times a request is retried on connection
	// errors and server errors.
	MaxRetries int
	// PageSize is how many photos are requested per listing page.
	PageSize int
}

const (
	DefaultAuthEndpoint  = "https://idmsa.apple.com/appleauth/auth"
	DefaultSetupEndpoint = "https://setup.icloud.com/setup/ws/1"
	DefaultHomeEndpoint  = "https://www.icloud.com"
	DefaultMaxRetries    = 3
	DefaultPageSize      = 100
)

// DefaultConfig returns the production iCloud endpoints.
func DefaultConfig() Config {
	return Config{
		AuthEndpoint:  DefaultAuthEndpoint,
		SetupEndpoint: DefaultSetupEndpoint,
		HomeEndpoint:  DefaultHomeEndpoint,
		MaxRetries:    DefaultMaxRetries,
		PageSize:      DefaultPageSize,
	}
}

// HydrateFromEnv overwrites any values in Config with their associated
// environment variable value. Environment variables take precedence.
func (c *Config) HydrateFromEnv() {
	if v, ok := os.LookupEnv("ICLOUD_AUTH_ENDPOINT"); ok {
		c.AuthEndpoint = v
	}
	if v, ok := os.LookupEnv("ICLOUD_SETUP_ENDPOINT"); ok {
		c.SetupEndpoint = v
	}
	if v, ok := os.LookupEnv("ICLOUD_HOME_ENDPOINT"); ok {
		c.HomeEndpoint = v
	}
}

// canonicalize fills in empty values and trims trailing slashes.
func (c Config) canonicalize() Config {
	def := DefaultConfig()
	if c.AuthEndpoint == "" {
		c.AuthEndpoint = def.AuthEndpoint
	}
	if c.SetupEndpoint == "" {
		c.SetupEndpoint = def.SetupEndpoint
	}
	if c.HomeEndpoint == "" {
		c.HomeEndpoint = def.HomeEndpoint
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.PageSize <= 0 {
		c.PageSize = def.PageSize
	}
	c.AuthEndpoint = strings.TrimSuffix(c.AuthEndpoint, "/")
	c.SetupEndpoint = strings.TrimSuffix(c.SetupEndpoint, "/")
	c.HomeEndpoint = strings.TrimSuffix(c.HomeEndpoint, "/")
	return c
}

// session is the state Apple returns in response headers and expects back
// on later requests.
type session struct {
	clientID       string
	sessionID      string
	scnt           string
	sessionToken   string
	trustToken     string
	accountCountry string
	dsid           string
}

// widgetKey identifies the iCloud web client to the Apple ID service.
const widgetKey = "d39ba9916b7251055b22c7f910e2ea796ee65e98b2ddecea8f5dde8d9d1a815d"

// appleTransport is a custom http.RoundTripper that adds the iCloud headers
// to every request and records the session headers of every response.
type appleTransport struct {
	next http.RoundTripper
	conf Config
	sess *session
}

func (a appleTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Origin", a.conf.HomeEndpoint)
	req.Header.Set("Referer", a.conf.HomeEndpoint+"/")
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if strings.HasPrefix(req.URL.String(), a.conf.AuthEndpoint) {
		req.Header.Set("X-Apple-OAuth-Client-Id", widgetKey)
		req.Header.Set("X-Apple-OAuth-Client-Type", "firstPartyAuth")
		req.Header.Set("X-Apple-OAuth-Redirect-URI", a.conf.HomeEndpoint)
		req.Header.Set("X-Apple-OAuth-Require-Grant-Code", "true")
		req.Header.Set("X-Apple-OAuth-Response-Mode", "web_message")
		req.Header.Set("X-Apple-OAuth-Response-Type", "code")
		req.Header.Set("X-Apple-OAuth-State", a.sess.clientID)
		req.Header.Set("X-Apple-Widget-Key", widgetKey)
		if a.sess.sessionID != "" {
			req.Header.Set("X-Apple-ID-Session-Id", a.sess.sessionID)
		}
		if a.sess.scnt != "" {
			req.Header.Set("scnt", a.sess.scnt)
		}
	}
	resp, err := a.next.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	a.sess.update(resp.Header)
	return resp, nil
}

// update records the session headers present in h.
func (s *session) update(h http.Header) {
	set := func(dst *string, key string) {
		if v := h.Get(key); v != "" {
			*dst = v
		}
	}
	set(&s.sessionID, "X-Apple-ID-Session-Id")
	set(&s.scnt, "scnt")
	set(&s.sessionToken, "X-Apple-Session-Token")
	set(&s.trustToken, "X-Apple-TwoSV-Trust-Token")
	set(&s.accountCountry, "X-Apple-ID-Account-Country")
}

// NewClient initializes a Client for the configured endpoints. Empty
// values in conf fall back to [DefaultConfig].
func NewClient(conf Config) *Client {
	conf = conf.canonicalize()

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = conf.MaxRetries
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 30 * time.Second
	retryClient.Logger = slog.Default()

	sess := &session{clientID: "auth-" + uuid.NewString()}
	jar, _ := cookiejar.New(nil)
	transport := appleTransport{
		next: &retryablehttp.RoundTripper{Client: retryClient},
		conf: conf,
		sess: sess,
	}
	return &Client{
		conf: conf,
		http: &http.Client{Transport: transport, Jar: jar},
		sess: sess,
	}
}

// Config returns the canonicalized configuration of the client.
func (c *Client) Config() Config { return c.conf }

// Authenticated reports whether the client holds a session token.
func (c *Client) Authenticated() bool { return c.sess.sessionToken != "" }

// get performs a GET request to rawURL.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// post performs a POST request to rawURL with body encoded as JSON.
func (c *Client) post(ctx context.Context, rawURL string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// do sends req. Errors from the retrying transport already name the
// method and URL, so the *url.Error added by http.Client is dropped.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return nil, urlErr.Err
	}
	return resp, err
}

// decode reads a JSON body into v and closes it.
func decode(resp *http.Response, v any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// discard drains and closes a response body so the connection can be
// reused.
func discard(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

var (
	// ErrInvalidCredentials is returned when Apple rejects the Apple ID
	// or password.
	ErrInvalidCredentials = errors.New("invalid Apple ID or password")
	// ErrNotAuthenticated is returned when a request needs a session that
	// was never opened or has expired.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// ServiceError is an error reported in an iCloud response body.
type ServiceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ServiceError) Error() string { return fmt.Sprintf("%s (%s)", e.Message, e.Code) }

// errorResponse is the body shape Apple uses for failures.
type errorResponse struct {
	ServiceErrors []ServiceError `json:"service_errors"`
	Error         string         `json:"error"`
	Reason        string         `json:"reason"`
}

// checkStatusCode is a helper function to check for a 2xx status code and
// return a descriptive error if not. The body of a failed response is
// consumed.
func checkStatusCode(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer discard(resp)
	var body errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	detail := ""
	switch {
	case len(body.ServiceErrors) > 0:
		detail = body.ServiceErrors[0].Error()
	case body.Reason != "":
		detail = body.Reason
	case body.Error != "":
		detail = body.Error
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == 421:
		return fmt.Errorf("%w: status %d %s", ErrNotAuthenticated, resp.StatusCode, detail)
	case detail != "":
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, detail)
	}
	return fmt.Errorf("unexpected status code %d", resp.StatusCode)
}
