package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
)

// AccountInfo contains the session information returned by the iCloud
// setup service.
type AccountInfo struct {
	DSInfo struct {
		DSID       string `json:"dsid"`
		FullName   string `json:"fullName"`
		HSAVersion int    `json:"hsaVersion"`
	} `json:"dsInfo"`
	HSAChallengeRequired bool                  `json:"hsaChallengeRequired"`
	HSATrustedBrowser    bool                  `json:"hsaTrustedBrowser"`
	Webservices          map[string]Webservice `json:"webservices"`
}

// Webservice is an iCloud service the account has access to.
type Webservice struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

// RequiresTwoFactor reports whether Apple wants a two-factor code before
// the session can be used.
func (a AccountInfo) RequiresTwoFactor() bool {
	return a.DSInfo.HSAVersion == 2 && (a.HSAChallengeRequired || !a.HSATrustedBrowser)
}

// ServiceURL returns the URL of the named web service, or "" if the
// account has no access to it.
func (a AccountInfo) ServiceURL(name string) string {
	return a.Webservices[name].URL
}

// SignIn submits the Apple ID and password. A pending two-factor challenge
// is not an error; check [AccountInfo.RequiresTwoFactor] after
// [Client.AccountLogin].
func (c *Client) SignIn(ctx context.Context, accountName, password string) error {
	trustTokens := []string{}
	if c.sess.trustToken != "" {
		trustTokens = append(trustTokens, c.sess.trustToken)
	}
	resp, err := c.post(ctx, c.conf.AuthEndpoint+"/signin?isRememberMeEnabled=true", map[string]any{
		"accountName": accountName,
		"password":    password,
		"rememberMe":  true,
		"trustTokens": trustTokens,
	})
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusConflict:
		// 409 means a second factor is pending.
		discard(resp)
	case http.StatusUnauthorized, http.StatusForbidden:
		discard(resp)
		return ErrInvalidCredentials
	default:
		return checkStatusCode(resp)
	}
	if c.sess.sessionToken == "" {
		return errors.New("sign in response did not include a session token")
	}
	return nil
}

// AccountLogin exchanges the session token for an iCloud session and
// returns the account information.
func (c *Client) AccountLogin(ctx context.Context) (*AccountInfo, error) {
	if c.sess.sessionToken == "" {
		return nil, ErrNotAuthenticated
	}
	resp, err := c.post(ctx, c.conf.SetupEndpoint+"/accountLogin", map[string]any{
		"accountCountryCode": c.sess.accountCountry,
		"dsWebAuthToken":     c.sess.sessionToken,
		"extended_login":     true,
		"trustToken":         c.sess.trustToken,
	})
	if err != nil {
		return nil, err
	}
	if err := checkStatusCode(resp); err != nil {
		return nil, err
	}
	var info AccountInfo
	if err := decode(resp, &info); err != nil {
		return nil, fmt.Errorf("decoding account info: %w", err)
	}
	c.sess.dsid = info.DSInfo.DSID
	return &info, nil
}

// codeRejected is the service error code for a wrong verification code.
const codeRejected = "-21669"

// VerifySecurityCode submits a two-factor code sent to a trusted device.
// It returns false with a nil error if Apple rejected the code.
func (c *Client) VerifySecurityCode(ctx context.Context, code string) (bool, error) {
	resp, err := c.post(ctx, c.conf.AuthEndpoint+"/verify/trusteddevice/securitycode", map[string]any{
		"securityCode": map[string]string{"code": code},
	})
	if err != nil {
		return false, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		discard(resp)
		return true, nil
	}
	defer discard(resp)
	var body errorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &body)
	rejected := slices.ContainsFunc(body.ServiceErrors, func(e ServiceError) bool {
		return e.Code == codeRejected
	})
	if rejected || resp.StatusCode == http.StatusBadRequest {
		return false, nil
	}
	if len(body.ServiceErrors) > 0 {
		return false, fmt.Errorf("verifying security code: %w", body.ServiceErrors[0])
	}
	return false, fmt.Errorf("verifying security code: unexpected status code %d", resp.StatusCode)
}

// TrustSession asks Apple to trust this session after a successful
// two-factor verification, which yields a new session token and trust
// token.
func (c *Client) TrustSession(ctx context.Context) error {
	resp, err := c.get(ctx, c.conf.AuthEndpoint+"/2sv/trust")
	if err != nil {
		return err
	}
	if err := checkStatusCode(resp); err != nil {
		return err
	}
	discard(resp)
	return nil
}
