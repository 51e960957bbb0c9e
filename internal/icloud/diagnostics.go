package icloud

// ClientDiagnostics holds the information from the call to [Diagnostics].
type ClientDiagnostics struct {
	AuthEndpoint     string
	SetupEndpoint    string
	Authenticated    bool
	TwoFactorPending bool
	PhotosDiscovered bool
}

// Diagnostics reports how the client is configured and the state of the
// most recent session, if any.
func (c *Client) Diagnostics() ClientDiagnostics {
	c.mu.Lock()
	sess := c.last
	c.mu.Unlock()

	diagnostics := ClientDiagnostics{
		AuthEndpoint:  c.conf.AuthEndpoint,
		SetupEndpoint: c.conf.SetupEndpoint,
	}
	if sess == nil {
		return diagnostics
	}
	diagnostics.Authenticated = sess.api.Authenticated()
	diagnostics.TwoFactorPending = sess.RequiresTwoFactor()
	diagnostics.PhotosDiscovered = sess.endpoint() != ""
	return diagnostics
}
