package bridge

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"cms-bridge/internal/logger"
)

const (
	logoutPathFragment = "/admin/logout"
	maxLogoutBody      = 64 << 10
)

// logoutTransport watches responses for a successful admin logout.
type logoutTransport struct {
	next     http.RoundTripper
	onLogout func(redirect string)
}

func (t *logoutTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	if strings.Contains(req.URL.String(), logoutPathFragment) &&
		resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		t.onLogout(logoutRedirect(resp))
	}
	return resp, nil
}

// logoutRedirect reads the redirectUrl a logout response may carry and
// puts the body back for the caller.
func logoutRedirect(resp *http.Response) string {
	if resp.Body == nil || resp.StatusCode == http.StatusNoContent {
		return ""
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxLogoutBody))
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	var body struct {
		RedirectURL string `json:"redirectUrl"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	return body.RedirectURL
}

// InstallLogoutObserver wraps the client's transport so that a successful
// logout clears every auth cookie on the page and sends the browser to the
// external sign-in URL, or to the one the server names when none is
// configured. It reports false, and changes nothing, when c is
// already observed.
func (b *Bridge) InstallLogoutObserver(c *http.Client) bool {
	if _, ok := c.Transport.(*logoutTransport); ok {
		return false
	}

	next := c.Transport
	if next == nil {
		next = http.DefaultTransport
	}

	c.Transport = &logoutTransport{
		next:     next,
		onLogout: b.afterLogout,
	}
	return true
}

func (b *Bridge) afterLogout(serverRedirect string) {
	for _, name := range AuthCookies {
		b.page.ClearCookie(name)
	}

	target := firstNonEmpty(b.cfg.SignInURL, serverRedirect)
	logger.Info("admin logged out, leaving the CMS", map[string]any{
		"redirect": target,
	})

	if target != "" {
		b.page.Navigate(target)
	}
}
