package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"cms-bridge/internal/logger"
)

type Notice struct {
	Kind NoticeKind
	Msg  string
}

// HeadlessPage is a Page without a browser: cookies live in the client's
// jar, navigation is a GET and submitting the form posts its fields to the
// login endpoint. It lets the bridge be scripted against a running server.
type HeadlessPage struct {
	mu       sync.Mutex
	location *url.URL
	client   *http.Client
	fields   map[Field]string
	notices  []Notice
	lastCode int
}

// NewHeadlessPage opens location. A client without a cookie jar gets one.
func NewHeadlessPage(location string, client *http.Client) (*HeadlessPage, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("bridge: page location: %w", err)
	}
	if client == nil {
		client = &http.Client{}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		client.Jar = jar
	}

	return &HeadlessPage{
		location: u,
		client:   client,
		fields:   make(map[Field]string),
	}, nil
}

func (p *HeadlessPage) Path() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location.Path
}

func (p *HeadlessPage) Query(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location.Query().Get(key)
}

func (p *HeadlessPage) Cookie(name string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.client.Jar.Cookies(p.location) {
		if c.Name == name && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

func (p *HeadlessPage) SetCookie(name, value string, maxAge time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.client.Jar.SetCookies(p.location, []*http.Cookie{{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
	}})
}

func (p *HeadlessPage) ClearCookie(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.client.Jar.SetCookies(p.location, []*http.Cookie{{
		Name:   name,
		Path:   "/",
		MaxAge: -1,
	}})
}

// FormReady is always true: there is no DOM to wait for.
func (p *HeadlessPage) FormReady() bool {
	return true
}

func (p *HeadlessPage) Fill(field Field, value string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fields[field] = value
	return true
}

func (p *HeadlessPage) ClickSubmit() bool {
	p.mu.Lock()
	body, _ := json.Marshal(map[string]string{
		"email":    p.fields[FieldEmail],
		"password": p.fields[FieldPassword],
	})
	target := p.location.ResolveReference(&url.URL{Path: DefaultLoginPath})
	p.mu.Unlock()

	resp, err := p.client.Post(target.String(), "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Warn("form submission failed", map[string]any{"error": err.Error()})
		return true
	}
	resp.Body.Close()

	p.mu.Lock()
	p.lastCode = resp.StatusCode
	p.mu.Unlock()
	return true
}

func (p *HeadlessPage) Navigate(target string) {
	p.mu.Lock()
	next, err := p.location.Parse(target)
	p.mu.Unlock()
	if err != nil {
		logger.Warn("navigation target rejected", map[string]any{"target": target})
		return
	}

	resp, err := p.client.Get(next.String())
	if err != nil {
		logger.Warn("navigation failed", map[string]any{
			"target": next.String(),
			"error":  err.Error(),
		})
		p.mu.Lock()
		p.location = next
		p.mu.Unlock()
		return
	}
	resp.Body.Close()

	p.mu.Lock()
	p.location = resp.Request.URL
	p.lastCode = resp.StatusCode
	p.mu.Unlock()
}

func (p *HeadlessPage) Notify(kind NoticeKind, msg string) {
	p.mu.Lock()
	p.notices = append(p.notices, Notice{Kind: kind, Msg: msg})
	p.mu.Unlock()

	logger.Info("bridge notice", map[string]any{
		"kind":    string(kind),
		"message": msg,
	})
}

// Location is the page's current URL.
func (p *HeadlessPage) Location() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location.String()
}

// LastStatus is the status code of the last navigation or submission.
func (p *HeadlessPage) LastStatus() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCode
}

func (p *HeadlessPage) Notices() []Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Notice(nil), p.notices...)
}

// Jar is the cookie jar backing the page, for clients that must share it.
func (p *HeadlessPage) Jar() http.CookieJar {
	return p.client.Jar
}
