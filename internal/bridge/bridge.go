package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cms-bridge/internal/auth"
	"cms-bridge/internal/auth/token"
	"cms-bridge/internal/logger"

	"github.com/juju/clock"
)

type State int

const (
	Idle State = iota
	WaitingForForm
	Authenticating
	Redirecting
	FallbackSubmit
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case WaitingForForm:
		return "waiting-for-form"
	case Authenticating:
		return "authenticating"
	case Redirecting:
		return "redirecting"
	case FallbackSubmit:
		return "fallback-submit"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrFormTimeout       = errors.New("timeout waiting for form elements")
	ErrInvalidToken      = errors.New("invalid token format")
	ErrMissingCredential = errors.New("invalid token credentials")
	ErrNoCMSAccess       = errors.New("user does not have CMS access")
	ErrTokenExpired      = errors.New("token expired")
	ErrNoSubmitControl   = errors.New("no submit control found")
)

type Config struct {
	AdminPath     string
	LoginPagePath string

	PollAttempts int
	PollInterval time.Duration

	// StepDelay separates visible steps so cookies propagate before the
	// next navigation.
	StepDelay      time.Duration
	BootstrapDelay time.Duration
	CookieMaxAge   time.Duration

	// SignInURL is where the logout observer sends the browser.
	SignInURL string
}

func DefaultConfig() Config {
	return Config{
		AdminPath:      "/admin",
		LoginPagePath:  "/admin/auth/login",
		PollAttempts:   100,
		PollInterval:   100 * time.Millisecond,
		StepDelay:      time.Second,
		BootstrapDelay: 500 * time.Millisecond,
		CookieMaxAge:   30 * 24 * time.Hour,
	}
}

// Result is the outcome of one bridge run.
type Result struct {
	// Path lists every state entered, in order, ending in Succeeded or
	// Failed.
	Path []State
	Err  error
}

func (r Result) Final() State {
	if len(r.Path) == 0 {
		return Idle
	}
	return r.Path[len(r.Path)-1]
}

// Visited reports whether the run passed through s.
func (r Result) Visited(s State) bool {
	for _, p := range r.Path {
		if p == s {
			return true
		}
	}
	return false
}

type Bridge struct {
	page   Page
	client LoginClient
	clock  clock.Clock
	cfg    Config
}

func New(page Page, client LoginClient, clk clock.Clock, cfg Config) *Bridge {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Bridge{
		page:   page,
		client: client,
		clock:  clk,
		cfg:    cfg,
	}
}

// Bootstrap is the page-load entry point. It re-establishes bridge cookies
// missing from the browser and, on the login page, runs the auto-login
// flow. ran is false when there was nothing to do.
func (b *Bridge) Bootstrap(ctx context.Context) (res Result, ran bool) {
	urlToken := b.page.Query("token")
	cookieToken, hasCookieToken := b.page.Cookie(CookieJWTToken)
	cmsURLToken := b.page.Query("cmsToken")
	cmsCookieToken, hasCMSCookie := b.page.Cookie(CookieCMSJWTToken)

	finalToken := firstNonEmpty(urlToken, cookieToken)
	finalCMSToken := firstNonEmpty(cmsURLToken, cmsCookieToken)

	if finalToken != "" && !hasCookieToken {
		b.page.SetCookie(CookieJWTToken, finalToken, b.cfg.CookieMaxAge)
		b.page.SetCookie(CookieLoggedIn, "yes", b.cfg.CookieMaxAge)
	}
	if finalCMSToken != "" && !hasCMSCookie {
		b.page.SetCookie(CookieCMSJWTToken, finalCMSToken, b.cfg.CookieMaxAge)
		b.page.SetCookie(CookieStrapiJWT, finalCMSToken, b.cfg.CookieMaxAge)
	}

	if finalToken == "" || !strings.Contains(b.page.Path(), b.cfg.LoginPagePath) {
		return Result{}, false
	}

	if err := b.sleep(ctx, b.cfg.BootstrapDelay); err != nil {
		return Result{Path: []State{Failed}, Err: err}, true
	}
	return b.Run(ctx, finalToken, finalCMSToken), true
}

type run struct {
	*Bridge
	path []State
}

func (r *run) enter(s State) {
	r.path = append(r.path, s)
}

func (r *run) fail(err error) Result {
	r.enter(Failed)
	logger.Warn("auto-login failed", map[string]any{"error": err.Error()})
	return Result{Path: r.path, Err: err}
}

func (r *run) succeed() Result {
	r.enter(Succeeded)
	return Result{Path: r.path}
}

// Run executes one auto-login attempt for cobaltToken. A non-empty
// cmsToken is an already issued CMS session that is reused as is.
func (b *Bridge) Run(ctx context.Context, cobaltToken, cmsToken string) Result {
	r := &run{Bridge: b, path: []State{Idle}}

	r.enter(WaitingForForm)
	ready, err := b.waitForForm(ctx)
	if err != nil {
		return r.fail(err)
	}
	if !ready {
		if cmsToken == "" {
			r.enter(Failed)
			return Result{Path: r.path, Err: ErrFormTimeout}
		}
		r.enter(Redirecting)
		if err := b.redirectWith(ctx, cmsToken); err != nil {
			return r.fail(err)
		}
		return r.succeed()
	}

	r.enter(Authenticating)
	b.page.Notify(NoticeInfo, "Processing auto-login...")

	if cmsToken != "" {
		b.page.Notify(NoticeSuccess, "Using existing CMS session...")
		r.enter(Redirecting)
		if err := b.sleep(ctx, b.cfg.StepDelay); err != nil {
			return r.fail(err)
		}
		if err := b.redirectWith(ctx, cmsToken); err != nil {
			return r.fail(err)
		}
		return r.succeed()
	}

	claims, err := b.checkToken(cobaltToken)
	if err != nil {
		b.page.Notify(NoticeError, "Auto-login failed: "+err.Error())
		return r.fail(err)
	}

	b.page.Fill(FieldEmail, claims.Email)
	b.page.Fill(FieldPassword, claims.Password)
	b.page.Notify(NoticeInfo, "Submitting login...")

	if err := b.sleep(ctx, b.cfg.StepDelay); err != nil {
		return r.fail(err)
	}

	resp, err := b.client.Login(ctx, claims.Email, claims.Password)
	if err == nil {
		b.page.Notify(NoticeSuccess, "Login successful! Redirecting...")
		r.enter(Redirecting)
		if resp.JWT != "" {
			err = b.redirectWith(ctx, resp.JWT)
		} else {
			err = b.redirectAfter(ctx, b.cfg.StepDelay+b.cfg.StepDelay/2)
		}
		if err != nil {
			return r.fail(err)
		}
		return r.succeed()
	}

	logger.Warn("login api failed, falling back to form submission", map[string]any{
		"error": err.Error(),
	})
	b.page.Notify(NoticeInfo, "API failed, trying form submission...")

	r.enter(FallbackSubmit)
	if err := b.sleep(ctx, b.cfg.StepDelay); err != nil {
		return r.fail(err)
	}
	if err := b.submitFallback(); err != nil {
		return r.fail(err)
	}
	return r.succeed()
}

// waitForForm polls for the login form. It returns false once the attempt
// budget is spent.
func (b *Bridge) waitForForm(ctx context.Context) (bool, error) {
	for attempt := 1; ; attempt++ {
		if b.page.FormReady() {
			return true, nil
		}
		if attempt >= b.cfg.PollAttempts {
			return false, nil
		}
		if err := b.sleep(ctx, b.cfg.PollInterval); err != nil {
			return false, err
		}
	}
}

// checkToken decodes the Cobalt token the same way the server does and
// applies the checks the page can make on its own.
func (b *Bridge) checkToken(raw string) (auth.Claims, error) {
	ext, err := token.Decode(raw)
	if err != nil {
		return auth.Claims{}, ErrInvalidToken
	}

	claims := auth.Normalize(ext)
	switch {
	case claims.Email == "" || claims.Password == "":
		return auth.Claims{}, ErrMissingCredential
	case !auth.HasCMSFlag(claims):
		return auth.Claims{}, ErrNoCMSAccess
	case claims.Expired(b.clock.Now()):
		return auth.Claims{}, ErrTokenExpired
	}
	return claims, nil
}

// redirectWith stores a CMS session token under every name the host reads
// and moves to the admin surface.
func (b *Bridge) redirectWith(ctx context.Context, cmsToken string) error {
	for _, name := range []string{CookieCMSJWTToken, CookieStrapiJWT, CookieStrapiSession, CookieStrapiAuth} {
		b.page.SetCookie(name, cmsToken, b.cfg.CookieMaxAge)
	}
	return b.redirectAfter(ctx, b.cfg.StepDelay)
}

func (b *Bridge) redirectAfter(ctx context.Context, d time.Duration) error {
	if err := b.sleep(ctx, d); err != nil {
		return err
	}
	b.page.Navigate(b.cfg.AdminPath)
	return nil
}

func (b *Bridge) submitFallback() error {
	if t := b.page.Query("token"); t != "" {
		b.page.SetCookie(CookieJWTToken, t, b.cfg.CookieMaxAge)
		b.page.SetCookie(CookieLoggedIn, "yes", b.cfg.CookieMaxAge)
		b.page.SetCookie(CookieStrapiSession, t, b.cfg.CookieMaxAge)
		b.page.SetCookie(CookieStrapiAuth, t, b.cfg.CookieMaxAge)
	}

	if !b.page.ClickSubmit() {
		return ErrNoSubmitControl
	}
	return nil
}

// sleep waits on the bridge clock. Cancelling ctx stands for the browser
// navigating away.
func (b *Bridge) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	select {
	case <-b.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
