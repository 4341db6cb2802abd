// Command autologin runs the browser bridge headlessly against a running
// server, the way the admin login page would after a Cobalt redirect.
package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"cms-bridge/internal/bridge"
	"cms-bridge/internal/logger"

	"github.com/juju/clock"
	"github.com/spf13/pflag"
)

func main() {
	var (
		baseURL   = pflag.String("base-url", "http://localhost:1337", "server base URL")
		tok       = pflag.String("token", "", "Cobalt token to sign in with")
		cmsToken  = pflag.String("cms-token", "", "existing CMS session token to reuse")
		signInURL = pflag.String("sign-in-url", "", "external sign-in page used after logout")
		logout    = pflag.Bool("logout", false, "log out again after a successful sign-in")
		timeout   = pflag.Duration("timeout", time.Minute, "overall time limit")
		env       = pflag.String("env", "development", "logging environment")
	)
	pflag.Parse()

	logger.Init(*env)
	defer logger.Sync()

	if *tok == "" {
		logger.Fatal("--token is required", nil)
	}

	q := url.Values{"token": {*tok}}
	if *cmsToken != "" {
		q.Set("cmsToken", *cmsToken)
	}
	base := strings.TrimRight(*baseURL, "/")

	page, err := bridge.NewHeadlessPage(base+"/admin/auth/login?"+q.Encode(), nil)
	if err != nil {
		logger.Fatal("cannot open login page", map[string]any{"error": err.Error()})
	}

	client := &http.Client{Jar: page.Jar(), Timeout: 10 * time.Second}

	cfg := bridge.DefaultConfig()
	cfg.SignInURL = *signInURL

	b := bridge.New(page, bridge.NewHTTPLoginClient(base, client), clock.WallClock, cfg)
	b.InstallLogoutObserver(client)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	res, ran := b.Bootstrap(ctx)
	if !ran {
		logger.Fatal("nothing to do", nil)
	}

	path := make([]string, 0, len(res.Path))
	for _, s := range res.Path {
		path = append(path, s.String())
	}
	fields := map[string]any{
		"path":     strings.Join(path, " > "),
		"location": page.Location(),
		"status":   page.LastStatus(),
	}
	if res.Err != nil {
		fields["error"] = res.Err.Error()
		logger.Fatal("auto-login did not complete", fields)
	}
	logger.Info("auto-login complete", fields)

	if *logout {
		resp, err := client.Post(base+"/admin/logout", "application/json", nil)
		if err != nil {
			logger.Fatal("logout failed", map[string]any{"error": err.Error()})
		}
		resp.Body.Close()
		logger.Info("logged out", map[string]any{"location": page.Location()})
	}
}
