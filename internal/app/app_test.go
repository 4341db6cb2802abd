package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cms-bridge/internal/config"
	"cms-bridge/internal/session"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/gomega"
)

func memoryConfig() config.Config {
	cfg := config.Defaults()
	cfg.StoreDriver = "memory"
	cfg.AdminJWTSecret = "test-secret"
	return cfg
}

func TestHealth(t *testing.T) {
	g := NewWithT(t)

	a, err := New(context.Background(), memoryConfig())
	g.Expect(err).NotTo(HaveOccurred())
	defer func() { g.Expect(a.Shutdown(context.Background())).To(Succeed()) }()

	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	g.Expect(rr.Code).To(Equal(http.StatusOK))
	g.Expect(rr.Body.String()).To(MatchJSON(`{"status":"ok"}`))
	g.Expect(rr.Header().Get("X-Request-Id")).NotTo(BeEmpty())
}

func TestAutoLoginWithRedisSlots(t *testing.T) {
	g := NewWithT(t)

	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.RedisAddr = mr.Addr()

	a, err := New(context.Background(), cfg)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(a.infra.Slots).NotTo(BeNil())
	defer func() { g.Expect(a.Shutdown(context.Background())).To(Succeed()) }()

	payload, _ := json.Marshal(map[string]any{
		"sub":   "cobalt-7",
		"email": "slot@x.com",
		"roles": []string{"cms-admin"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	body, _ := json.Marshal(map[string]any{
		"email":       "slot@x.com",
		"cobaltToken": "h." + base64.RawURLEncoding.EncodeToString(payload) + ".s",
	})

	req := httptest.NewRequest(http.MethodPost, cfg.BasePath+"/auto-login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	g.Expect(rr.Code).To(Equal(http.StatusOK))

	var slot *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.SlotCookieName {
			slot = c
		}
	}
	g.Expect(slot).NotTo(BeNil())
	g.Expect(mr.Exists("cms:session:" + slot.Value)).To(BeTrue())

	// the slot alone authenticates
	check := httptest.NewRequest(http.MethodGet, cfg.BasePath+"/check-auth", nil)
	check.AddCookie(slot)
	rr = httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, check)
	g.Expect(rr.Body.String()).To(ContainSubstring(`"authenticated":true`))
}

func TestAutoLoginWithMemorySlots(t *testing.T) {
	g := NewWithT(t)

	cfg := memoryConfig()
	cfg.SessionStore = "memory"

	a, err := New(context.Background(), cfg)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(a.infra.Slots).To(BeAssignableToTypeOf(&session.MemoryStore{}))
	g.Expect(a.infra.Redis).To(BeNil())
	defer func() { g.Expect(a.Shutdown(context.Background())).To(Succeed()) }()

	payload, _ := json.Marshal(map[string]any{
		"sub":   "cobalt-8",
		"email": "mem@x.com",
		"isCMS": true,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	body, _ := json.Marshal(map[string]any{
		"email":       "mem@x.com",
		"cobaltToken": "h." + base64.RawURLEncoding.EncodeToString(payload) + ".s",
	})

	req := httptest.NewRequest(http.MethodPost, cfg.BasePath+"/auto-login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	g.Expect(rr.Code).To(Equal(http.StatusOK))

	var slot *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.SlotCookieName {
			slot = c
		}
	}
	g.Expect(slot).NotTo(BeNil())

	check := httptest.NewRequest(http.MethodGet, cfg.BasePath+"/check-auth", nil)
	check.AddCookie(slot)
	rr = httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, check)
	g.Expect(rr.Body.String()).To(ContainSubstring(`"authenticated":true`))
}

func TestNewFailsOnUnreachableRedis(t *testing.T) {
	g := NewWithT(t)

	cfg := memoryConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := New(context.Background(), cfg)
	g.Expect(err).To(MatchError(ContainSubstring("redis: ping")))
}
