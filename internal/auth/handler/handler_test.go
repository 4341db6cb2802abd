package handler_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"cms-bridge/internal/admin"
	"cms-bridge/internal/audit"
	"cms-bridge/internal/auth"
	"cms-bridge/internal/auth/handler"
	"cms-bridge/internal/auth/provider"
	"cms-bridge/internal/auth/resolver"
	"cms-bridge/internal/auth/token"
	"cms-bridge/internal/session"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const basePath = "/api/cobalt-auth"

// cobaltToken builds an unsigned three-segment token around claims.
func cobaltToken(claims map[string]any) string {
	payload, err := json.Marshal(claims)
	Expect(err).NotTo(HaveOccurred())
	return "eyJhbGciOiJub25lIn0." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func cmsClaims() map[string]any {
	return map[string]any{
		"sub":      "cobalt-1",
		"email":    "new@x.com",
		"username": "newbie",
		"isCMS":    true,
		"exp":      time.Now().Add(time.Hour).Unix(),
	}
}

type idTokenProvider struct {
	tokens map[string]auth.ExternalClaims
}

func (p idTokenProvider) Name() string { return "cobalt" }

func (p idTokenProvider) AuthCodeURL(state, challenge string) string {
	return "https://idp.example.test/auth?" + url.Values{
		"state":          {state},
		"code_challenge": {challenge},
	}.Encode()
}

func (p idTokenProvider) ExchangeCode(_ context.Context, code, _ string) (auth.ExternalClaims, error) {
	return p.VerifyIDToken(context.Background(), code)
}

func (p idTokenProvider) VerifyIDToken(_ context.Context, raw string) (auth.ExternalClaims, error) {
	c, ok := p.tokens[raw]
	if !ok {
		return nil, errors.New("unknown id token")
	}
	return c, nil
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeBody(rr *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	Expect(json.Unmarshal(rr.Body.Bytes(), &body)).To(Succeed())
	return body
}

var _ = Describe("Handler", func() {
	var (
		router   *gin.Engine
		admins   *admin.MemoryStore
		audits   *audit.MemoryStore
		recorder *audit.Recorder
		issuer   *session.Issuer
		idp      idTokenProvider
	)

	serve := func(method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, target, &buf)
		req.Header.Set("Content-Type", "application/json")
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	autoLogin := func(email, tok string) *httptest.ResponseRecorder {
		return serve(http.MethodPost, basePath+"/auto-login", map[string]any{
			"email":       email,
			"cobaltToken": tok,
		})
	}

	BeforeEach(func() {
		admins = admin.NewMemoryStore()
		audits = audit.NewMemoryStore()
		recorder = audit.NewRecorder(audits)
		issuer = session.NewIssuer("test-secret", session.DefaultMaxAge, false)
		idp = idTokenProvider{tokens: map[string]auth.ExternalClaims{}}

		svc := admin.NewService(admins)
		h := handler.NewHandler(basePath, handler.Deps{
			Codec:     token.NewCodec(""),
			Resolver:  resolver.NewStoreResolver(svc, recorder),
			Admins:    svc,
			Issuer:    issuer,
			Recorder:  recorder,
			Providers: provider.NewRegistry(idp),
		})

		router = gin.New()
		h.RegisterRoutes(router)
	})

	AfterEach(func() {
		recorder.Wait()
	})

	Context("POST auto-login", func() {
		It("provisions a new admin, sets the session cookie and check-auth sees it", func() {
			rr := autoLogin("new@x.com", cobaltToken(cmsClaims()))
			Expect(rr.Code).To(Equal(http.StatusOK))

			body := decodeBody(rr)
			Expect(body["success"]).To(BeTrue())
			Expect(body["created"]).To(BeTrue())
			Expect(body["message"]).To(Equal("User created and logged in successfully"))
			user := body["user"].(map[string]any)
			Expect(user["email"]).To(Equal("new@x.com"))
			Expect(user["firstname"]).To(Equal("Cobalt"))
			Expect(user["lastname"]).To(Equal("User"))
			Expect(user["username"]).To(Equal("newbie"))
			Expect(user["created"]).To(BeTrue())
			Expect(body).NotTo(HaveKey("jwt"))

			cookie := cookieNamed(rr, session.CookieName)
			Expect(cookie).NotTo(BeNil())
			Expect(cookie.HttpOnly).To(BeTrue())
			Expect(cookie.Secure).To(BeFalse())
			Expect(cookie.SameSite).To(Equal(http.SameSiteLaxMode))

			check := serve(http.MethodGet, basePath+"/check-auth", nil, cookie)
			Expect(check.Code).To(Equal(http.StatusOK))
			cb := decodeBody(check)
			Expect(cb["authenticated"]).To(BeTrue())
			Expect(cb["user"].(map[string]any)["email"]).To(Equal("new@x.com"))
		})

		It("returns the same admin with created=false on the second login and counts it", func() {
			first := decodeBody(autoLogin("new@x.com", cobaltToken(cmsClaims())))
			second := decodeBody(autoLogin("NEW@x.com", cobaltToken(cmsClaims())))

			Expect(second["created"]).To(BeFalse())
			Expect(second["message"]).To(Equal("Auto-login successful"))
			Expect(second["user"].(map[string]any)["id"]).To(Equal(first["user"].(map[string]any)["id"]))
			Expect(admins.Count()).To(Equal(1))

			recorder.Wait()
			rec, err := audits.Get(context.Background(), "cobalt-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.LoginCount).To(Equal(2))
		})

		It("rejects an expired token without creating anything or setting a cookie", func() {
			claims := cmsClaims()
			claims["exp"] = time.Now().Add(-time.Minute).Unix()

			rr := autoLogin("new@x.com", cobaltToken(claims))
			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
			Expect(admins.Count()).To(BeZero())
			Expect(rr.Result().Cookies()).To(BeEmpty())
		})

		It("answers 400 when email or token is missing", func() {
			Expect(autoLogin("", cobaltToken(cmsClaims())).Code).To(Equal(http.StatusBadRequest))
			Expect(autoLogin("new@x.com", "").Code).To(Equal(http.StatusBadRequest))
		})

		It("answers 401 for an undecodable token", func() {
			Expect(autoLogin("new@x.com", "garbage").Code).To(Equal(http.StatusUnauthorized))
			Expect(autoLogin("new@x.com", "a.!!!.c").Code).To(Equal(http.StatusUnauthorized))
		})

		It("answers 403 when the claims carry no CMS permission", func() {
			rr := autoLogin("new@x.com", cobaltToken(map[string]any{
				"email": "new@x.com",
				"roles": []string{"reader"},
			}))
			Expect(rr.Code).To(Equal(http.StatusForbidden))
			Expect(admins.Count()).To(BeZero())
		})

		It("answers 401 for a disabled admin", func() {
			admins.Put(admin.Admin{Email: "new@x.com", IsActive: false})

			rr := autoLogin("new@x.com", cobaltToken(cmsClaims()))
			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
			Expect(cookieNamed(rr, session.CookieName)).To(BeNil())
		})

		It("answers 500 with a generic message when no admin role exists", func() {
			bare := admin.NewMemoryStore(admin.Role{Code: "strapi-author", Name: "Author"})
			svc := admin.NewService(bare)
			h := handler.NewHandler(basePath, handler.Deps{
				Codec:    token.NewCodec(""),
				Resolver: resolver.NewStoreResolver(svc, nil),
				Admins:   svc,
				Issuer:   issuer,
			})
			router = gin.New()
			h.RegisterRoutes(router)

			rr := autoLogin("new@x.com", cobaltToken(cmsClaims()))
			Expect(rr.Code).To(Equal(http.StatusInternalServerError))
			Expect(decodeBody(rr)["error"]).To(Equal("Auto-login failed"))
		})

		It("creates exactly one admin under concurrent first logins", func() {
			const n = 8
			tok := cobaltToken(cmsClaims())

			var wg sync.WaitGroup
			codes := make([]int, n)
			created := make([]bool, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					defer GinkgoRecover()

					rr := autoLogin("new@x.com", tok)
					codes[i] = rr.Code
					var body map[string]any
					Expect(json.Unmarshal(rr.Body.Bytes(), &body)).To(Succeed())
					created[i], _ = body["created"].(bool)
				}(i)
			}
			wg.Wait()

			Expect(admins.Count()).To(Equal(1))
			Expect(codes).To(HaveEach(http.StatusOK))

			winners := 0
			for _, c := range created {
				if c {
					winners++
				}
			}
			Expect(winners).To(Equal(1))
		})
	})

	Context("GET auto-login", func() {
		It("runs the same exchange from query parameters and returns the jwt", func() {
			q := url.Values{"email": {"new@x.com"}, "token": {cobaltToken(cmsClaims())}}
			rr := serve(http.MethodGet, basePath+"/auto-login?"+q.Encode(), nil)
			Expect(rr.Code).To(Equal(http.StatusOK))

			body := decodeBody(rr)
			jwt, _ := body["jwt"].(string)
			Expect(jwt).NotTo(BeEmpty())
			Expect(cookieNamed(rr, session.CookieName).Value).To(Equal(jwt))
		})
	})

	Context("GET check-auth", func() {
		It("is unauthenticated without a cookie", func() {
			rr := serve(http.MethodGet, basePath+"/check-auth", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(MatchJSON(`{"authenticated":false}`))
		})

		It("is unauthenticated with a forged cookie", func() {
			rr := serve(http.MethodGet, basePath+"/check-auth", nil,
				&http.Cookie{Name: session.CookieName, Value: "forged"})
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(MatchJSON(`{"authenticated":false}`))
		})

		It("is unauthenticated for a disabled admin holding a valid cookie", func() {
			off := admins.Put(admin.Admin{Email: "off@x.com", IsActive: false})
			jwt, err := issuer.Issue(off.ID)
			Expect(err).NotTo(HaveOccurred())

			rr := serve(http.MethodGet, basePath+"/check-auth", nil,
				&http.Cookie{Name: session.CookieName, Value: jwt})
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(MatchJSON(`{"authenticated":false}`))
		})

		It("is unauthenticated for a token of a deleted admin", func() {
			jwt, err := issuer.Issue("no-such-admin")
			Expect(err).NotTo(HaveOccurred())

			rr := serve(http.MethodGet, basePath+"/check-auth", nil,
				&http.Cookie{Name: session.CookieName, Value: jwt})
			Expect(rr.Body.String()).To(MatchJSON(`{"authenticated":false}`))
		})
	})

	Context("admin login, me and logout", func() {
		var existing *admin.Admin

		BeforeEach(func() {
			hash, version, err := admin.HashPassword("correct-horse")
			Expect(err).NotTo(HaveOccurred())
			existing = admins.Put(admin.Admin{
				Email:        "editor@x.com",
				FirstName:    "Ed",
				LastName:     "Itor",
				IsActive:     true,
				PasswordHash: hash,
				HashVersion:  version,
				Roles:        []admin.Role{{Code: "strapi-editor", Name: "Editor"}},
			})
		})

		It("logs in with a password and returns the jwt", func() {
			rr := serve(http.MethodPost, "/admin/login", map[string]any{
				"email":    "editor@x.com",
				"password": "correct-horse",
			})
			Expect(rr.Code).To(Equal(http.StatusOK))

			body := decodeBody(rr)
			Expect(body["jwt"]).NotTo(BeEmpty())
			Expect(body["user"].(map[string]any)["id"]).To(Equal(existing.ID))
			Expect(cookieNamed(rr, session.CookieName)).NotTo(BeNil())

			me := serve(http.MethodGet, "/admin/me", nil, cookieNamed(rr, session.CookieName))
			Expect(me.Code).To(Equal(http.StatusOK))
			Expect(decodeBody(me)["roles"]).To(ConsistOf("Editor"))
		})

		It("rejects a wrong password", func() {
			rr := serve(http.MethodPost, "/admin/login", map[string]any{
				"email":    "editor@x.com",
				"password": "wrong-horse",
			})
			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		})

		It("protects /admin/me", func() {
			Expect(serve(http.MethodGet, "/admin/me", nil).Code).To(Equal(http.StatusUnauthorized))
		})

		It("clears the session cookies on logout", func() {
			rr := serve(http.MethodPost, "/admin/logout", nil)
			Expect(rr.Code).To(Equal(http.StatusNoContent))
			Expect(cookieNamed(rr, session.CookieName).MaxAge).To(Equal(-1))
			Expect(cookieNamed(rr, session.CrossAuthCookieName).MaxAge).To(Equal(-1))
		})

		It("names the sign-in page on logout when one is configured", func() {
			svc := admin.NewService(admins)
			h := handler.NewHandler(basePath, handler.Deps{
				Codec:             token.NewCodec(""),
				Resolver:          resolver.NewStoreResolver(svc, recorder),
				Admins:            svc,
				Issuer:            issuer,
				Recorder:          recorder,
				LogoutRedirectURL: "https://cobalt.example.test/auth/jwt/sign-in",
			})
			router = gin.New()
			h.RegisterRoutes(router)

			rr := serve(http.MethodPost, "/admin/logout", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(MatchJSON(
				`{"success":true,"redirectUrl":"https://cobalt.example.test/auth/jwt/sign-in"}`))
			Expect(cookieNamed(rr, session.CookieName).MaxAge).To(Equal(-1))
		})
	})

	Context("cross-auth", func() {
		BeforeEach(func() {
			admins.Put(admin.Admin{
				Email:    "boss@x.com",
				IsActive: true,
				Roles:    []admin.Role{{Code: admin.SuperAdminRoleCode, Name: "Super Admin"}},
			})
			admins.Put(admin.Admin{
				Email:    "writer@x.com",
				IsActive: true,
				Roles:    []admin.Role{{Code: "strapi-author", Name: "Author"}},
			})
			idp.tokens["boss-token"] = auth.ExternalClaims{"sub": "b", "email": "boss@x.com"}
			idp.tokens["writer-token"] = auth.ExternalClaims{"sub": "w", "email": "writer@x.com"}
			idp.tokens["stranger-token"] = auth.ExternalClaims{"sub": "s", "email": "stranger@x.com"}
		})

		It("requires a token", func() {
			Expect(serve(http.MethodGet, "/admin/auth/login", nil).Code).To(Equal(http.StatusBadRequest))
		})

		It("redirects straight to /admin for a live admin session token", func() {
			jwt, err := issuer.Issue("any")
			Expect(err).NotTo(HaveOccurred())

			rr := serve(http.MethodGet, "/cross-auth?token="+jwt, nil)
			Expect(rr.Code).To(Equal(http.StatusFound))
			Expect(rr.Header().Get("Location")).To(Equal("/admin"))
		})

		It("signs in a known admin from an identity provider token", func() {
			rr := serve(http.MethodGet, "/cms-auth/login?token=boss-token", nil)
			Expect(rr.Code).To(Equal(http.StatusFound))
			Expect(rr.Header().Get("Location")).To(Equal("/admin"))

			cross := cookieNamed(rr, session.CrossAuthCookieName)
			Expect(cross).NotTo(BeNil())
			Expect(cross.MaxAge).To(Equal(int(session.CrossAuthMaxAge.Seconds())))
			Expect(cookieNamed(rr, session.CookieName)).NotTo(BeNil())
		})

		It("forbids admins without an admin or cms role", func() {
			Expect(serve(http.MethodGet, "/admin/auth/login?token=writer-token", nil).Code).
				To(Equal(http.StatusForbidden))
		})

		It("rejects unknown users and unverifiable tokens", func() {
			Expect(serve(http.MethodGet, "/admin/auth/login?token=stranger-token", nil).Code).
				To(Equal(http.StatusUnauthorized))
			Expect(serve(http.MethodGet, "/admin/auth/login?token=nonsense", nil).Code).
				To(Equal(http.StatusUnauthorized))
		})

		It("validates tokens for external applications", func() {
			rr := serve(http.MethodPost, "/cross-auth/validate", map[string]any{"token": "boss-token"})
			Expect(rr.Code).To(Equal(http.StatusOK))

			body := decodeBody(rr)
			Expect(body["valid"]).To(BeTrue())
			user := body["user"].(map[string]any)
			Expect(user["email"]).To(Equal("boss@x.com"))
			Expect(user["isCMS"]).To(BeTrue())
			Expect(user["roles"]).To(ConsistOf("Super Admin"))

			Expect(serve(http.MethodPost, "/cross-auth/validate", map[string]any{"token": "nonsense"}).Code).
				To(Equal(http.StatusUnauthorized))
			Expect(serve(http.MethodPost, "/cross-auth/validate", map[string]any{}).Code).
				To(Equal(http.StatusBadRequest))
		})
	})

	Context("oauth", func() {
		It("rejects unknown providers", func() {
			Expect(serve(http.MethodGet, "/oauth/login/github", nil).Code).To(Equal(http.StatusBadRequest))
		})

		It("runs the code flow through provisioning", func() {
			idp.tokens["code-1"] = auth.ExternalClaims{
				"sub":   "cobalt-9",
				"email": "oidc@x.com",
				"roles": []any{map[string]any{"name": "cms-editor"}},
			}

			start := serve(http.MethodGet, "/oauth/login/cobalt", nil)
			Expect(start.Code).To(Equal(http.StatusFound))

			loc, err := url.Parse(start.Header().Get("Location"))
			Expect(err).NotTo(HaveOccurred())
			state := loc.Query().Get("state")
			Expect(state).NotTo(BeEmpty())
			Expect(loc.Query().Get("code_challenge")).NotTo(BeEmpty())

			rr := serve(http.MethodGet, "/oauth/callback/cobalt?code=code-1&state="+state, nil,
				cookieNamed(start, "__oauth_state"), cookieNamed(start, "__oauth_pkce"))
			Expect(rr.Code).To(Equal(http.StatusFound))
			Expect(cookieNamed(rr, session.CookieName)).NotTo(BeNil())

			a, err := admins.FindByEmail(context.Background(), "oidc@x.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.IsActive).To(BeTrue())
		})

		It("rejects a callback with a mismatched state", func() {
			start := serve(http.MethodGet, "/oauth/login/cobalt", nil)
			rr := serve(http.MethodGet, "/oauth/callback/cobalt?code=x&state=other", nil,
				cookieNamed(start, "__oauth_state"), cookieNamed(start, "__oauth_pkce"))
			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
