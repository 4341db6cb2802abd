// Package bridge drives the admin login page on behalf of a user who
// arrives with a Cobalt token: it waits for the form, checks the token,
// exchanges it for a CMS session and lands the browser on the admin
// surface.
package bridge

import "time"

// Cookie names the host and its legacy readers look for.
const (
	CookieJWTToken      = "jwtToken"
	CookieCMSJWTToken   = "cmsJwtToken"
	CookieStrapiJWT     = "strapi_jwt"
	CookieStrapiSession = "strapi_session"
	CookieStrapiAuth    = "strapi_auth"
	CookieLoggedIn      = "logged_in"

	// CookieSession is the httpOnly cookie the server sets; the bridge only
	// ever clears it.
	CookieSession = "strapi-jwt"
)

// AuthCookies is every cookie cleared on logout.
var AuthCookies = []string{
	CookieJWTToken,
	CookieCMSJWTToken,
	CookieStrapiJWT,
	CookieSession,
	CookieStrapiSession,
	CookieStrapiAuth,
	CookieLoggedIn,
}

type Field int

const (
	FieldEmail Field = iota
	FieldPassword
)

type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Page is the browser surface the bridge acts on. Implementations must be
// safe for use from the logout observer's goroutine.
type Page interface {
	// Path is the current location path, without query.
	Path() string
	Query(key string) string

	Cookie(name string) (string, bool)
	SetCookie(name, value string, maxAge time.Duration)
	ClearCookie(name string)

	// FormReady reports whether the login form, its inputs and a button
	// are present.
	FormReady() bool
	// Fill sets a form field and fires its input and change events. It
	// reports false when the field is missing.
	Fill(field Field, value string) bool
	// ClickSubmit presses the visible submit control, if one is found.
	ClickSubmit() bool

	Navigate(url string)
	Notify(kind NoticeKind, msg string)
}
