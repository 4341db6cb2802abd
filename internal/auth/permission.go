package auth

import "strings"

// privilegedMarkers are matched as substrings, not role names, so
// "cms-editor" and "SuperAdmin" both qualify.
var privilegedMarkers = []string{"cms", "admin"}

// IsAuthorized decides whether an external identity may enter the CMS.
// Any role or scope mentioning cms/admin, or a true isCMS flag, is enough.
func IsAuthorized(c Claims) bool {
	for _, r := range c.Roles {
		if Privileged(r) {
			return true
		}
	}
	for _, s := range c.Scopes {
		if Privileged(s) {
			return true
		}
	}
	return c.CMSFlag == "true"
}

// HasCMSFlag reports whether any isCMS alias marks the holder as a CMS
// user. The browser bridge only honours this flag, not roles or scopes.
func HasCMSFlag(c Claims) bool {
	for _, f := range c.CMSFlags {
		switch f {
		case "", "false", "0":
			continue
		}
		return true
	}
	return false
}

// Privileged reports whether a role or scope name mentions cms or admin.
func Privileged(name string) bool {
	n := strings.ToLower(name)
	for _, m := range privilegedMarkers {
		if strings.Contains(n, m) {
			return true
		}
	}
	return false
}
