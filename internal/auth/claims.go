package auth

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ExternalClaims is the raw claims object decoded from an external token.
// Its shape is not under our control; use Normalize before inspecting it.
type ExternalClaims map[string]any

// Claims is the canonical view of an external identity. Every known alias
// of a field is folded into a single member here so the rest of the code
// never has to care which spelling the issuer used.
type Claims struct {
	Subject   string
	Email     string
	Username  string
	FirstName string
	LastName  string
	Roles     []string
	Scopes    []string

	// CMSFlag holds the stringified, lowercased value of the first present
	// isCMS alias, or "" when none is set.
	CMSFlag string
	// CMSFlags holds every present isCMS alias in the same form.
	CMSFlags []string

	// Password is only carried by bridge tokens consumed in the browser.
	Password string

	ExpiresAt int64
	HasExpiry bool
}

var (
	subjectKeys   = []string{"sub", "id", "user_id"}
	usernameKeys  = []string{"username", "preferred_username"}
	firstNameKeys = []string{"firstname", "name", "given_name"}
	lastNameKeys  = []string{"lastname", "family_name"}
	roleKeys      = []string{"roles", "role", "authorities"}
	scopeKeys     = []string{"scope", "permissions"}
	cmsFlagKeys   = []string{"isCMS", "isCms", "is_cms"}
	passwordKeys  = []string{"passWord", "password"}
)

// Normalize maps the known aliases of raw onto a Claims value. Missing or
// oddly typed fields leave the corresponding member empty.
func Normalize(raw ExternalClaims) Claims {
	var c Claims
	if raw == nil {
		return c
	}

	c.Subject = firstString(raw, subjectKeys)
	c.Email = stringOf(raw["email"])
	c.Username = firstString(raw, usernameKeys)
	c.FirstName = firstString(raw, firstNameKeys)
	c.LastName = firstString(raw, lastNameKeys)
	c.Password = firstString(raw, passwordKeys)
	c.Roles = roleNames(firstPresent(raw, roleKeys))
	c.Scopes = scopeList(firstPresent(raw, scopeKeys))

	for _, k := range cmsFlagKeys {
		if v, ok := raw[k]; ok && v != nil {
			c.CMSFlags = append(c.CMSFlags, strings.ToLower(stringOf(v)))
		}
	}
	if len(c.CMSFlags) > 0 {
		c.CMSFlag = c.CMSFlags[0]
	}

	if exp, ok := numberOf(raw["exp"]); ok {
		c.ExpiresAt = exp
		c.HasExpiry = true
	}

	return c
}

// Expired reports whether the token carried an exp in the past.
func (c Claims) Expired(now time.Time) bool {
	return c.HasExpiry && c.ExpiresAt < now.Unix()
}

// firstPresent returns the first value under keys that is neither absent
// nor null.
func firstPresent(raw ExternalClaims, keys []string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// firstString returns the first non-empty string form among keys.
func firstString(raw ExternalClaims, keys []string) string {
	for _, k := range keys {
		if s := stringOf(raw[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}

func numberOf(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return clampInt64(t)
	case int:
		return int64(t), true
	case int64:
		return t, true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return clampInt64(n)
	case string:
		n, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return clampInt64(n)
	}
	return 0, false
}

// clampInt64 truncates f toward zero, saturating at the int64 range.
func clampInt64(f float64) (int64, bool) {
	switch {
	case math.IsNaN(f):
		return 0, false
	case f >= math.MaxInt64:
		return math.MaxInt64, true
	case f <= math.MinInt64:
		return math.MinInt64, true
	}
	return int64(f), true
}

// roleNames accepts a single role, a list of role strings, or a list of
// role objects carrying "name" or "code".
func roleNames(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			var name string
			switch r := item.(type) {
			case string:
				name = r
			case map[string]any:
				name = stringOf(r["name"])
				if name == "" {
					name = stringOf(r["code"])
				}
			}
			if name != "" {
				out = append(out, name)
			}
		}
		return out
	case []string:
		return nonEmpty(t)
	default:
		if s := stringOf(t); s != "" {
			return []string{s}
		}
		return nil
	}
}

// scopeList accepts a space-delimited string or a list.
func scopeList(v any) []string {
	switch t := v.(type) {
	case string:
		return strings.Fields(t)
	case []string:
		return nonEmpty(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringOf(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
