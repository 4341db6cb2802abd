// Package token decodes the compact three-segment tokens issued by Cobalt.
//
// Only the middle segment is consumed. Unless a Codec is built with a
// shared secret, no signature is checked: the claims are exactly as
// trustworthy as the channel that delivered them.
package token

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cms-bridge/internal/auth"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed      = errors.New("token: malformed")
	ErrInvalidPayload = errors.New("token: invalid payload")
	ErrBadSignature   = errors.New("token: signature verification failed")
)

// Decode extracts the claims object from the second dot-separated segment.
func Decode(token string) (auth.ExternalClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 || parts[1] == "" {
		return nil, ErrMalformed
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))

	var claims map[string]any
	if err := dec.Decode(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if claims == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrInvalidPayload)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidPayload)
	}

	return auth.ExternalClaims(claims), nil
}

// decodeSegment reverses the URL-safe substitution and accepts the segment
// with or without padding.
func decodeSegment(seg string) ([]byte, error) {
	s := strings.NewReplacer("-", "+", "_", "/").Replace(seg)
	s = strings.TrimRight(s, "=")
	return base64.RawStdEncoding.DecodeString(s)
}

// Codec decodes Cobalt tokens, optionally verifying an HS256 MAC first.
type Codec struct {
	secret []byte
}

// NewCodec returns a codec. An empty secret disables signature checks.
func NewCodec(secret string) *Codec {
	c := &Codec{}
	if secret != "" {
		c.secret = []byte(secret)
	}
	return c
}

// Verifying reports whether the codec checks signatures.
func (c *Codec) Verifying() bool {
	return len(c.secret) > 0
}

func (c *Codec) Decode(token string) (auth.ExternalClaims, error) {
	if c.Verifying() {
		if err := c.verify(token); err != nil {
			return nil, err
		}
	}
	return Decode(token)
}

// verify checks the MAC only. Expiry is left to the caller so that an
// expired token is reported as expired, not as badly signed.
func (c *Codec) verify(token string) error {
	if strings.Count(token, ".") != 2 {
		return ErrMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	_, err := parser.Parse(token, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	return nil
}
