package token

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"cms-bridge/internal/auth"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/gomega"
)

func segment(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func unsigned(claims map[string]any) string {
	return segment(map[string]any{"alg": "none", "typ": "JWT"}) + "." + segment(claims) + ".sig"
}

func TestDecodeReturnsMiddleSegment(t *testing.T) {
	g := NewWithT(t)

	in := map[string]any{
		"sub":   "cobalt-42",
		"email": "Editor@Example.com",
		"isCMS": true,
		"roles": []any{"cms-editor", map[string]any{"code": "viewer"}},
		"exp":   float64(time.Now().Add(time.Hour).Unix()),
	}

	got, err := Decode(unsigned(in))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(map[string]any(got)).To(Equal(in))
}

func TestDecodeAcceptsTwoSegmentsAndPadding(t *testing.T) {
	g := NewWithT(t)

	raw, _ := json.Marshal(map[string]any{"email": "a@b.c"})
	padded := base64.URLEncoding.EncodeToString(raw)

	got, err := Decode("header." + padded)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(got).To(HaveKeyWithValue("email", "a@b.c"))
}

func TestDecodeFailures(t *testing.T) {
	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMalformed},
		{"single segment", "invalid_token", ErrMalformed},
		{"empty payload", "a..c", ErrMalformed},
		{"not base64", "a.!!!.c", ErrInvalidPayload},
		{"not json", "a." + base64.RawURLEncoding.EncodeToString([]byte("hello")) + ".c", ErrInvalidPayload},
		{"json array", "a." + segment([]int{1, 2}) + ".c", ErrInvalidPayload},
		{"json null", "a." + base64.RawURLEncoding.EncodeToString([]byte("null")) + ".c", ErrInvalidPayload},
		{"trailing data", "a." + base64.RawURLEncoding.EncodeToString([]byte(`{"a":1}{}`)) + ".c", ErrInvalidPayload},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewWithT(t)
			_, err := Decode(tc.token)
			g.Expect(err).To(MatchError(tc.want))
		})
	}
}

func TestCodecWithoutSecretSkipsSignature(t *testing.T) {
	g := NewWithT(t)

	c := NewCodec("")
	g.Expect(c.Verifying()).To(BeFalse())

	got, err := c.Decode(unsigned(map[string]any{"email": "x@y.z"}))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(auth.Normalize(got).Email).To(Equal("x@y.z"))
}

func TestCodecVerifiesMAC(t *testing.T) {
	g := NewWithT(t)

	c := NewCodec("shared")
	g.Expect(c.Verifying()).To(BeTrue())

	expired := jwt.MapClaims{"email": "x@y.z", "exp": time.Now().Add(-time.Hour).Unix()}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte("shared"))
	g.Expect(err).NotTo(HaveOccurred())

	// expiry is not the codec's concern
	got, err := c.Decode(signed)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(auth.Normalize(got).Expired(time.Now())).To(BeTrue())

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte("other"))
	g.Expect(err).NotTo(HaveOccurred())
	_, err = c.Decode(forged)
	g.Expect(err).To(MatchError(ErrBadSignature))

	_, err = c.Decode(unsigned(map[string]any{"email": "x@y.z"}))
	g.Expect(err).To(HaveOccurred())

	_, err = c.Decode("only.two")
	g.Expect(err).To(MatchError(ErrMalformed))
}
