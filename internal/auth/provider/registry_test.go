package provider

import (
	"context"
	"errors"
	"testing"

	"cms-bridge/internal/auth"

	. "github.com/onsi/gomega"
)

type fakeProvider struct {
	name   string
	accept string
}

func (f fakeProvider) Name() string                   { return f.name }
func (f fakeProvider) AuthCodeURL(_, _ string) string { return "https://" + f.name }

func (f fakeProvider) ExchangeCode(context.Context, string, string) (auth.ExternalClaims, error) {
	return nil, errors.New("not used")
}

func (f fakeProvider) VerifyIDToken(_ context.Context, raw string) (auth.ExternalClaims, error) {
	if raw != f.accept {
		return nil, errors.New(f.name + ": rejected")
	}
	return auth.ExternalClaims{"iss": f.name}, nil
}

func TestRegistryGet(t *testing.T) {
	g := NewWithT(t)

	r := NewRegistry(fakeProvider{name: "cobalt"})
	g.Expect(r.Len()).To(Equal(1))

	p, err := r.Get("cobalt")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(p.Name()).To(Equal("cobalt"))

	_, err = r.Get("github")
	g.Expect(err).To(MatchError(ErrUnknownProvider))
}

func TestRegistryVerifyIDToken(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()

	r := NewRegistry(
		fakeProvider{name: "a", accept: "token-a"},
		fakeProvider{name: "b", accept: "token-b"},
	)

	claims, err := r.VerifyIDToken(ctx, "token-b")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(claims).To(HaveKeyWithValue("iss", "b"))

	_, err = r.VerifyIDToken(ctx, "token-c")
	g.Expect(err).To(MatchError("b: rejected"))

	_, err = NewRegistry().VerifyIDToken(ctx, "token-a")
	g.Expect(err).To(MatchError(ErrUnknownProvider))
}
