package logger

import (
	"testing"

	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldsReachTheCore(t *testing.T) {
	g := NewWithT(t)

	core, logs := observer.New(zapcore.InfoLevel)
	prev := L()
	Set(zap.New(core))
	defer Set(prev)

	Info("auto-login", map[string]any{"admin_id": "a1", "created": true})
	Warn("no fields", nil)
	L().Debug("dropped")

	entries := logs.All()
	g.Expect(entries).To(HaveLen(2))
	g.Expect(entries[0].Message).To(Equal("auto-login"))
	g.Expect(entries[0].ContextMap()).To(Equal(map[string]any{"admin_id": "a1", "created": true}))
	g.Expect(entries[1].Level).To(Equal(zapcore.WarnLevel))
	g.Expect(entries[1].Context).To(BeEmpty())
}
