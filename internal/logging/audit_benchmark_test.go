package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func BenchmarkAuditDisabled(b *testing.B) {
	// Debug audits against an info logger must stay cheap.
	core, _ := observer.New(zapcore.InfoLevel)
	l := zap.New(core)
	e := AuditEvent{Type: AuditCorrectionFired, Field: "category", Rule: "other_resolution", From: "OTHER", To: "UTILITIES"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Audit(l, e)
	}
}

func BenchmarkAuditEnabled(b *testing.B) {
	l := zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(discard{}), zapcore.DebugLevel))
	e := AuditEvent{Type: AuditAmountSelected, Rule: "amount_total", Score: 0.95}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Audit(l, e)
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
