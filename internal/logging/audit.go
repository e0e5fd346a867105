package logging

import (
	"go.uber.org/zap"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	AuditUrgencyAssessed  AuditEventType = "urgency_assessed"
	AuditUrgencyOverride  AuditEventType = "urgency_override"
	AuditAmountSelected   AuditEventType = "amount_selected"
	AuditAmountRejected   AuditEventType = "amount_rejected"
	AuditCorrectionFired  AuditEventType = "correction_fired"
	AuditCorrectionFailed AuditEventType = "correction_failed"
	AuditInvalidInput     AuditEventType = "invalid_input"
	AuditRecoveredPanic   AuditEventType = "recovered_panic"
)

// AuditEvent is a structured audit entry. Every field is a label, level, category
// or number; none may carry transcript text.
type AuditEvent struct {
	Type   AuditEventType
	Field  string  // category, name, amount, urgency
	Rule   string  // rule or pattern label
	From   string  // original value (rendered)
	To     string  // replacement value (rendered)
	Score  float64 // score or confidence when relevant
	Detail string  // short label, e.g. rejection kind
}

// fields renders the event as zap fields, skipping empty values.
func (e AuditEvent) fields() []zap.Field {
	out := []zap.Field{zap.String("event", string(e.Type))}
	if e.Field != "" {
		out = append(out, zap.String("field", e.Field))
	}
	if e.Rule != "" {
		out = append(out, zap.String("rule", e.Rule))
	}
	if e.From != "" {
		out = append(out, zap.String("from", e.From))
	}
	if e.To != "" {
		out = append(out, zap.String("to", e.To))
	}
	if e.Score != 0 {
		out = append(out, zap.Float64("score", e.Score))
	}
	if e.Detail != "" {
		out = append(out, zap.String("detail", e.Detail))
	}
	return out
}

// Audit writes the event at debug level, or warn for failures.
func Audit(l *zap.Logger, e AuditEvent) {
	if l == nil {
		return
	}
	switch e.Type {
	case AuditCorrectionFailed, AuditRecoveredPanic:
		l.Warn("audit", e.fields()...)
	default:
		l.Debug("audit", e.fields()...)
	}
}
