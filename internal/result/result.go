// Package result provides the explicit outcome type returned by the intake engines,
// so callers can tell a confident answer from a best-effort fallback.
package result

// Status classifies how an outcome was produced.
type Status int

const (
	// StatusOK means the value was computed normally.
	StatusOK Status = iota
	// StatusDegraded means the value is a best-effort answer (input trimmed, partial failure).
	StatusDegraded
	// StatusFailed means the value is the fallback default.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDegraded:
		return "degraded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome carries a value together with how trustworthy it is.
// Value is always populated, even for failed outcomes.
type Outcome[T any] struct {
	Status Status
	Value  T
	Reason string
}

// OK wraps a normally computed value.
func OK[T any](v T) Outcome[T] {
	return Outcome[T]{Status: StatusOK, Value: v}
}

// Degraded wraps a best-effort value.
func Degraded[T any](v T, reason string) Outcome[T] {
	return Outcome[T]{Status: StatusDegraded, Value: v, Reason: reason}
}

// Failed wraps the fallback value returned when computation did not succeed.
func Failed[T any](fallback T, reason string) Outcome[T] {
	return Outcome[T]{Status: StatusFailed, Value: fallback, Reason: reason}
}

// IsOK reports whether the outcome is a confident answer.
func (o Outcome[T]) IsOK() bool { return o.Status == StatusOK }

// Failed reports whether the outcome holds only the fallback value.
func (o Outcome[T]) Failed() bool { return o.Status == StatusFailed }
