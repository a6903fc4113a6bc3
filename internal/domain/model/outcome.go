package model

// Mode tells consumers whether a value was computed from live upstream data
// or synthesized as a placeholder.
type Mode string

const (
	ModeLive Mode = "live"
	ModeDemo Mode = "demo"
)

// Outcome is the result of a best-effort upstream lookup. A degraded outcome
// still carries a usable Value together with the reason live data was not used.
type Outcome[T any] struct {
	Value  T
	Mode   Mode
	Reason string
}

func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v, Mode: ModeLive}
}

func Degraded[T any](v T, reason string) Outcome[T] {
	return Outcome[T]{Value: v, Mode: ModeDemo, Reason: reason}
}

func (o Outcome[T]) Live() bool {
	return o.Mode.IsLive()
}

// Notes returns the degradation reason as a slice suitable for response payloads.
func (o Outcome[T]) Notes() []string {
	if o.Reason == "" {
		return []string{}
	}
	return []string{o.Reason}
}

func (m Mode) IsLive() bool {
	return m == ModeLive
}
