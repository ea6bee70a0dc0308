package sim

import "fmt"

// Time is a simulated time: physical picoseconds, then delta and epsilon
// steps within one physical instant.
type Time struct {
	PS    uint64
	Delta uint32
	Eps   uint32
}

// Ticks returns the picosecond count.
func (t Time) Ticks() uint64 { return t.PS }

// String returns the canonical "<ps>ps <delta>d <eps>e" form.
func (t Time) String() string {
	return fmt.Sprintf("%dps %dd %de", t.PS, t.Delta, t.Eps)
}

// Before reports whether t is strictly earlier than u.
func (t Time) Before(u Time) bool {
	if t.PS != u.PS {
		return t.PS < u.PS
	}
	if t.Delta != u.Delta {
		return t.Delta < u.Delta
	}
	return t.Eps < u.Eps
}

// Delay is a relative time. A physical delay resets the delta and epsilon
// steps; a delta delay resets epsilon.
type Delay struct {
	PS    uint64
	Delta uint32
	Eps   uint32
}

// IsZero reports whether d is no delay at all.
func (d Delay) IsZero() bool { return d == Delay{} }

// After returns the time reached after waiting d from t.
func (t Time) After(d Delay) Time {
	switch {
	case d.PS > 0:
		return Time{PS: t.PS + d.PS, Delta: d.Delta, Eps: d.Eps}
	case d.Delta > 0:
		return Time{PS: t.PS, Delta: t.Delta + d.Delta, Eps: d.Eps}
	default:
		return Time{PS: t.PS, Delta: t.Delta, Eps: t.Eps + d.Eps}
	}
}
