package sim

import (
	"strconv"
	"strings"
)

// Whole selects the whole value of a signal rather than one element.
const Whole = -1

// Ref addresses a signal, or one element of an array signal.
type Ref struct {
	Signal  string
	Element int // Whole, or an element index
}

// String renders the reference as "name" or "name[i]".
func (r Ref) String() string {
	if r.Element == Whole {
		return r.Signal
	}
	return r.Signal + "[" + strconv.Itoa(r.Element) + "]"
}

// Signal is a simulated signal. Scalars hold one value; arrays hold one
// value per element. Every value is masked to the signal width.
type Signal struct {
	name   string
	width  int
	elems  int
	values []uint64
	owner  int
	named  bool

	// triggers holds the sorted indices of the instances sensitive to the
	// signal. The owner is always one of them.
	triggers []int
}

// Name implements trace.Signal.
func (s *Signal) Name() string { return s.name }

// Width returns the bit width of the signal, or of each element.
func (s *Signal) Width() int { return s.width }

// ElementCount implements trace.Signal.
func (s *Signal) ElementCount() int { return s.elems }

// IsOwner implements trace.Signal.
func (s *Signal) IsOwner(inst int) bool { return s.owner == inst }

// Owner returns the owning instance index.
func (s *Signal) Owner() int { return s.owner }

// HasValidName implements trace.Signal.
func (s *Signal) HasValidName() bool { return s.named }

// TriggeredInstances implements trace.Signal.
func (s *Signal) TriggeredInstances() []int { return s.triggers }

// HexString implements trace.Signal. An array renders its elements from
// the highest index down, most significant first.
func (s *Signal) HexString() string {
	if s.elems == 0 {
		return hexValue(s.values[0], s.width)
	}
	var b strings.Builder
	for i := s.elems - 1; i >= 0; i-- {
		b.WriteString(hexValue(s.values[i], s.width))
	}
	return b.String()
}

// ElementHexString implements trace.Signal.
func (s *Signal) ElementHexString(elem int) string {
	return hexValue(s.values[elem], s.width)
}

// Value returns the value of the whole signal (scalars) or of one element.
// Arrays read as Whole return element 0.
func (s *Signal) Value(elem int) uint64 {
	if elem == Whole {
		elem = 0
	}
	return s.values[elem]
}

// set stores v (masked) and reports whether the stored value changed.
// Whole on an array sets every element.
func (s *Signal) set(elem int, v uint64) bool {
	v &= s.mask()
	if elem != Whole {
		old := s.values[elem]
		s.values[elem] = v
		return old != v
	}
	changed := false
	for i := range s.values {
		if s.values[i] != v {
			s.values[i] = v
			changed = true
		}
	}
	return changed
}

func (s *Signal) mask() uint64 {
	if s.width >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(s.width) - 1
}

func (s *Signal) snapshot() []uint64 {
	out := make([]uint64, len(s.values))
	copy(out, s.values)
	return out
}

func (s *Signal) differs(old []uint64) bool {
	for i, v := range s.values {
		if old[i] != v {
			return true
		}
	}
	return false
}

// hexValue renders v in lowercase hex, zero-padded to the digits needed for
// width bits.
func hexValue(v uint64, width int) string {
	digits := (width + 3) / 4
	if digits < 1 {
		digits = 1
	}
	h := strconv.FormatUint(v, 16)
	if len(h) < digits {
		h = strings.Repeat("0", digits-len(h)) + h
	}
	return h
}
