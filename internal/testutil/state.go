package testutil

import (
	"fmt"

	"github.com/roach88/sigtrace/internal/trace"
)

// FakeTime is a trace.Time with a picosecond count and an optional delta step.
type FakeTime struct {
	PS    uint64
	Delta uint32
}

// Ticks implements trace.Time.
func (t FakeTime) Ticks() uint64 { return t.PS }

// String implements trace.Time using the engine's "<ps>ps <delta>d <eps>e" form.
func (t FakeTime) String() string { return fmt.Sprintf("%dps %dd 0e", t.PS, t.Delta) }

// FakeInstance is a trace.Instance with a fixed path.
type FakeInstance struct {
	PathValue string
}

// Path implements trace.Instance.
func (i *FakeInstance) Path() string { return i.PathValue }

// FakeSignal is a mutable trace.Signal for tests.
//
// Value holds the whole-signal hex string; Elements holds one hex string per
// sub-element and makes the signal an array when non-empty.
type FakeSignal struct {
	NameValue string
	Value     string
	Elements  []string
	Owner     int
	Named     bool
	Triggers  []int
}

// Name implements trace.Signal.
func (s *FakeSignal) Name() string { return s.NameValue }

// ElementCount implements trace.Signal.
func (s *FakeSignal) ElementCount() int { return len(s.Elements) }

// HexString implements trace.Signal.
func (s *FakeSignal) HexString() string { return s.Value }

// ElementHexString implements trace.Signal.
func (s *FakeSignal) ElementHexString(elem int) string { return s.Elements[elem] }

// IsOwner implements trace.Signal.
func (s *FakeSignal) IsOwner(inst int) bool { return s.Owner == inst }

// HasValidName implements trace.Signal.
func (s *FakeSignal) HasValidName() bool { return s.Named }

// TriggeredInstances implements trace.Signal.
func (s *FakeSignal) TriggeredInstances() []int { return s.Triggers }

// FakeState is a hand-driven trace.State.
//
// Tests mutate signal values and Now directly between recorder calls, the
// way the engine would between notifications.
type FakeState struct {
	Signals   []*FakeSignal
	Instances []*FakeInstance
	Now       FakeTime
}

// NewFakeState creates a state whose instances have the given paths.
// The last path is the root instance.
func NewFakeState(paths ...string) *FakeState {
	st := &FakeState{}
	for _, p := range paths {
		st.Instances = append(st.Instances, &FakeInstance{PathValue: p})
	}
	return st
}

// Root returns the root instance index.
func (st *FakeState) Root() int { return len(st.Instances) - 1 }

// AddSignal appends a signal and returns its index.
func (st *FakeState) AddSignal(s *FakeSignal) int {
	st.Signals = append(st.Signals, s)
	return len(st.Signals) - 1
}

// SetTime moves the simulated time to ps, delta 0.
func (st *FakeState) SetTime(ps uint64) {
	st.Now = FakeTime{PS: ps}
}

// SignalCount implements trace.State.
func (st *FakeState) SignalCount() int { return len(st.Signals) }

// Signal implements trace.State.
func (st *FakeState) Signal(i int) trace.Signal { return st.Signals[i] }

// InstanceCount implements trace.State.
func (st *FakeState) InstanceCount() int { return len(st.Instances) }

// Instance implements trace.State.
func (st *FakeState) Instance(i int) trace.Instance { return st.Instances[i] }

// Time implements trace.State.
func (st *FakeState) Time() trace.Time { return st.Now }

// FailingWriter is an io.Writer that always fails with Err.
type FailingWriter struct {
	Err error
}

// Write implements io.Writer.
func (w FailingWriter) Write([]byte) (int, error) { return 0, w.Err }
