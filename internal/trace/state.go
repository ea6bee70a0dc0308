package trace

// Time is a simulated time value as seen by the recorder.
type Time interface {
	// Ticks returns the picosecond count. Merged flush gating compares
	// ticks, so delta and epsilon steps of one instant coalesce.
	Ticks() uint64
	// String returns the canonical display form used by Full and Reduced lines.
	String() string
}

// State is the read-only view of the simulation engine the recorder needs.
// Indices are dense and stable for the recorder's lifetime.
//
// INVARIANT: the root instance is always the last instance, at
// InstanceCount()-1.
type State interface {
	SignalCount() int
	Signal(i int) Signal
	InstanceCount() int
	Instance(i int) Instance
	// Time returns the engine's current simulated time.
	Time() Time
}

// Signal describes one simulated signal.
type Signal interface {
	Name() string
	// ElementCount returns the number of sub-elements, 0 for a scalar signal.
	ElementCount() int
	// HexString encodes the whole current value.
	HexString() string
	// ElementHexString encodes the current value of one sub-element.
	ElementHexString(elem int) string
	// IsOwner reports whether instance inst owns the signal.
	IsOwner(inst int) bool
	// HasValidName reports whether the signal carries a human-assigned name.
	HasValidName() bool
	// TriggeredInstances returns the indices of the instances that are
	// sensitive to the signal.
	TriggeredInstances() []int
}

// Instance is a node of the module hierarchy.
type Instance interface {
	// Path returns the hierarchical path, e.g. "top/alu".
	Path() string
}
