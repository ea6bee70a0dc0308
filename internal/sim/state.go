package sim

import "github.com/roach88/sigtrace/internal/trace"

// Instance is a node of the module hierarchy.
type Instance struct {
	name   string
	path   string
	parent int // -1 for the root
}

// Name returns the instance name.
func (i *Instance) Name() string { return i.name }

// Path implements trace.Instance.
func (i *Instance) Path() string { return i.path }

// Parent returns the parent instance index, -1 for the root.
func (i *Instance) Parent() int { return i.parent }

// State is the simulator's design and current time. It implements
// trace.State.
//
// INVARIANT: the root instance is the last element of instances.
type State struct {
	instances []*Instance
	signals   []*Signal
	byName    map[string]int
	now       Time
}

var _ trace.State = (*State)(nil)

// SignalCount implements trace.State.
func (st *State) SignalCount() int { return len(st.signals) }

// Signal implements trace.State.
func (st *State) Signal(i int) trace.Signal { return st.signals[i] }

// InstanceCount implements trace.State.
func (st *State) InstanceCount() int { return len(st.instances) }

// Instance implements trace.State.
func (st *State) Instance(i int) trace.Instance { return st.instances[i] }

// Time implements trace.State.
func (st *State) Time() trace.Time { return st.now }

// Now returns the current simulated time.
func (st *State) Now() Time { return st.now }

// Root returns the root instance index.
func (st *State) Root() int { return len(st.instances) - 1 }

// SignalByName returns the signal with the given name.
func (st *State) SignalByName(name string) (*Signal, int, bool) {
	i, ok := st.byName[name]
	if !ok {
		return nil, -1, false
	}
	return st.signals[i], i, true
}

// resolve checks a reference and returns the signal index.
func (st *State) resolve(r Ref) (int, error) {
	i, ok := st.byName[r.Signal]
	if !ok {
		return -1, unknownRef("signal", r.Signal)
	}
	s := st.signals[i]
	if r.Element != Whole && (r.Element < 0 || r.Element >= s.elems) {
		return -1, unknownRef("element", r.String())
	}
	return i, nil
}
