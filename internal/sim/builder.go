package sim

import (
	"fmt"
	"sort"
)

// SignalSpec declares a signal.
type SignalSpec struct {
	Name  string
	Owner string // owning instance name
	// Width in bits of the value, or of each element. 1..64.
	Width int
	// Elements makes the signal an array when > 0.
	Elements int
	// Named marks a human-assigned name, as opposed to a generated one.
	Named bool
	// Init is the initial value of the signal, or of every element.
	Init uint64
}

type instanceSpec struct {
	name   string
	parent string
}

// Builder assembles a design. Declaration order is preserved, except that
// the root instance always ends up last.
type Builder struct {
	root      string
	instances []instanceSpec
	signals   []SignalSpec
	processes []ProcessSpec
}

// NewBuilder starts a design whose root instance is called root.
func NewBuilder(root string) *Builder {
	return &Builder{root: root}
}

// Instance declares a child instance. The parent must be the root or an
// instance declared earlier.
func (b *Builder) Instance(name, parent string) *Builder {
	b.instances = append(b.instances, instanceSpec{name: name, parent: parent})
	return b
}

// Signal declares a signal.
func (b *Builder) Signal(spec SignalSpec) *Builder {
	b.signals = append(b.signals, spec)
	return b
}

// Process declares a process.
func (b *Builder) Process(spec ProcessSpec) *Builder {
	b.processes = append(b.processes, spec)
	return b
}

// Build validates the design and returns a simulator at time 0.
func (b *Builder) Build(opts ...Option) (*Simulator, error) {
	if b.root == "" {
		return nil, &DesignError{Code: ErrCodeUnknownRef, Message: "root instance name is required"}
	}
	st := &State{byName: make(map[string]int, len(b.signals))}

	// Instances: children in declaration order, root last.
	index := make(map[string]int, len(b.instances)+1)
	paths := map[string]string{b.root: b.root}
	for i, spec := range b.instances {
		if spec.name == b.root || paths[spec.name] != "" {
			return nil, &DesignError{Code: ErrCodeDuplicate, Message: "instance declared twice", Ref: spec.name}
		}
		parentPath, ok := paths[spec.parent]
		if !ok {
			return nil, unknownRef("parent instance", spec.parent)
		}
		paths[spec.name] = parentPath + "/" + spec.name
		index[spec.name] = i
	}
	rootIndex := len(b.instances)
	index[b.root] = rootIndex
	for _, spec := range b.instances {
		st.instances = append(st.instances, &Instance{
			name:   spec.name,
			path:   paths[spec.name],
			parent: index[spec.parent],
		})
	}
	st.instances = append(st.instances, &Instance{name: b.root, path: b.root, parent: -1})

	for _, spec := range b.signals {
		if _, dup := st.byName[spec.Name]; dup {
			return nil, &DesignError{Code: ErrCodeDuplicate, Message: "signal declared twice", Ref: spec.Name}
		}
		owner, ok := index[spec.Owner]
		if !ok {
			return nil, unknownRef("owner instance", spec.Owner)
		}
		if spec.Width < 1 || spec.Width > 64 {
			return nil, &DesignError{
				Code:    ErrCodeWidth,
				Message: fmt.Sprintf("width %d outside 1..64", spec.Width),
				Ref:     spec.Name,
			}
		}
		if spec.Elements < 0 {
			return nil, &DesignError{Code: ErrCodeWidth, Message: "negative element count", Ref: spec.Name}
		}
		n := spec.Elements
		if n == 0 {
			n = 1
		}
		sig := &Signal{
			name:     spec.Name,
			width:    spec.Width,
			elems:    spec.Elements,
			values:   make([]uint64, n),
			owner:    owner,
			named:    spec.Named,
			triggers: []int{owner},
		}
		sig.set(Whole, spec.Init)
		st.byName[spec.Name] = len(st.signals)
		st.signals = append(st.signals, sig)
	}

	sim := newSimulator(st, opts...)
	for i, spec := range b.processes {
		p, err := bindProcess(st, index, spec)
		if err != nil {
			return nil, fmt.Errorf("process %d: %w", i, err)
		}
		for _, sig := range p.sigs {
			sim.sensitive[sig] = appendUnique(sim.sensitive[sig], len(sim.procs))
			s := st.signals[sig]
			s.triggers = appendUnique(s.triggers, p.inst)
		}
		sim.procs = append(sim.procs, p)
	}
	for _, s := range st.signals {
		sort.Ints(s.triggers)
	}
	return sim, nil
}

func bindProcess(st *State, index map[string]int, spec ProcessSpec) (process, error) {
	inst, ok := index[spec.Instance]
	if !ok {
		return process{}, unknownRef("instance", spec.Instance)
	}
	kind, err := ParseKind(string(spec.Kind))
	if err != nil {
		return process{}, &DesignError{Code: ErrCodeBadProcess, Message: err.Error(), Ref: spec.Instance}
	}
	if len(spec.Inputs) == 0 || (kind.unary() && len(spec.Inputs) != 1) {
		return process{}, &DesignError{
			Code:    ErrCodeBadProcess,
			Message: fmt.Sprintf("%s takes %s, got %d", kind, arity(kind), len(spec.Inputs)),
			Ref:     spec.Instance,
		}
	}
	p := process{inst: inst, kind: kind, inputs: spec.Inputs, output: spec.Output, delay: spec.Delay}
	for _, in := range spec.Inputs {
		sig, err := st.resolve(in)
		if err != nil {
			return process{}, err
		}
		p.sigs = append(p.sigs, sig)
	}
	if p.outSig, err = st.resolve(spec.Output); err != nil {
		return process{}, err
	}
	return p, nil
}

func arity(k Kind) string {
	if k.unary() {
		return "exactly one input"
	}
	return "at least one input"
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}
