package scenario

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/roach88/sigtrace/internal/sim"
)

// Build constructs the simulator described by the scenario and schedules
// its drives and clocks. The scenario's max_time applies unless opts
// override it.
func (s *Scenario) Build(opts ...sim.Option) (*sim.Simulator, error) {
	b := sim.NewBuilder(s.Root)
	for _, inst := range s.Instances {
		b.Instance(inst.Name, inst.Parent)
	}

	for i, sig := range s.Signals {
		init, err := safecast.Conv[uint64](sig.Init)
		if err != nil {
			return nil, fmt.Errorf("signals[%d]: init: %w", i, err)
		}
		b.Signal(sim.SignalSpec{
			Name:     sig.Name,
			Owner:    sig.Owner,
			Width:    sig.Width,
			Elements: sig.Elements,
			Named:    sig.Named,
			Init:     init,
		})
	}

	for i, p := range s.Processes {
		spec, err := p.spec()
		if err != nil {
			return nil, fmt.Errorf("processes[%d]: %w", i, err)
		}
		b.Process(spec)
	}

	var simOpts []sim.Option
	if s.MaxTime > 0 {
		maxTime, err := safecast.Conv[uint64](s.MaxTime)
		if err != nil {
			return nil, fmt.Errorf("max_time: %w", err)
		}
		simOpts = append(simOpts, sim.WithMaxTime(maxTime))
	}
	sm, err := b.Build(append(simOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("build design: %w", err)
	}

	for i, d := range s.Drives {
		ref := sim.Ref{Signal: d.Signal, Element: sim.Whole}
		if d.Element != nil {
			ref.Element = *d.Element
		}
		value, err := safecast.Conv[uint64](d.Value)
		if err != nil {
			return nil, fmt.Errorf("drives[%d]: value: %w", i, err)
		}
		at, err := d.At.time()
		if err != nil {
			return nil, fmt.Errorf("drives[%d]: at: %w", i, err)
		}
		if err := sm.Drive(ref, value, at); err != nil {
			return nil, fmt.Errorf("drives[%d]: %w", i, err)
		}
	}

	for i, c := range s.Clocks {
		ref, err := ParseRef(c.Signal)
		if err != nil {
			return nil, fmt.Errorf("clocks[%d]: %w", i, err)
		}
		period, err1 := safecast.Conv[uint64](c.Period)
		start, err2 := safecast.Conv[uint64](c.Start)
		until, err3 := safecast.Conv[uint64](c.Until)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("clocks[%d]: negative time", i)
		}
		if err := sm.Clock(ref, period, start, until); err != nil {
			return nil, fmt.Errorf("clocks[%d]: %w", i, err)
		}
	}

	return sm, nil
}

func (p ProcessDecl) spec() (sim.ProcessSpec, error) {
	spec := sim.ProcessSpec{Instance: p.Instance, Kind: sim.Kind(p.Kind)}
	for _, in := range p.Inputs {
		ref, err := ParseRef(in)
		if err != nil {
			return sim.ProcessSpec{}, err
		}
		spec.Inputs = append(spec.Inputs, ref)
	}
	out, err := ParseRef(p.Output)
	if err != nil {
		return sim.ProcessSpec{}, err
	}
	spec.Output = out

	at, err := p.Delay.time()
	if err != nil {
		return sim.ProcessSpec{}, fmt.Errorf("delay: %w", err)
	}
	spec.Delay = sim.Delay(at)
	return spec, nil
}

func (t TimeDecl) time() (sim.Time, error) {
	ps, err := safecast.Conv[uint64](t.PS)
	if err != nil {
		return sim.Time{}, err
	}
	delta, err := safecast.Conv[uint32](t.Delta)
	if err != nil {
		return sim.Time{}, err
	}
	eps, err := safecast.Conv[uint32](t.Eps)
	if err != nil {
		return sim.Time{}, err
	}
	return sim.Time{PS: ps, Delta: delta, Eps: eps}, nil
}
