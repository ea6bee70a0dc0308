package sim

import (
	"context"
	"fmt"
	"log/slog"
)

// Recorder receives signal changes from the simulator. *trace.Recorder
// satisfies it.
type Recorder interface {
	AddChange(sig int)
	Flush(force bool) error
}

// RunStats counts work done by Run.
type RunStats struct {
	Slots       int // time slots processed
	Drives      int // events applied
	Changes     int // signal notifications sent to the recorder
	Evaluations int // process evaluations
}

// Simulator runs a built design.
//
// CRITICAL: Run must be called from exactly one goroutine. The recorder is
// called synchronously from the run loop.
type Simulator struct {
	state     *State
	procs     []process     // declaration order
	sensitive map[int][]int // signal index -> process indices, declaration order
	queue     eventQueue
	rec       Recorder
	logger    *slog.Logger
	maxTime   uint64 // 0 means unbounded
	maxDeltas uint32
	started   bool
	stats     RunStats
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = l
	}
}

// WithMaxTime stops the run before the first slot later than ps
// picoseconds. Zero means run until the queue drains.
func WithMaxTime(ps uint64) Option {
	return func(s *Simulator) {
		s.maxTime = ps
	}
}

// WithMaxDeltas sets the delta step limit per physical instant.
//
// Default: DefaultMaxDeltas.
func WithMaxDeltas(n uint32) Option {
	return func(s *Simulator) {
		s.maxDeltas = n
	}
}

func newSimulator(st *State, opts ...Option) *Simulator {
	s := &Simulator{
		state:     st,
		sensitive: make(map[int][]int),
		logger:    slog.Default(),
		maxDeltas: DefaultMaxDeltas,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the design state. Pass it to trace.New to build a recorder
// for this simulator.
func (s *Simulator) State() *State { return s.state }

// Attach sets the recorder notified of signal changes. Attach before Run.
func (s *Simulator) Attach(r Recorder) { s.rec = r }

// Stats returns the counters accumulated so far.
func (s *Simulator) Stats() RunStats { return s.stats }

// Pending returns the number of queued events.
func (s *Simulator) Pending() int { return s.queue.Len() }

// Drive schedules value onto the signal (or element) at time at.
// Returns a TIME_REGRESSION DesignError when at is before the current time.
func (s *Simulator) Drive(ref Ref, value uint64, at Time) error {
	sig, err := s.state.resolve(ref)
	if err != nil {
		return err
	}
	if at.Before(s.state.now) {
		return &DesignError{
			Code:    ErrCodeTimeRegression,
			Message: fmt.Sprintf("drive at %s is before current time %s", at, s.state.now),
			Ref:     ref.String(),
		}
	}
	s.queue.schedule(event{at: at, sig: sig, elem: ref.Element, value: value})
	return nil
}

// Clock schedules a square wave on ref: 1 at start, then alternating every
// half period, up to and including until.
func (s *Simulator) Clock(ref Ref, period, start, until uint64) error {
	if period < 2 {
		return &DesignError{
			Code:    ErrCodeBadProcess,
			Message: fmt.Sprintf("clock period %dps is shorter than 2ps", period),
			Ref:     ref.String(),
		}
	}
	half := period / 2
	var level uint64 = 1
	for t := start; t <= until; t += half {
		if err := s.Drive(ref, level, Time{PS: t}); err != nil {
			return err
		}
		level ^= 1
	}
	return nil
}

// Run processes events until the queue drains, MaxTime is passed, or ctx
// is cancelled. On return without error the recorder has been force-flushed.
//
// Every process is evaluated once when Run is first called so outputs agree
// with their initial inputs.
func (s *Simulator) Run(ctx context.Context) error {
	s.logger.Info("simulation starting",
		"signals", len(s.state.signals),
		"instances", len(s.state.instances),
		"processes", len(s.procs),
		"events", s.queue.Len(),
	)

	if !s.started {
		s.started = true
		for i := range s.procs {
			s.evaluate(i)
		}
	}

	for s.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			s.logger.Info("simulation stopping: context cancelled", "time", s.state.now.String())
			return err
		}
		at := s.queue.peek()
		if s.maxTime > 0 && at.PS > s.maxTime {
			s.logger.Info("simulation stopping: max time reached",
				"max_time_ps", s.maxTime,
				"pending", s.queue.Len(),
			)
			break
		}
		if at.Delta > s.maxDeltas {
			s.logger.Error("delta step limit exceeded",
				"time", at.String(),
				"limit", s.maxDeltas,
			)
			return &DeltaLimitError{Time: at, Limit: s.maxDeltas}
		}
		if err := s.step(at); err != nil {
			return err
		}
	}

	if s.rec != nil {
		if err := s.rec.Flush(true); err != nil {
			return fmt.Errorf("final trace flush: %w", err)
		}
	}

	s.logger.Info("simulation finished",
		"time", s.state.now.String(),
		"slots", s.stats.Slots,
		"changes", s.stats.Changes,
	)
	return nil
}

// step processes one time slot.
func (s *Simulator) step(at Time) error {
	s.state.now = at
	if s.rec != nil {
		if err := s.rec.Flush(false); err != nil {
			return fmt.Errorf("trace flush at %s: %w", at, err)
		}
	}

	events := s.queue.popSlot(at)
	before := make(map[int][]uint64, len(events))
	var touched []int
	for _, ev := range events {
		sig := s.state.signals[ev.sig]
		if _, seen := before[ev.sig]; !seen {
			before[ev.sig] = sig.snapshot()
			touched = append(touched, ev.sig)
		}
		sig.set(ev.elem, ev.value)
	}

	var changed []int
	for _, i := range touched {
		if s.state.signals[i].differs(before[i]) {
			changed = append(changed, i)
		}
	}
	for _, i := range changed {
		if s.rec != nil {
			s.rec.AddChange(i)
		}
	}

	run := make([]bool, len(s.procs))
	for _, i := range changed {
		for _, p := range s.sensitive[i] {
			run[p] = true
		}
	}
	for p, ok := range run {
		if ok {
			s.evaluate(p)
		}
	}

	s.stats.Slots++
	s.stats.Drives += len(events)
	s.stats.Changes += len(changed)

	s.logger.Debug("time slot processed",
		"time", at.String(),
		"drives", len(events),
		"changed", len(changed),
	)
	return nil
}

// evaluate computes process p from current input values and schedules its
// output.
func (s *Simulator) evaluate(p int) {
	proc := s.procs[p]
	in := make([]uint64, len(proc.inputs))
	for i, ref := range proc.inputs {
		in[i] = s.state.signals[proc.sigs[i]].Value(ref.Element)
	}
	delay := proc.delay
	if delay.IsZero() {
		delay = Delay{Delta: 1}
	}
	s.queue.schedule(event{
		at:    s.state.now.After(delay),
		sig:   proc.outSig,
		elem:  proc.output.Element,
		value: proc.kind.eval(in),
	})
	s.stats.Evaluations++
}
