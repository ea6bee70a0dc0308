package trace

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// WholeSignal is the element index used for changes that cover a whole
// signal rather than one of its sub-elements. It keys both the last-value
// cache (by path) and the merged snapshot (by signal index), so the two key
// spaces never confuse element 0 with the whole value.
const WholeSignal = -1

// Change is one recorded value change.
type Change struct {
	// Key is the hierarchical output key: "<instance path>/<signal>[<elem>]".
	Key string
	// Value is the hex encoding of the new value.
	Value string
}

// Block is a group of changes written by a single flush.
type Block struct {
	// Time is the time marker the block was written with.
	Time Time
	// Header is set when the block was written in the merged format.
	Header  bool
	Changes []Change
}

// Listener receives every non-empty block after it has been written to the
// sink. Listeners are called in registration order.
type Listener interface {
	OnFlush(b Block) error
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(b Block) error

// OnFlush calls f(b).
func (f ListenerFunc) OnFlush(b Block) error { return f(b) }

// Stats counts recorder activity since construction.
type Stats struct {
	Notifications int // AddChange calls while tracing is enabled
	Ignored       int // notifications for signals that are not traced
	Emitted       int // changes appended to the pending buffer
	Deduplicated  int // changes dropped because the value was already recorded
	Flushes       int // non-empty blocks written
	Lines         int // lines written, headers included
}

type valueKey struct {
	path string
	elem int
}

type mergeKey struct {
	sig  int
	elem int
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger used for recorder diagnostics.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithListener registers a listener for flushed blocks.
func WithListener(l Listener) Option {
	return func(r *Recorder) {
		if l != nil {
			r.listeners = append(r.listeners, l)
		}
	}
}

// Recorder records signal changes reported by the engine.
//
// INVARIANTS:
//   - traced is computed once in New and never recomputed
//   - lastValue is updated on every emission and never rolled back
//   - the pending buffer never holds two consecutive identical values for
//     the same key without a different value in between
type Recorder struct {
	out       io.Writer
	state     State
	mode      Mode
	logger    *slog.Logger
	listeners []Listener

	traced    []bool
	lastValue map[valueKey]string
	changes   []Change
	merged    map[mergeKey]string

	// now is the time of the most recently ingested change, nil until the
	// first one. A nil marker counts as tick 0, i.e. before any time advance.
	now Time

	stats Stats
}

// New creates a Recorder writing to out in the given mode.
//
// The eligibility of every signal of state is decided here, once.
// The recorder never closes out.
func New(state State, out io.Writer, mode Mode, opts ...Option) *Recorder {
	r := &Recorder{
		out:       out,
		state:     state,
		mode:      mode,
		logger:    slog.Default(),
		lastValue: make(map[valueKey]string),
		merged:    make(map[mergeKey]string),
	}
	for _, opt := range opts {
		opt(r)
	}

	root := state.InstanceCount() - 1
	n := state.SignalCount()
	r.traced = make([]bool, n)
	traced := 0
	for i := 0; i < n; i++ {
		sig := state.Signal(i)
		r.traced[i] = mode.eligible(root >= 0 && sig.IsOwner(root), sig.HasValidName())
		if r.traced[i] {
			traced++
		}
	}

	r.logger.Info("trace recorder created",
		"mode", mode.String(),
		"signals", n,
		"traced", traced,
	)
	return r
}

// Mode returns the recorder's mode.
func (r *Recorder) Mode() Mode { return r.mode }

// Stats returns a copy of the activity counters.
func (r *Recorder) Stats() Stats { return r.stats }

// Pending returns the number of changes waiting for the next flush.
// Snapshot entries of the merged modes are not counted until they are
// expanded at flush time.
func (r *Recorder) Pending() int { return len(r.changes) }

// IsTraced reports whether signal sig is ever recorded.
// Panics if sig is out of range.
func (r *Recorder) IsTraced(sig int) bool {
	r.checkSignal(sig)
	return r.traced[sig]
}

// AddChange notifies the recorder that signal sig changed at the engine's
// current time. Panics if sig is out of range.
func (r *Recorder) AddChange(sig int) {
	if r.mode == ModeNone {
		return
	}
	r.checkSignal(sig)
	r.stats.Notifications++

	r.now = r.state.Time()
	if !r.traced[sig] {
		r.stats.Ignored++
		return
	}

	switch r.mode {
	case ModeFull:
		for _, inst := range r.state.Signal(sig).TriggeredInstances() {
			r.pushAllChanges(inst, sig)
		}
	case ModeReduced:
		r.pushAllChanges(r.root(), sig)
	case ModeMerged, ModeMergedReduce, ModeNamedOnly:
		r.addChangeMerged(sig)
	}
}

// root returns the root instance index. The engine keeps the root last.
func (r *Recorder) root() int {
	return r.state.InstanceCount() - 1
}

// pushChange emits the current value of (inst, sig, elem). Use WholeSignal
// as elem for the whole value.
func (r *Recorder) pushChange(inst, sig, elem int) {
	s := r.state.Signal(sig)
	var value string
	if elem >= 0 {
		value = s.ElementHexString(elem)
	} else {
		value = s.HexString()
	}
	r.pushValue(inst, sig, elem, value)
}

// pushValue appends (key, value) to the pending buffer unless value is
// already the last recorded value for that key.
func (r *Recorder) pushValue(inst, sig, elem int, value string) {
	r.checkInstance(inst)
	key := r.key(inst, sig, elem)

	lk := valueKey{path: key, elem: elem}
	if last, ok := r.lastValue[lk]; ok && last == value {
		r.stats.Deduplicated++
		return
	}
	r.changes = append(r.changes, Change{Key: key, Value: value})
	r.lastValue[lk] = value
	r.stats.Emitted++
}

// pushAllChanges emits every sub-element of sig, or the whole value for a
// scalar signal.
func (r *Recorder) pushAllChanges(inst, sig int) {
	if n := r.state.Signal(sig).ElementCount(); n > 0 {
		for i := 0; i < n; i++ {
			r.pushChange(inst, sig, i)
		}
		return
	}
	r.pushChange(inst, sig, WholeSignal)
}

// addChangeMerged snapshots the current value of sig, overwriting any
// earlier snapshot of the same instant. Deduplication against history
// happens at flush time.
func (r *Recorder) addChangeMerged(sig int) {
	s := r.state.Signal(sig)
	if n := s.ElementCount(); n > 0 {
		for i := 0; i < n; i++ {
			r.merged[mergeKey{sig: sig, elem: i}] = s.ElementHexString(i)
		}
		return
	}
	r.merged[mergeKey{sig: sig, elem: WholeSignal}] = s.HexString()
}

// key builds "<instance path>/<signal name>" with "[elem]" appended for
// sub-elements.
func (r *Recorder) key(inst, sig, elem int) string {
	var b strings.Builder
	b.WriteString(r.state.Instance(inst).Path())
	b.WriteByte('/')
	b.WriteString(r.state.Signal(sig).Name())
	if elem >= 0 {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(elem))
		b.WriteByte(']')
	}
	return b.String()
}

// sortChanges orders the pending buffer by key. The sort is stable so two
// changes of the same key within one flush keep their arrival order.
func (r *Recorder) sortChanges() {
	sort.SliceStable(r.changes, func(i, j int) bool {
		return r.changes[i].Key < r.changes[j].Key
	})
}

// Flush writes pending changes to the sink.
//
// Full and Reduced flush on every call. The merged modes flush only when
// the engine's time has advanced past the last ingested change, or when
// force is set. An empty block writes nothing. Sink and listener errors
// are returned without retry; the flushed changes are dropped either way.
func (r *Recorder) Flush(force bool) error {
	switch {
	case r.mode == ModeNone:
		return nil
	case r.mode.Merges():
		now := r.state.Time().Ticks()
		if now > r.markerTicks() || force {
			return r.flushMerged()
		}
		r.logger.Debug("merged flush deferred",
			"time", now,
			"marker", r.markerTicks(),
		)
		return nil
	default:
		return r.flushFull()
	}
}

func (r *Recorder) markerTicks() uint64 {
	if r.now == nil {
		return 0
	}
	return r.now.Ticks()
}

func (r *Recorder) flushFull() error {
	if len(r.changes) == 0 {
		return nil
	}
	r.sortChanges()

	ts := r.now.String()
	var b strings.Builder
	for _, c := range r.changes {
		b.WriteString(ts)
		b.WriteString("  ")
		b.WriteString(c.Key)
		b.WriteString("  ")
		b.WriteString(c.Value)
		b.WriteByte('\n')
	}

	block := Block{Time: r.now, Changes: r.changes}
	r.changes = nil
	return r.emit(block, b.String(), len(block.Changes))
}

func (r *Recorder) flushMerged() error {
	// Entries are expanded with the value current at flush time.
	for k := range r.merged {
		if r.mode.allInstances() {
			for _, inst := range r.state.Signal(k.sig).TriggeredInstances() {
				r.pushChange(inst, k.sig, k.elem)
			}
		} else {
			r.pushChange(r.root(), k.sig, k.elem)
		}
	}
	clear(r.merged)

	if len(r.changes) == 0 {
		return nil
	}
	r.sortChanges()

	var b strings.Builder
	b.WriteString(strconv.FormatUint(r.markerTicks(), 10))
	b.WriteString("ps\n")
	for _, c := range r.changes {
		b.WriteString("  ")
		b.WriteString(c.Key)
		b.WriteString("  ")
		b.WriteString(c.Value)
		b.WriteByte('\n')
	}

	block := Block{Time: r.now, Header: true, Changes: r.changes}
	r.changes = nil
	return r.emit(block, b.String(), len(block.Changes)+1)
}

// emit writes a rendered block to the sink and hands it to the listeners.
func (r *Recorder) emit(block Block, text string, lines int) error {
	r.logger.Debug("flushing trace block",
		"mode", r.mode.String(),
		"time", block.Time.String(),
		"changes", len(block.Changes),
	)

	if _, err := io.WriteString(r.out, text); err != nil {
		r.logger.Error("trace sink write failed",
			"error", err,
			"time", block.Time.String(),
			"changes", len(block.Changes),
		)
		return fmt.Errorf("write trace block at %s: %w", block.Time, err)
	}
	r.stats.Flushes++
	r.stats.Lines += lines

	for _, l := range r.listeners {
		if err := l.OnFlush(block); err != nil {
			r.logger.Error("trace listener failed",
				"error", err,
				"time", block.Time.String(),
			)
			return fmt.Errorf("trace listener at %s: %w", block.Time, err)
		}
	}
	return nil
}

func (r *Recorder) checkSignal(sig int) {
	if sig < 0 || sig >= len(r.traced) {
		panic(fmt.Sprintf("trace: signal index %d out of range [0, %d)", sig, len(r.traced)))
	}
}

func (r *Recorder) checkInstance(inst int) {
	if n := r.state.InstanceCount(); inst < 0 || inst >= n {
		panic(fmt.Sprintf("trace: instance index %d out of range [0, %d)", inst, n))
	}
}
