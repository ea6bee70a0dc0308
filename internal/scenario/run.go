package scenario

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/sigtrace/internal/sim"
	"github.com/roach88/sigtrace/internal/trace"
)

// Result is the outcome of running a scenario.
type Result struct {
	Scenario string
	Mode     trace.Mode

	// Output is the trace text exactly as written to the sink.
	Output string

	// Blocks holds every flushed block in order.
	Blocks []trace.Block

	Stats    trace.Stats
	SimStats sim.RunStats
	EndTime  sim.Time
}

// Lines returns the (key, value) pairs of every flushed block in order.
func (r *Result) Lines() []trace.Change {
	var out []trace.Change
	for _, b := range r.Blocks {
		out = append(out, b.Changes...)
	}
	return out
}

type runConfig struct {
	logger    *slog.Logger
	listeners []trace.Listener
	simOpts   []sim.Option
}

// RunOption configures Run.
type RunOption func(*runConfig)

// WithLogger sets the logger for the simulator and the recorder.
func WithLogger(l *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = l
	}
}

// WithListener registers an extra flush listener, for example a store
// writer.
func WithListener(l trace.Listener) RunOption {
	return func(c *runConfig) {
		c.listeners = append(c.listeners, l)
	}
}

// WithSimOptions passes options through to the simulator.
func WithSimOptions(opts ...sim.Option) RunOption {
	return func(c *runConfig) {
		c.simOpts = append(c.simOpts, opts...)
	}
}

// Run builds the scenario, records it in mode and writes the trace to w.
// A nil w discards the text; it is still available in Result.Output.
func Run(ctx context.Context, sc *Scenario, mode trace.Mode, w io.Writer, opts ...RunOption) (*Result, error) {
	cfg := runConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if w == nil {
		w = io.Discard
	}

	sm, err := sc.Build(append([]sim.Option{sim.WithLogger(cfg.logger)}, cfg.simOpts...)...)
	if err != nil {
		return nil, err
	}

	result := &Result{Scenario: sc.Name, Mode: mode}
	var text bytes.Buffer
	recOpts := []trace.Option{
		trace.WithLogger(cfg.logger),
		trace.WithListener(trace.ListenerFunc(func(b trace.Block) error {
			result.Blocks = append(result.Blocks, b)
			return nil
		})),
	}
	for _, l := range cfg.listeners {
		recOpts = append(recOpts, trace.WithListener(l))
	}
	rec := trace.New(sm.State(), io.MultiWriter(w, &text), mode, recOpts...)
	sm.Attach(rec)

	runErr := sm.Run(ctx)
	result.Output = text.String()
	result.Stats = rec.Stats()
	result.SimStats = sm.Stats()
	result.EndTime = sm.State().Now()
	if runErr != nil {
		return result, fmt.Errorf("run scenario %s: %w", sc.Name, runErr)
	}

	cfg.logger.Info("scenario finished",
		"scenario", sc.Name,
		"mode", mode.String(),
		"end_time", result.EndTime.String(),
		"lines", result.Stats.Lines,
	)
	return result, nil
}
