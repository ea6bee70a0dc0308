package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/sigtrace/internal/scenario"
	"github.com/roach88/sigtrace/internal/sim"
	"github.com/roach88/sigtrace/internal/store"
	"github.com/roach88/sigtrace/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Mode      string
	Out       string
	Database  string
	Check     bool
	MaxTime   uint64
	MaxDeltas uint32
}

// RunSummary is the result of the run command.
type RunSummary struct {
	Scenario    string   `json:"scenario"`
	Mode        string   `json:"mode"`
	RunID       string   `json:"run_id,omitempty"`
	EndTime     string   `json:"end_time"`
	Slots       int      `json:"slots"`
	Changes     int      `json:"changes"`
	Emitted     int      `json:"emitted"`
	Deduped     int      `json:"deduplicated"`
	Blocks      int      `json:"blocks"`
	Lines       int      `json:"lines"`
	Assertions  int      `json:"assertions,omitempty"`
	Failures    []string `json:"failures,omitempty"`
	Output      string   `json:"output,omitempty"`
	OutputPath  string   `json:"output_path,omitempty"`
	Interrupted bool     `json:"interrupted,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Simulate a scenario and record its trace",
		Long: `Simulate a scenario and write its signal-change trace.

The trace mode comes from --mode, then the scenario's own mode, then
[trace].mode in sigtrace.toml. The trace goes to stdout unless --out (or
[trace].output) names a file. With --format json and no output file the
trace text is embedded in the JSON response instead.

Example:
  sigtrace run --mode merged ./inverter.yaml
  sigtrace run --db runs.db --check ./inverter.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", "", "trace mode (none|full|reduced|merged|merged-reduce|named-only)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the trace to this file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "persist the run in this SQLite database")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "evaluate scenario assertions (exit 1 on failure)")
	cmd.Flags().Uint64Var(&opts.MaxTime, "max-time", 0, "stop before the first slot after this many ps (overrides the scenario)")
	cmd.Flags().Uint32Var(&opts.MaxDeltas, "max-deltas", sim.DefaultMaxDeltas, "delta step limit per instant")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.logger

	sc, err := scenario.LoadScenario(path)
	if err != nil {
		exit, code := classifyLoadError(err)
		return formatter.Fail(exit, code, "failed to load scenario", err)
	}
	formatter.VerboseLog("Loaded scenario %s from %s", sc.Name, path)

	mode, err := opts.resolveMode(sc)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeFlag, "invalid trace mode", err)
	}

	// Sink: file, stdout, or (JSON without a file) the response body.
	var sink io.Writer = cmd.OutOrStdout()
	outPath := opts.Out
	if outPath == "" {
		outPath = opts.cfg.Trace.Output
	}
	embed := outPath == "" && opts.Format == "json"
	if embed {
		sink = nil
	}
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to create trace file", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil {
				logger.Error("error closing trace file", "path", outPath, "error", closeErr)
			}
		}()
		sink = f
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	simOpts := []sim.Option{sim.WithMaxDeltas(opts.MaxDeltas)}
	if opts.MaxTime > 0 {
		simOpts = append(simOpts, sim.WithMaxTime(opts.MaxTime))
	}
	runOpts := []scenario.RunOption{
		scenario.WithLogger(logger),
		scenario.WithSimOptions(simOpts...),
	}
	summary := RunSummary{Scenario: sc.Name, Mode: mode.String(), OutputPath: outPath}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.cfg.Store.Path
	}
	if dbPath != "" {
		st, err := store.Open(dbPath, store.WithLogger(logger))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		run, err := st.CreateRun(ctx, store.Run{Scenario: sc.Name, Mode: mode.String()})
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to create run", err)
		}
		bw, err := st.Listener(ctx, run.ID)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to attach run writer", err)
		}
		runOpts = append(runOpts, scenario.WithListener(bw))
		summary.RunID = run.ID
		logger.Info("recording run", "run_id", run.ID, "db", dbPath)
	}

	result, runErr := scenario.Run(ctx, sc, mode, sink, runOpts...)
	if runErr != nil {
		switch {
		case errors.Is(runErr, context.Canceled):
			summary.Interrupted = true
			logger.Info("run interrupted", "scenario", sc.Name)
		case result == nil:
			return formatter.Fail(ExitFailure, ErrCodeDesign, "failed to build design", runErr)
		default:
			return formatter.Fail(ExitFailure, ErrCodeSimulate, "simulation failed", runErr)
		}
	}
	if result != nil {
		summary.fill(result, embed)
	}

	if opts.Check && result != nil {
		summary.Assertions = len(sc.Assertions)
		for _, err := range scenario.CheckAssertions(sc, result) {
			summary.Failures = append(summary.Failures, err.Error())
		}
	}

	if err := reportRun(formatter, summary); err != nil {
		return err
	}
	if summary.Interrupted {
		return WrapExitError(ExitFailure, "run interrupted", runErr)
	}
	if n := len(summary.Failures); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d of %d assertion(s) failed", ErrCodeAssertion, n, summary.Assertions))
	}
	return nil
}

// resolveMode picks the trace mode: flag, then scenario, then config.
func (o *RunOptions) resolveMode(sc *scenario.Scenario) (trace.Mode, error) {
	if o.Mode != "" {
		return trace.ParseMode(o.Mode)
	}
	fallback, err := o.cfg.TraceMode()
	if err != nil {
		return trace.ModeNone, err
	}
	return sc.DefaultMode(fallback)
}

func (s *RunSummary) fill(r *scenario.Result, embed bool) {
	s.EndTime = r.EndTime.String()
	s.Slots = r.SimStats.Slots
	s.Changes = r.SimStats.Changes
	s.Emitted = r.Stats.Emitted
	s.Deduped = r.Stats.Deduplicated
	s.Blocks = r.Stats.Flushes
	s.Lines = r.Stats.Lines
	if embed {
		s.Output = r.Output
	}
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	keyColor  = color.New(color.FgCyan)
)

// reportRun writes the summary: a JSON response on stdout, or a short
// colored report on stderr so the trace on stdout stays clean.
func reportRun(f *OutputFormatter, s RunSummary) error {
	if f.Format == "json" {
		if len(s.Failures) > 0 {
			return f.Error(ErrCodeAssertion, fmt.Sprintf("%d assertion(s) failed", len(s.Failures)), s)
		}
		return f.Success(s)
	}

	w := f.GetErrWriter()
	status := okColor.Sprint("✓")
	if len(s.Failures) > 0 || s.Interrupted {
		status = failColor.Sprint("✗")
	}
	fmt.Fprintf(w, "%s %s (%s) until %s: %d slots, %d changes, %d lines in %d blocks\n",
		status, keyColor.Sprint(s.Scenario), s.Mode, s.EndTime, s.Slots, s.Changes, s.Lines, s.Blocks)
	if s.RunID != "" {
		fmt.Fprintf(w, "  run %s\n", keyColor.Sprint(s.RunID))
	}
	if s.Assertions > 0 {
		fmt.Fprintf(w, "  assertions: %d passed, %d failed\n", s.Assertions-len(s.Failures), len(s.Failures))
	}
	for _, msg := range s.Failures {
		fmt.Fprintln(w, failColor.Sprint(msg))
	}
	return nil
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
