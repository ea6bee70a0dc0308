package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sigtrace/internal/config"
	"github.com/roach88/sigtrace/internal/store"
)

// StoreOptions holds flags shared by the commands reading the run database.
type StoreOptions struct {
	*RootOptions
	Database string
}

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	StoreOptions
	RunID  string
	Prefix string
}

// RunList is the result of the runs command.
type RunList []store.Run

func (l RunList) String() string {
	if len(l) == 0 {
		return "No runs recorded"
	}
	var b strings.Builder
	for i, r := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%4d  %s  %-14s %s (%d changes)", r.Seq, keyColor.Sprint(r.ID), r.Mode, r.Scenario, r.Changes)
	}
	return b.String()
}

// ShowResult is the result of the show command.
type ShowResult struct {
	Run     store.Run      `json:"run"`
	Prefix  string         `json:"prefix,omitempty"`
	Changes []store.Change `json:"changes"`
}

// String renders the stored changes in the trace format they were recorded
// with. Without a prefix the output matches the trace as it was written.
func (r ShowResult) String() string {
	var b strings.Builder
	block := int64(-1)
	for _, c := range r.Changes {
		if !c.Header {
			fmt.Fprintf(&b, "%s  %s  %s\n", c.Time, c.Key, c.Value)
			continue
		}
		if c.Block != block {
			fmt.Fprintf(&b, "%dps\n", c.TimePS)
			block = c.Block
		}
		fmt.Fprintf(&b, "  %s  %s\n", c.Key, c.Value)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Long: `List the runs recorded in a run database, oldest first.

Example:
  sigtrace runs --db runs.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default [store].path)")

	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the trace of a recorded run",
		Long: `Print the changes of a recorded run, optionally only keys starting
with a prefix.

Example:
  sigtrace show --db runs.db --run 0190a5c8-...
  sigtrace show --db runs.db --run 0190a5c8-... --prefix top/inv/`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default [store].path)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID (required)")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "only show keys starting with this prefix")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}

func runRuns(opts *StoreOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	st, err := opts.open(cmd, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(commandContext(cmd))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list runs", err)
	}
	return formatter.Success(RunList(runs))
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	st, err := opts.open(cmd, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)
	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "run not found", err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read run", err)
	}

	changes, err := st.ReadChanges(ctx, run.ID, opts.Prefix)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read changes", err)
	}
	formatter.VerboseLog("Run %s: %d of %d changes match %q", run.ID, len(changes), run.Changes, opts.Prefix)

	return formatter.Success(ShowResult{Run: run, Prefix: opts.Prefix, Changes: changes})
}

// open resolves the database path from --db or the configuration and opens
// the store.
func (o *StoreOptions) open(cmd *cobra.Command, formatter *OutputFormatter) (*store.Store, error) {
	if err := o.setup(cmd); err != nil {
		return nil, err
	}
	path := o.Database
	if path == "" {
		path = o.cfg.Store.Path
	}
	if path == "" {
		return nil, formatter.Fail(ExitCommandError, ErrCodeFlag, "no run database",
			errors.New("pass --db or set [store].path in "+config.FileName))
	}
	st, err := store.Open(path, store.WithLogger(o.logger))
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	return st, nil
}
