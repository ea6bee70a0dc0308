package cli

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/sigtrace/internal/scenario"
)

// ValidationResult holds the validation result of one scenario file.
type ValidationResult struct {
	Path      string `json:"path"`
	Valid     bool   `json:"valid"`
	Scenario  string `json:"scenario,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Instances int    `json:"instances,omitempty"`
	Signals   int    `json:"signals,omitempty"`
	Processes int    `json:"processes,omitempty"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`

	exit int
}

func (r ValidationResult) String() string {
	if !r.Valid {
		return fmt.Sprintf("✗ %s: [%s] %s", r.Path, r.Code, r.Error)
	}
	return fmt.Sprintf("✓ Scenario %s valid (%d instances, %d signals, %d processes)",
		r.Scenario, r.Instances, r.Signals, r.Processes)
}

// ValidationResults is the result of the validate command, in argument order.
type ValidationResults []ValidationResult

func (rs ValidationResults) String() string {
	lines := make([]string, len(rs))
	for i, r := range rs {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n")
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml>...",
		Short: "Validate scenarios without simulating them",
		Long: `Validate scenario files without running them.

Checks the YAML against the CUE schema, rejects unknown fields, runs the
semantic checks and builds the design so bad references, duplicate names
and widths are reported before a run. Files are validated in parallel.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}
	formatter := newFormatter(opts, cmd)

	// Each goroutine writes only its own index.
	results := make(ValidationResults, len(paths))
	var g errgroup.Group
	g.SetLimit(min(runtime.GOMAXPROCS(0), len(paths)))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results[i] = validateFile(path)
			return nil
		})
	}
	_ = g.Wait()

	exit := ExitSuccess
	failed := 0
	for _, r := range results {
		if r.Valid {
			formatter.VerboseLog("%s: %d signals, %d processes", r.Path, r.Signals, r.Processes)
			continue
		}
		failed++
		exit = max(exit, r.exit)
	}
	if failed == 0 {
		if len(results) == 1 {
			return formatter.Success(results[0])
		}
		return formatter.Success(results)
	}

	first := firstInvalid(results)
	if formatter.Format == "json" {
		_ = formatter.Error(first.Code, first.Error, results)
	} else {
		fmt.Fprintln(formatter.GetErrWriter(), results)
	}
	if failed == 1 {
		return NewExitError(exit, fmt.Sprintf("%s: %s", first.Code, first.Error))
	}
	return NewExitError(exit, fmt.Sprintf("%d of %d scenarios invalid", failed, len(results)))
}

// validateFile loads path and builds its design.
func validateFile(path string) ValidationResult {
	r := ValidationResult{Path: path}
	sc, err := scenario.LoadScenario(path)
	if err == nil {
		// Building resolves every reference and schedules the stimulus.
		_, err = sc.Build()
	}
	if err != nil {
		r.exit, r.Code = classifyLoadError(err)
		r.Error = err.Error()
		return r
	}
	r.Valid = true
	r.Scenario = sc.Name
	r.Mode = sc.Mode
	r.Instances = len(sc.Instances) + 1
	r.Signals = len(sc.Signals)
	r.Processes = len(sc.Processes)
	return r
}

func firstInvalid(rs ValidationResults) ValidationResult {
	for _, r := range rs {
		if !r.Valid {
			return r
		}
	}
	return ValidationResult{}
}
