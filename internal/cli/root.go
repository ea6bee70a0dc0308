package cli

import (
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/sigtrace/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // explicit sigtrace.toml; empty searches upwards from the working directory
	Color   string // "auto" | "on" | "off"

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sigtrace CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sigtrace",
		Short: "sigtrace - signal change tracing for event-driven simulation",
		Long: `Run small gate-level designs described in YAML and record their signal
changes in one of several trace modes.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			switch opts.Color {
			case "auto":
			case "on":
				color.NoColor = false
			case "off":
				color.NoColor = true
			default:
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid color %q: must be one of auto, on, off", opts.Color))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to "+config.FileName)
	cmd.PersistentFlags().StringVar(&opts.Color, "color", "auto", "colorize text output (auto|on|off)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewModesCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))

	return cmd
}

// setup loads the configuration and builds the logger on first use.
// Commands call it themselves so they also work when executed without the
// root command, as tests do.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if o.cfg != nil {
		return nil
	}
	cfg, err := config.Resolve(o.Config, ".")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log level", err)
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.cfg = &cfg
	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	if cfg.Path != "" {
		o.logger.Debug("configuration loaded", "path", cfg.Path)
	}
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
