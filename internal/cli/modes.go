package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sigtrace/internal/trace"
)

// ModeInfo describes one trace mode.
type ModeInfo struct {
	Name   string `json:"name"`
	Scope  string `json:"scope"`
	Flush  string `json:"flush"`
	Merged bool   `json:"merged"`
}

// ModeList is the result of the modes command.
type ModeList []ModeInfo

func (l ModeList) String() string {
	var b strings.Builder
	for i, m := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s\n%-14s flush %s", keyColor.Sprintf("%-14s", m.Name), m.Scope, "", m.Flush)
	}
	return b.String()
}

// NewModesCommand creates the modes command.
func NewModesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "modes",
		Short:         "List trace modes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newFormatter(rootOpts, cmd).Success(listModes())
		},
	}
}

func listModes() ModeList {
	var out ModeList
	for _, m := range trace.Modes() {
		info := ModeInfo{Name: m.String(), Scope: m.Scope(), Merged: m.Merges()}
		switch {
		case m == trace.ModeNone:
			info.Flush = "never"
		case m.Merges():
			info.Flush = "once per simulated instant, one header per block"
		default:
			info.Flush = "every time slot, one line per change"
		}
		out = append(out, info)
	}
	return out
}
