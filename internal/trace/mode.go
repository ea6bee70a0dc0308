package trace

import (
	"fmt"
	"strings"
)

// Mode selects which signals are traced and how changes are flushed.
// A recorder's mode is fixed for its lifetime.
type Mode uint8

const (
	// ModeNone disables tracing. No output is ever produced.
	ModeNone Mode = iota
	// ModeFull traces every signal under every instance it triggers.
	ModeFull
	// ModeReduced traces root-owned signals under the root instance only.
	ModeReduced
	// ModeMerged is ModeFull with changes coalesced per simulated instant.
	ModeMerged
	// ModeMergedReduce is ModeReduced with changes coalesced per simulated instant.
	ModeMergedReduce
	// ModeNamedOnly traces root-owned signals that have no valid assigned
	// name, coalesced per simulated instant.
	ModeNamedOnly
)

var modeNames = [...]string{
	ModeNone:         "none",
	ModeFull:         "full",
	ModeReduced:      "reduced",
	ModeMerged:       "merged",
	ModeMergedReduce: "merged-reduce",
	ModeNamedOnly:    "named-only",
}

// String returns the string representation of Mode.
func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// ParseMode converts a string to a Mode.
// Matching is case-insensitive and accepts '_' in place of '-'.
func ParseMode(s string) (Mode, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for m, n := range modeNames {
		if n == name {
			return Mode(m), nil
		}
	}
	return ModeNone, fmt.Errorf("invalid trace mode: %q (expected: %s)", s, strings.Join(modeNames[:], "|"))
}

// Modes returns every mode in declaration order.
func Modes() []Mode {
	out := make([]Mode, len(modeNames))
	for i := range modeNames {
		out[i] = Mode(i)
	}
	return out
}

// Merges reports whether m coalesces changes per simulated instant.
func (m Mode) Merges() bool {
	return m == ModeMerged || m == ModeMergedReduce || m == ModeNamedOnly
}

// Scope describes which signals m records and under which instances.
func (m Mode) Scope() string {
	switch m {
	case ModeNone:
		return "nothing"
	case ModeFull, ModeMerged:
		return "every signal, under every instance it triggers"
	case ModeNamedOnly:
		return "root-owned signals without a valid name, under the root"
	default:
		return "root-owned signals, under the root"
	}
}

// allInstances reports whether m expands a change to every triggered
// instance rather than to the root only.
func (m Mode) allInstances() bool {
	return m == ModeFull || m == ModeMerged
}

// eligible decides whether a signal is ever worth recording in mode m.
//
// Full and Merged trace everything. The other modes require root ownership,
// and NamedOnly additionally keeps only signals WITHOUT a valid name: it
// captures the anonymous signals reachable from the root.
func (m Mode) eligible(ownedByRoot, validName bool) bool {
	switch m {
	case ModeFull, ModeMerged:
		return true
	case ModeNamedOnly:
		return ownedByRoot && !validName
	default:
		return ownedByRoot
	}
}
