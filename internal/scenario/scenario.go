package scenario

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sigtrace/internal/sim"
	"github.com/roach88/sigtrace/internal/trace"
)

// Scenario describes a design, its stimulus and the expected trace.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// Mode is the trace mode used when the caller does not pick one.
	Mode string `yaml:"mode,omitempty"`

	// Root names the root instance.
	Root string `yaml:"root"`

	Instances []InstanceDecl `yaml:"instances,omitempty"`
	Signals   []SignalDecl   `yaml:"signals"`
	Processes []ProcessDecl  `yaml:"processes,omitempty"`
	Drives    []DriveDecl    `yaml:"drives,omitempty"`
	Clocks    []ClockDecl    `yaml:"clocks,omitempty"`

	// MaxTime stops the run before the first slot later than this many
	// picoseconds. Zero runs until the event queue drains.
	MaxTime int64 `yaml:"max_time,omitempty"`

	// Assertions are checked against the recorded trace by CheckAssertions.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// InstanceDecl declares a child instance.
type InstanceDecl struct {
	Name   string `yaml:"name"`
	Parent string `yaml:"parent"`
}

// SignalDecl declares a signal.
type SignalDecl struct {
	Name     string `yaml:"name"`
	Owner    string `yaml:"owner"`
	Width    int    `yaml:"width"`
	Elements int    `yaml:"elements,omitempty"`
	Named    bool   `yaml:"named,omitempty"`
	Init     int64  `yaml:"init,omitempty"`
}

// ProcessDecl declares a gate. Inputs and Output are signal references,
// "name" or "name[i]".
type ProcessDecl struct {
	Instance string   `yaml:"instance"`
	Kind     string   `yaml:"kind"`
	Inputs   []string `yaml:"inputs"`
	Output   string   `yaml:"output"`
	Delay    TimeDecl `yaml:"delay,omitempty"`
}

// TimeDecl is an absolute time or a delay.
type TimeDecl struct {
	PS    int64 `yaml:"ps,omitempty"`
	Delta int64 `yaml:"delta,omitempty"`
	Eps   int64 `yaml:"eps,omitempty"`
}

// DriveDecl drives a value onto a signal, or one element of it, at a time.
type DriveDecl struct {
	Signal  string   `yaml:"signal"`
	Element *int     `yaml:"element,omitempty"`
	Value   int64    `yaml:"value"`
	At      TimeDecl `yaml:"at"`
}

// ClockDecl toggles a signal: 1 at Start, then every Period/2 until Until.
type ClockDecl struct {
	Signal string `yaml:"signal"`
	Period int64  `yaml:"period"`
	Start  int64  `yaml:"start,omitempty"`
	Until  int64  `yaml:"until"`
}

// Assertion checks the recorded trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Key was recorded, with Value if given
	// - "trace_count": Key was recorded exactly Count times
	// - "trace_order": the first occurrences of Keys appear in order
	Type string `yaml:"type"`

	Key   string   `yaml:"key,omitempty"`
	Value *string  `yaml:"value,omitempty"`
	Count int      `yaml:"count,omitempty"`
	Keys  []string `yaml:"keys,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a scenario document. The document must match the CUE schema,
// must not contain unknown fields, and must pass the semantic checks in
// validateScenario. Names are normalised to NFC.
func Parse(data []byte) (*Scenario, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	// Strict decode catches typos like "signal:" vs "signals:".
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	sc.normalize()
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// DefaultMode returns the scenario's own mode, or fallback when it has none.
func (s *Scenario) DefaultMode(fallback trace.Mode) (trace.Mode, error) {
	if s.Mode == "" {
		return fallback, nil
	}
	return trace.ParseMode(s.Mode)
}

// normalize rewrites every name to NFC.
func (s *Scenario) normalize() {
	nfc := norm.NFC.String
	s.Root = nfc(s.Root)
	for i := range s.Instances {
		s.Instances[i].Name = nfc(s.Instances[i].Name)
		s.Instances[i].Parent = nfc(s.Instances[i].Parent)
	}
	for i := range s.Signals {
		s.Signals[i].Name = nfc(s.Signals[i].Name)
		s.Signals[i].Owner = nfc(s.Signals[i].Owner)
	}
	for i := range s.Processes {
		p := &s.Processes[i]
		p.Instance = nfc(p.Instance)
		p.Output = nfc(p.Output)
		for j := range p.Inputs {
			p.Inputs[j] = nfc(p.Inputs[j])
		}
	}
	for i := range s.Drives {
		s.Drives[i].Signal = nfc(s.Drives[i].Signal)
	}
	for i := range s.Clocks {
		s.Clocks[i].Signal = nfc(s.Clocks[i].Signal)
	}
	for i := range s.Assertions {
		a := &s.Assertions[i]
		a.Key = nfc(a.Key)
		for j := range a.Keys {
			a.Keys[j] = nfc(a.Keys[j])
		}
	}
}

// validateScenario checks what the schema cannot express.
func validateScenario(s *Scenario) error {
	if s.Mode != "" {
		if _, err := trace.ParseMode(s.Mode); err != nil {
			return err
		}
	}

	for i, inst := range s.Instances {
		if strings.Contains(inst.Name, "/") {
			return fmt.Errorf("instances[%d]: name %q must not contain '/'", i, inst.Name)
		}
	}
	if strings.Contains(s.Root, "/") {
		return fmt.Errorf("root: name %q must not contain '/'", s.Root)
	}

	for i, sig := range s.Signals {
		if strings.ContainsAny(sig.Name, "/[]") {
			return fmt.Errorf("signals[%d]: name %q must not contain '/', '[' or ']'", i, sig.Name)
		}
	}

	for i, p := range s.Processes {
		for _, in := range p.Inputs {
			if _, err := ParseRef(in); err != nil {
				return fmt.Errorf("processes[%d]: %w", i, err)
			}
		}
		if _, err := ParseRef(p.Output); err != nil {
			return fmt.Errorf("processes[%d]: %w", i, err)
		}
	}

	for i, c := range s.Clocks {
		if c.Until < c.Start {
			return fmt.Errorf("clocks[%d]: until %d is before start %d", i, c.Until, c.Start)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Keys) == 0 {
			return fmt.Errorf("assertions[%d]: keys list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// ParseRef parses "name" or "name[i]" into a signal reference.
func ParseRef(s string) (sim.Ref, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if s == "" || strings.ContainsRune(s, ']') {
			return sim.Ref{}, fmt.Errorf("invalid signal reference %q", s)
		}
		return sim.Ref{Signal: s, Element: sim.Whole}, nil
	}
	if open == 0 || !strings.HasSuffix(s, "]") {
		return sim.Ref{}, fmt.Errorf("invalid signal reference %q", s)
	}
	elem, err := strconv.Atoi(s[open+1 : len(s)-1])
	if err != nil || elem < 0 {
		return sim.Ref{}, fmt.Errorf("invalid element index in %q", s)
	}
	return sim.Ref{Signal: s[:open], Element: elem}, nil
}
