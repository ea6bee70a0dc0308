package scenario

import (
	"fmt"
	"strings"

	"github.com/roach88/sigtrace/internal/trace"
)

// AssertionError is returned when an assertion fails.
// It includes the recorded lines to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Trace    []trace.Change // Every recorded line
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, c := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s = %s\n", i+1, c.Key, c.Value)
	}
	return buf.String()
}

// CheckAssertions evaluates every assertion of the scenario against the
// result and returns the failures in declaration order.
func CheckAssertions(sc *Scenario, result *Result) []error {
	lines := result.Lines()
	var errs []error
	for _, a := range sc.Assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(lines, a)
		case AssertTraceOrder:
			err = assertTraceOrder(lines, a)
		case AssertTraceCount:
			err = assertTraceCount(lines, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// assertTraceContains checks that the key was recorded, with the given value
// if one is set.
func assertTraceContains(lines []trace.Change, a Assertion) error {
	for _, c := range lines {
		if c.Key == a.Key && (a.Value == nil || c.Value == *a.Value) {
			return nil
		}
	}

	expected := "key " + a.Key
	if a.Value != nil {
		expected += " with value " + *a.Value
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    lines,
	}
}

// assertTraceOrder checks that the first occurrences of the keys appear in
// the given order. Other lines may come in between.
func assertTraceOrder(lines []trace.Change, a Assertion) error {
	positions := make(map[string]int)
	for i, c := range lines {
		if _, seen := positions[c.Key]; !seen {
			positions[c.Key] = i + 1 // 1-indexed for readability
		}
	}

	for _, key := range a.Keys {
		if positions[key] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all keys present: %v", a.Keys),
				Actual:   fmt.Sprintf("missing key: %s", key),
				Trace:    lines,
			}
		}
	}

	for i := 1; i < len(a.Keys); i++ {
		prev, curr := a.Keys[i-1], a.Keys[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("keys in order: %v", a.Keys),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: lines,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the key was recorded exactly Count times.
func assertTraceCount(lines []trace.Change, a Assertion) error {
	count := 0
	for _, c := range lines {
		if c.Key == a.Key {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Key),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    lines,
		}
	}
	return nil
}
