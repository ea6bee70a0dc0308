// Package scenario loads YAML scenario files, builds a simulated design from
// them and runs it against a trace recorder.
//
// A scenario declares a design (root instance, child instances, signals and
// gate processes), the stimulus (one-shot drives and clocks) and optional
// assertions over the recorded trace. Loading is strict: unknown YAML fields
// are rejected, the document is checked against an embedded CUE schema, and
// every name is normalised to Unicode NFC so keys sort the same way no matter
// how the file was written.
//
// Golden files live in testdata/golden. Regenerate them with:
//
//	go test ./internal/scenario -update
package scenario
