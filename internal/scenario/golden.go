package scenario

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// AssertGolden compares trace output against testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/scenario -update
func AssertGolden(t *testing.T, name string, output []byte) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, output)
}
