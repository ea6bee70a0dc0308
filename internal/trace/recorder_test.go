package trace_test

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sigtrace/internal/testutil"
	"github.com/roach88/sigtrace/internal/trace"
)

// fixture is a three-instance design: top/alu (0), top/mem (1), top (2, root).
type fixture struct {
	st *testutil.FakeState

	clk, bus, inner, data int

	clkSig   *testutil.FakeSignal
	busSig   *testutil.FakeSignal
	innerSig *testutil.FakeSignal
	dataSig  *testutil.FakeSignal
}

func newFixture() *fixture {
	f := &fixture{st: testutil.NewFakeState("top/alu", "top/mem", "top")}
	root := f.st.Root()

	f.clkSig = &testutil.FakeSignal{NameValue: "clk", Value: "0", Owner: root, Named: true, Triggers: []int{root}}
	f.busSig = &testutil.FakeSignal{NameValue: "bus", Elements: []string{"0", "0"}, Owner: root, Triggers: []int{0, root}}
	f.innerSig = &testutil.FakeSignal{NameValue: "inner", Value: "0", Owner: 0, Named: true, Triggers: []int{0}}
	f.dataSig = &testutil.FakeSignal{NameValue: "data", Value: "00", Owner: root, Named: true, Triggers: []int{1, root}}

	f.clk = f.st.AddSignal(f.clkSig)
	f.bus = f.st.AddSignal(f.busSig)
	f.inner = f.st.AddSignal(f.innerSig)
	f.data = f.st.AddSignal(f.dataSig)
	return f
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *fixture) recorder(mode trace.Mode, out io.Writer, opts ...trace.Option) *trace.Recorder {
	opts = append([]trace.Option{trace.WithLogger(quietLogger())}, opts...)
	return trace.New(f.st, out, mode, opts...)
}

func TestRecorder_Eligibility(t *testing.T) {
	tests := []struct {
		mode                  trace.Mode
		clk, bus, inner, data bool
	}{
		{trace.ModeNone, true, true, false, true},
		{trace.ModeFull, true, true, true, true},
		{trace.ModeReduced, true, true, false, true},
		{trace.ModeMerged, true, true, true, true},
		{trace.ModeMergedReduce, true, true, false, true},
		{trace.ModeNamedOnly, false, true, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			f := newFixture()
			r := f.recorder(tt.mode, io.Discard)
			assert.Equal(t, tt.clk, r.IsTraced(f.clk), "clk")
			assert.Equal(t, tt.bus, r.IsTraced(f.bus), "bus")
			assert.Equal(t, tt.inner, r.IsTraced(f.inner), "inner")
			assert.Equal(t, tt.data, r.IsTraced(f.data), "data")
		})
	}
}

func TestRecorder_NamedOnlyKeepsAnonymousRootSignals(t *testing.T) {
	st := testutil.NewFakeState("top")
	named := st.AddSignal(&testutil.FakeSignal{NameValue: "q", Value: "0", Owner: 0, Named: true})
	anon := st.AddSignal(&testutil.FakeSignal{NameValue: "_t3", Value: "0", Owner: 0, Named: false})

	r := trace.New(st, io.Discard, trace.ModeNamedOnly, trace.WithLogger(quietLogger()))
	assert.False(t, r.IsTraced(named), "root-owned signal with a valid name is not traced")
	assert.True(t, r.IsTraced(anon), "root-owned signal without a valid name is traced")
}

func TestRecorder_EligibilityIsStable(t *testing.T) {
	f := newFixture()
	r := f.recorder(trace.ModeReduced, io.Discard)
	require.True(t, r.IsTraced(f.clk))
	require.False(t, r.IsTraced(f.inner))

	// Ownership moves after construction; the recorder must not notice.
	f.clkSig.Owner = 0
	f.innerSig.Owner = f.st.Root()

	assert.True(t, r.IsTraced(f.clk))
	assert.False(t, r.IsTraced(f.inner))
}

func TestRecorder_ReducedScenario(t *testing.T) {
	f := newFixture()
	var buf bytes.Buffer
	r := f.recorder(trace.ModeReduced, &buf)

	f.st.SetTime(10)
	f.clkSig.Value = "1"
	r.AddChange(f.clk)
	require.NoError(t, r.Flush(true))
	assert.Equal(t, "10ps 0d 0e  top/clk  1\n", buf.String())

	// Same value again: nothing new.
	f.st.SetTime(20)
	r.AddChange(f.clk)
	require.NoError(t, r.Flush(true))
	assert.Equal(t, "10ps 0d 0e  top/clk  1\n", buf.String())

	f.st.SetTime(30)
	f.clkSig.Value = "0"
	r.AddChange(f.clk)
	require.NoError(t, r.Flush(false))
	assert.Equal(t, "10ps 0d 0e  top/clk  1\n30ps 0d 0e  top/clk  0\n", buf.String())
}

func TestRecorder_ReducedIgnoresForeignSignals(t *testing.T) {
	f := newFixture()
	var buf bytes.Buffer
	r := f.recorder(trace.ModeReduced, &buf)

	f.st.SetTime(5)
	f.innerSig.Value = "1"
	r.AddChange(f.inner)
	require.NoError(t, r.Flush(true))

	assert.Empty(t, buf.String())
	assert.Equal(t, 1, r.Stats().Ignored)
}

func TestRecorder_FullExpandsTriggeredInstancesAndElements(t *testing.T) {
	f := newFixture()
	var buf bytes.Buffer
	r := f.recorder(trace.ModeFull, &buf)

	f.st.SetTime(10)
	f.clkSig.Value = "1"
	f.busSig.Elements = []string{"1", "0"}
	r.AddChange(f.clk)
	r.AddChange(f.bus)
	require.NoError(t, r.Flush(false))

	want := "" +
		"10ps 0d 0e  top/alu/bus[0]  1\n" +
		"10ps 0d 0e  top/alu/bus[1]  0\n" +
		"10ps 0d 0e  top/bus[0]  1\n" +
		"10ps 0d 0e  top/bus[1]  0\n" +
		"10ps 0d 0e  top/clk  1\n"
	assert.Equal(t, want, buf.String())
}

func TestRecorder_FullDoesNotGateOnTime(t *testing.T) {
	f := newFixture()
	var buf bytes.Buffer
	r := f.recorder(trace.ModeFull, &buf)

	f.st.SetTime(10)
	f.clkSig.Value = "1"
	r.AddChange(f.clk)
	require.NoError(t, r.Flush(false))
	assert.Equal(t, "10ps 0d 0e  top/clk  1\n", buf.String())

	// Second change in the same instant flushes eagerly as well.
	f.clkSig.Value = "0"
	r.AddChange(f.clk)
	require.NoError(t, r.Flush(false))
	assert.Equal(t, "10ps 0d 0e  top/clk  1\n10ps 0d 0e  top/clk  0\n", buf.String())
}

func TestRecorder_SameKeyKeepsArrivalOrder(t *testing.T) {
	f := newFixture()
	var buf bytes.Buffer
	r := f.recorder(trace.ModeReduced, &buf)

	f.st.SetTime(10)
	f.dataSig.Value = "0f"
	r.AddChange(f.data)
	f.clkSig.Value = "1"
	r.AddChange(f.clk)
	f.dataSig.Value = "1f"
	r.AddChange(f.data)
	require.Equal(t, 3, r.Pending())
	require.NoError(t, r.Flush(false))

	want := "" +
		"10ps 0d 0e  top/clk  1\n" +
		"10ps 0d 0e  top/data  0f\n" +
		"10ps 0d 0e  top/data  1f\n"
	assert.Equal(t, want, buf.String())
}

func TestRecorder_PushChangeDeduplicates(t *testing.T) {
	f := newFixture()
	r := f.recorder(trace.ModeFull, io.Discard)
	root := f.st.Root()

	r.PushChange(root, f.clk, trace.WholeSignal)
	r.PushChange(root, f.clk, trace.WholeSignal)
	assert.Equal(t, 1, r.Pending())

	f.clkSig.Value = "1"
	r.PushChange(root, f.clk, trace.WholeSignal)
	r.PushChange(root, f.clk, trace.WholeSignal)
	assert.Equal(t, 2, r.Pending())

	// Element keys and the whole-signal key are distinct cache entries.
	r.PushChange(root, f.bus, 0)
	r.PushChange(root, f.bus, 0)
	assert.Equal(t, 3, r.Pending())

	stats := r.Stats()
	assert.Equal(t, 3, stats.Emitted)
	assert.Equal(t, 3, stats.Deduplicated)
}

func TestRecorder_DeduplicationSurvivesFlush(t *testing.T) {
	f := newFixture()
	var buf bytes.Buffer
	r := f.recorder(trace.ModeFull, &buf)

	f.st.SetTime(10)
	f.clkSig.Value = "1"
	r.AddChange(f.clk)
	require.NoError(t, r.Flush(false))

	f.st.SetTime(20)
	r.AddChange(f.clk)
	assert.Equal(t, 0, r.Pending())
	require.NoError(t, r.Flush(false))
	assert.Equal(t, "10ps 0d 0e  top/clk  1\n", buf.String())
}

func TestRecorder_OrderingIsDeterministic(t *testing.T) {
	orders := [][]string{
		{"clk", "bus", "data"},
		{"data", "clk", "bus"},
		{"bus", "data", "clk"},
	}
	for _, mode := range []trace.Mode{trace.ModeFull, trace.ModeReduced, trace.ModeMerged, trace.ModeMergedReduce, trace.ModeNamedOnly} {
		t.Run(mode.String(), func(t *testing.T) {
			var outputs []string
			for _, order := range orders {
				f := newFixture()
				var buf bytes.Buffer
				r := f.recorder(mode, &buf)

				f.st.SetTime(7)
				f.clkSig.Value = "1"
				f.busSig.Elements = []string{"1", "1"}
				f.dataSig.Value = "a5"
				idx := map[string]int{"clk": f.clk, "bus": f.bus, "data": f.data}
				for _, name := range order {
					r.AddChange(idx[name])
				}
				require.NoError(t, r.Flush(true))
				require.NotEmpty(t, buf.String())
				outputs = append(outputs, buf.String())
			}
			for _, out := range outputs[1:] {
				assert.Equal(t, outputs[0], out)
			}
		})
	}
}

func TestRecorder_MergedCoalescesWithinInstant(t *testing.T) {
	tests := []struct {
		mode trace.Mode
		want string
	}{
		{trace.ModeMerged, "10ps\n  top/data  1f\n  top/mem/data  1f\n"},
		{trace.ModeMergedReduce, "10ps\n  top/data  1f\n"},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			f := newFixture()
			var buf bytes.Buffer
			r := f.recorder(tt.mode, &buf)

			f.st.SetTime(10)
			f.dataSig.Value = "0f"
			r.AddChange(f.data)
			f.dataSig.Value = "1f"
			r.AddChange(f.data)

			// Time has not advanced: nothing is written yet.
			require.NoError(t, r.Flush(false))
			assert.Empty(t, buf.String())

			f.st.SetTime(20)
			require.NoError(t, r.Flush(false))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestRecorder_NamedOnlyOutput(t *testing.T) {
	f := newFixture()
	var buf bytes.Buffer
	r := f.recorder(trace.ModeNamedOnly, &buf)

	f.st.SetTime(5)
	f.busSig.Elements = []string{"1", "0"}
	f.clkSig.Value = "1"
	r.AddChange(f.bus)
	r.AddChange(f.clk)
	require.NoError(t, r.Flush(true))

	assert.Equal(t, "5ps\n  top/bus[0]  1\n  top/bus[1]  0\n", buf.String())
}

func TestRecorder_MergedExpandsCurrentValue(t *testing.T) {
	f := newFixture()
	var buf bytes.Buffer
	r := f.recorder(trace.ModeMergedReduce, &buf)

	f.st.SetTime(10)
	f.dataSig.Value = "01"
	r.AddChange(f.data)

	// The block is expanded from the signal as it reads at flush time.
	f.st.SetTime(20)
	f.dataSig.Value = "02"
	require.NoError(t, r.Flush(false))
	assert.Equal(t, "10ps\n  top/data  02\n", buf.String())

	// The flushed value is the dedup baseline for the next instant.
	r.AddChange(f.data)
	f.st.SetTime(30)
	require.NoError(t, r.Flush(false))
	assert.Equal(t, "10ps\n  top/data  02\n", buf.String())
	assert.Equal(t, 1, r.Stats().Deduplicated)
}

func TestRecorder_MergedNoEmptyHeader(t *testing.T) {
	f := newFixture()
	var buf bytes.Buffer
	r := f.recorder(trace.ModeMergedReduce, &buf)

	f.st.SetTime(10)
	f.dataSig.Value = "1f"
	r.AddChange(f.data)
	require.NoError(t, r.Flush(true))
	require.Equal(t, "10ps\n  top/data  1f\n", buf.String())

	// Changes away and back within one instant coalesce to the recorded value.
	f.st.SetTime(20)
	f.dataSig.Value = "2f"
	r.AddChange(f.data)
	f.dataSig.Value = "1f"
	r.AddChange(f.data)
	require.NoError(t, r.Flush(true))

	assert.Equal(t, "10ps\n  top/data  1f\n", buf.String())
	assert.Equal(t, 1, r.Stats().Flushes)
}

func TestRecorder_FlushBeforeAnyChange(t *testing.T) {
	for _, mode := range trace.Modes() {
		t.Run(mode.String(), func(t *testing.T) {
			f := newFixture()
			var buf bytes.Buffer
			r := f.recorder(mode, &buf)

			require.NoError(t, r.Flush(false))
			f.st.SetTime(100)
			require.NoError(t, r.Flush(false))
			require.NoError(t, r.Flush(true))
			assert.Empty(t, buf.String())
		})
	}
}

func TestRecorder_NoneIsSilent(t *testing.T) {
	f := newFixture()
	var buf bytes.Buffer
	r := f.recorder(trace.ModeNone, &buf)

	for i := 0; i < 100; i++ {
		f.st.SetTime(uint64(i))
		f.clkSig.Value = []string{"0", "1"}[i%2]
		r.AddChange(f.clk)
		r.AddChange(f.bus)
		require.NoError(t, r.Flush(i%3 == 0))
	}

	assert.Zero(t, buf.Len())
	assert.Equal(t, trace.Stats{}, r.Stats())
}

func TestRecorder_NoneIgnoresBadIndex(t *testing.T) {
	f := newFixture()
	r := f.recorder(trace.ModeNone, io.Discard)
	assert.NotPanics(t, func() { r.AddChange(99) })
}

func TestRecorder_PanicsOnBadIndex(t *testing.T) {
	f := newFixture()
	r := f.recorder(trace.ModeFull, io.Discard)

	assert.PanicsWithValue(t, "trace: signal index 99 out of range [0, 4)", func() { r.AddChange(99) })
	assert.Panics(t, func() { r.IsTraced(-1) })
	assert.PanicsWithValue(t, "trace: instance index 7 out of range [0, 3)", func() {
		r.PushChange(7, f.clk, trace.WholeSignal)
	})
}

func TestRecorder_SinkErrorPropagates(t *testing.T) {
	f := newFixture()
	sinkErr := errors.New("disk full")
	r := f.recorder(trace.ModeReduced, testutil.FailingWriter{Err: sinkErr})

	f.st.SetTime(10)
	f.clkSig.Value = "1"
	r.AddChange(f.clk)

	err := r.Flush(true)
	require.Error(t, err)
	assert.ErrorIs(t, err, sinkErr)
	assert.Contains(t, err.Error(), "10ps 0d 0e")
	assert.Equal(t, 0, r.Pending())
	assert.Equal(t, 0, r.Stats().Flushes)
}

func TestRecorder_Listeners(t *testing.T) {
	f := newFixture()
	var blocks []trace.Block
	listener := trace.ListenerFunc(func(b trace.Block) error {
		blocks = append(blocks, b)
		return nil
	})
	var buf bytes.Buffer
	r := f.recorder(trace.ModeMergedReduce, &buf, trace.WithListener(listener))

	f.st.SetTime(10)
	f.clkSig.Value = "1"
	r.AddChange(f.clk)
	require.NoError(t, r.Flush(true))

	f.st.SetTime(20)
	require.NoError(t, r.Flush(true))

	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].Header)
	assert.Equal(t, uint64(10), blocks[0].Time.Ticks())
	assert.Equal(t, []trace.Change{{Key: "top/clk", Value: "1"}}, blocks[0].Changes)

	stats := r.Stats()
	assert.Equal(t, 1, stats.Flushes)
	assert.Equal(t, 2, stats.Lines)
}

func TestRecorder_ListenerErrorPropagates(t *testing.T) {
	f := newFixture()
	listenerErr := errors.New("store closed")
	r := f.recorder(trace.ModeFull, io.Discard, trace.WithListener(trace.ListenerFunc(func(trace.Block) error {
		return listenerErr
	})))

	f.st.SetTime(3)
	f.clkSig.Value = "1"
	r.AddChange(f.clk)
	err := r.Flush(false)
	assert.ErrorIs(t, err, listenerErr)
}
