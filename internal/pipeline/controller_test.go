package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcscan-data/arcscan/internal/session"
	"github.com/arcscan-data/arcscan/internal/sweep"
	"github.com/arcscan-data/arcscan/internal/testutil"
	"github.com/arcscan-data/arcscan/internal/timeutil"
)

// fakeSource replays a scripted list of wire lines, one per tick. Only
// ever touched from Tick, which holds the controller lock.
type fakeSource struct {
	lines []string
}

func (f *fakeSource) NextLine() (string, bool) {
	if len(f.lines) == 0 {
		return "", false
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, true
}

func (f *fakeSource) push(lines ...string) {
	f.lines = append(f.lines, lines...)
}

func newTestController(t *testing.T, opts Options) *Controller {
	t.Helper()
	if opts.SessionsDir == "" {
		opts.SessionsDir = t.TempDir()
	}
	return NewController(opts)
}

func TestTickProcessesOneLiveLine(t *testing.T) {
	src := &fakeSource{}
	src.push("45,123.5,1000", "46,124.0,1030")
	c := newTestController(t, Options{Source: src})

	c.Tick(1000)
	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 45, snap[0].Angle)
	assert.Equal(t, 123.5, snap[0].RawDistance)
	assert.Equal(t, 123.5, snap[0].FilteredDistance, "first observation seeds the filter")

	c.Tick(1033)
	assert.Equal(t, 2, c.Status().SampleCount)
}

func TestTickIdleWhenNoLinePending(t *testing.T) {
	c := newTestController(t, Options{Source: &fakeSource{}})
	c.Tick(1000)
	c.Tick(1033)
	assert.Equal(t, 0, c.Status().SampleCount)
}

func TestTickSurvivesBadInput(t *testing.T) {
	src := &fakeSource{}
	src.push("garbage line", "45,nan,1000", "45,0,1000", "45,2000,1000", "90,150.0,1060")
	c := newTestController(t, Options{Source: src})

	for i := 0; i < 5; i++ {
		c.Tick(int64(1000 + i*33))
	}

	// Only the final well-formed, in-range line survives.
	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 90, snap[0].Angle)
}

func TestTickClampsAngle(t *testing.T) {
	src := &fakeSource{}
	src.push("400,150.0,1000")
	c := newTestController(t, Options{Source: src})

	c.Tick(1000)
	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, sweep.MaxAngle, snap[0].Angle)
}

func TestCommandsApplyAtTickStart(t *testing.T) {
	c := newTestController(t, Options{Source: &fakeSource{}})

	c.SetAlpha(0.5)
	c.SetMedianWindow(9)
	c.SetOutlierThreshold(3.0)

	// Nothing applies until the next tick.
	assert.Equal(t, sweep.DefaultFilterParams().Alpha, c.FilterParams().Alpha)

	c.Tick(1000)
	p := c.FilterParams()
	assert.Equal(t, 0.5, p.Alpha)
	assert.Equal(t, 9, p.MedianWindow)
	assert.Equal(t, 3.0, p.OutlierK)
}

func TestSettersClampThroughQueue(t *testing.T) {
	c := newTestController(t, Options{Source: &fakeSource{}})

	c.SetAlpha(99)
	c.SetMedianWindow(0)
	c.SetOutlierThreshold(-1)
	c.SetReplaySpeed(1000)
	c.Tick(1000)

	p := c.FilterParams()
	assert.Equal(t, sweep.MaxAlpha, p.Alpha)
	assert.Equal(t, sweep.MinMedianWindow, p.MedianWindow)
	assert.Equal(t, sweep.MinOutlierK, p.OutlierK)
	assert.Equal(t, 10.0, c.Status().ReplaySpeed)
}

func TestClearHistory(t *testing.T) {
	src := &fakeSource{}
	src.push("45,100.0,1000")
	c := newTestController(t, Options{Source: src})
	c.Tick(1000)
	require.Equal(t, 1, c.Status().SampleCount)

	c.ClearHistory()
	c.Tick(1033)
	assert.Equal(t, 0, c.Status().SampleCount)

	// The filter was reset too: a fresh reading seeds its bucket again.
	src.push("45,200.0,1100")
	c.Tick(1100)
	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 200.0, snap[0].FilteredDistance)
}

func TestRecordingLifecycle(t *testing.T) {
	dir := t.TempDir()
	catalog, err := session.OpenCatalog(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	defer catalog.Close()

	src := &fakeSource{}
	c := newTestController(t, Options{Source: src, SessionsDir: dir, Catalog: catalog})

	id := c.StartRecording()
	require.NotEmpty(t, id)

	src.push("45,100.0,1000", "46,0,1030", "47,102.0,1060")
	c.Tick(1000) // applies start, records first sample
	c.Tick(1033) // invalid distance, dropped from the recording
	c.Tick(1066)

	c.StopRecording()
	c.Tick(1100)

	path := filepath.Join(dir, id+session.FileExtension)
	loaded, err := session.Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, 45, loaded[0].Angle)
	assert.Equal(t, 47, loaded[1].Angle)

	rec, err := catalog.Get(id)
	require.NoError(t, err)
	assert.Equal(t, path, rec.Path)
	assert.Equal(t, 2, rec.SampleCount)
	assert.Equal(t, 1, rec.DroppedCount)
	assert.Equal(t, int64(1000), rec.StartedMs)
	assert.Equal(t, int64(1100), rec.EndedMs)
}

func TestStopRecordingIdempotent(t *testing.T) {
	c := newTestController(t, Options{Source: &fakeSource{}})
	c.StopRecording()
	c.Tick(1000)
	c.StopRecording()
	c.Tick(1033)
	assert.False(t, c.Status().Recording)
}

func TestStartRecordingWhileRecordingIsNoOp(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{}
	c := newTestController(t, Options{Source: src, SessionsDir: dir})

	first := c.StartRecording()
	c.Tick(1000)
	second := c.StartRecording()
	c.Tick(1033)

	src.push("45,100.0,1060")
	c.Tick(1066)
	c.StopRecording()
	c.Tick(1100)

	// The sample lands under the first session; the second never started.
	_, err := os.Stat(filepath.Join(dir, first+session.FileExtension))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, second+session.FileExtension))
	assert.True(t, os.IsNotExist(err))
}

func writeSessionFile(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replay"+session.FileExtension)
	_, err := session.Save(path, testutil.MakeSamples(n, 0, 30))
	require.NoError(t, err)
	return path
}

func TestReplayLifecycle(t *testing.T) {
	src := &fakeSource{}
	src.push("45,100.0,0")
	c := newTestController(t, Options{Source: src})

	require.NoError(t, c.LoadReplay(writeSessionFile(t, 5)))

	// First tick applies the start command and delivers sample 0.
	c.Tick(0)
	st := c.Status()
	assert.True(t, st.Replaying)
	assert.Equal(t, "replay", st.Mode)
	assert.Equal(t, 1, st.SampleCount)

	// While replaying, the live source is not consumed.
	assert.Len(t, src.lines, 1)

	for now := int64(30); now <= 150; now += 30 {
		c.Tick(now)
	}

	// All five samples went through the pipeline, playback reached the
	// end, and the controller fell back to live ingestion on its own.
	st = c.Status()
	assert.Equal(t, 5, st.SampleCount)
	assert.False(t, st.Replaying)
	assert.Equal(t, "live", st.Mode)

	c.Tick(200)
	assert.Equal(t, 6, c.Status().SampleCount, "live line consumed after replay ends")
}

func TestReplaySamplesAreFiltered(t *testing.T) {
	c := newTestController(t, Options{})
	require.NoError(t, c.LoadReplay(writeSessionFile(t, 1)))

	c.Tick(0)
	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, snap[0].RawDistance, snap[0].FilteredDistance, "replayed samples pass through the filter")
}

func TestLoadReplayMissingFile(t *testing.T) {
	c := newTestController(t, Options{Source: &fakeSource{}})
	err := c.LoadReplay(filepath.Join(t.TempDir(), "missing.sweep"))
	require.ErrorIs(t, err, os.ErrNotExist)

	c.Tick(0)
	assert.False(t, c.Status().Replaying, "a failed load never reaches the pipeline")
}

func TestStopReplayResumesLive(t *testing.T) {
	c := newTestController(t, Options{Source: &fakeSource{}})
	require.NoError(t, c.LoadReplay(writeSessionFile(t, 10)))
	c.Tick(0)
	require.True(t, c.Status().Replaying)

	c.StopReplay()
	c.Tick(30)
	st := c.Status()
	assert.False(t, st.Replaying)
	assert.Equal(t, "live", st.Mode)
}

func TestSeekReplay(t *testing.T) {
	c := newTestController(t, Options{Source: &fakeSource{}})
	require.NoError(t, c.LoadReplay(writeSessionFile(t, 10)))
	c.Tick(0)

	c.SeekReplay(0.5)
	c.Tick(10)
	assert.Equal(t, 0.5, c.Status().ReplayProgress)
}

func TestStartRecordingDuringReplayIsNoOp(t *testing.T) {
	dir := t.TempDir()
	c := newTestController(t, Options{Source: &fakeSource{}, SessionsDir: dir})
	require.NoError(t, c.LoadReplay(writeSessionFile(t, 10)))
	c.Tick(0)
	require.True(t, c.Status().Replaying)

	id := c.StartRecording()
	c.Tick(30)
	assert.False(t, c.Status().Recording)

	_, err := os.Stat(filepath.Join(dir, id+session.FileExtension))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadReplayFinishesActiveRecording(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{}
	src.push("45,100.0,1000")
	c := newTestController(t, Options{Source: src, SessionsDir: dir})

	id := c.StartRecording()
	c.Tick(1000)

	require.NoError(t, c.LoadReplay(writeSessionFile(t, 3)))
	c.Tick(1033)

	// The in-flight recording was flushed before playback took over.
	loaded, err := session.Load(filepath.Join(dir, id+session.FileExtension))
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
	assert.False(t, c.Status().Recording)
	assert.True(t, c.Status().Replaying)
}

func TestHistoryTruncationThroughController(t *testing.T) {
	src := &fakeSource{}
	c := newTestController(t, Options{Source: src, HistoryHighWater: 20, HistoryLowWater: 10})

	for i := 0; i < 25; i++ {
		src.push("45,100.0,0")
		c.Tick(int64(i * 33))
	}
	assert.Equal(t, 14, c.Status().SampleCount)
}

func TestChannelSource(t *testing.T) {
	ch := make(chan string, 4)
	src := NewChannelSource(ch)

	_, ok := src.NextLine()
	assert.False(t, ok, "empty channel must not block")

	ch <- "45,100.0,0"
	line, ok := src.NextLine()
	require.True(t, ok)
	assert.Equal(t, "45,100.0,0", line)

	close(ch)
	_, ok = src.NextLine()
	assert.False(t, ok, "closed channel reads report no line")
}

func TestRunDrivenByClock(t *testing.T) {
	clock := timeutil.NewManualClock(time.UnixMilli(1_000_000))
	ch := make(chan string, 16)
	ch <- "45,100.0,1000"

	c := newTestController(t, Options{
		Source: NewChannelSource(ch),
		Clock:  clock,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		clock.Advance(DefaultTickInterval)
		return c.Status().SampleCount == 1
	}, 2*time.Second, 2*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestStatusDefaults(t *testing.T) {
	c := newTestController(t, Options{Source: &fakeSource{}})
	st := c.Status()
	assert.True(t, st.Connected)
	assert.False(t, st.Recording)
	assert.False(t, st.Replaying)
	assert.Equal(t, "live", st.Mode)
	assert.Equal(t, 0, st.SampleCount)
	assert.Equal(t, 1.0, st.ReplaySpeed)

	noSource := newTestController(t, Options{})
	assert.False(t, noSource.Status().Connected)
}
