package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcscan-data/arcscan/internal/sweep"
	"github.com/arcscan-data/arcscan/internal/testutil"
)

func TestSchedulerPacingAtUnitSpeed(t *testing.T) {
	s := NewScheduler()
	samples := testutil.MakeSamples(10, 0, 30)
	s.Load(samples)
	s.Start(0)

	// Drive the scheduler with a 10ms tick. At speed 1.0 and a 30ms base
	// interval one sample is delivered roughly every 30ms.
	var delivered []sweep.Sample
	var deliveredAt []int64
	for now := int64(0); now <= 400; now += 10 {
		s.Tick(now)
		if got, ok := s.CurrentSample(); ok {
			delivered = append(delivered, got)
			deliveredAt = append(deliveredAt, now)
		}
	}

	require.Len(t, delivered, 10)
	for i, got := range delivered {
		assert.Equal(t, samples[i], got, "samples must arrive in order")
	}
	for i := 1; i < len(deliveredAt); i++ {
		assert.Equal(t, int64(30), deliveredAt[i]-deliveredAt[i-1])
	}
	assert.Equal(t, Idle, s.State(), "reaching the end auto-stops playback")
}

func TestSchedulerDoubleSpeedAdvancesTwiceAsFast(t *testing.T) {
	s := NewScheduler()
	s.Load(testutil.MakeSamples(10, 0, 30))
	s.SetSpeed(2.0)
	s.Start(0)

	var deliveredAt []int64
	for now := int64(0); now <= 200; now += 5 {
		s.Tick(now)
		if _, ok := s.CurrentSample(); ok {
			deliveredAt = append(deliveredAt, now)
		}
	}

	require.Len(t, deliveredAt, 10)
	for i := 1; i < len(deliveredAt); i++ {
		assert.Equal(t, int64(15), deliveredAt[i]-deliveredAt[i-1])
	}
}

func TestSchedulerConsumeOnce(t *testing.T) {
	s := NewScheduler()
	s.Load(testutil.MakeSamples(3, 0, 30))
	s.Start(100)

	_, ok := s.CurrentSample()
	require.True(t, ok)

	// The same cursor position is never re-delivered.
	_, ok = s.CurrentSample()
	assert.False(t, ok)

	// Not until the cursor advances.
	s.Tick(130)
	_, ok = s.CurrentSample()
	assert.True(t, ok)
}

func TestSchedulerStartEmptyIsNoOp(t *testing.T) {
	s := NewScheduler()
	s.Load(nil)
	s.Start(0)
	assert.Equal(t, Idle, s.State())

	_, ok := s.CurrentSample()
	assert.False(t, ok)
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := NewScheduler()
	s.Load(testutil.MakeSamples(5, 0, 30))
	s.Start(0)
	s.Stop()
	s.Stop()
	assert.Equal(t, Idle, s.State())
}

func TestSchedulerSeek(t *testing.T) {
	s := NewScheduler()
	samples := testutil.MakeSamples(10, 0, 30)
	s.Load(samples)
	s.Start(0)

	s.Seek(0.5)
	got, ok := s.CurrentSample()
	require.True(t, ok)
	assert.Equal(t, samples[5], got)

	// Seeking to the end leaves nothing to deliver; the next tick
	// transitions to Idle.
	s.Seek(1.0)
	_, ok = s.CurrentSample()
	assert.False(t, ok)
	s.Tick(1000)
	assert.Equal(t, Idle, s.State())

	// Seek is honoured regardless of play state.
	s.Seek(0.0)
	assert.Equal(t, 0.0, s.Progress())
}

func TestSchedulerSpeedClamping(t *testing.T) {
	s := NewScheduler()
	s.SetSpeed(100)
	assert.Equal(t, MaxSpeed, s.Speed())
	s.SetSpeed(0.001)
	assert.Equal(t, MinSpeed, s.Speed())
	s.SetSpeed(1.5)
	assert.Equal(t, 1.5, s.Speed())
}

func TestSchedulerLoadRewinds(t *testing.T) {
	s := NewScheduler()
	first := testutil.MakeSamples(5, 0, 30)
	s.Load(first)
	s.Start(0)
	s.Tick(30)
	s.Tick(60)

	second := testutil.MakeSamples(3, 1000, 30)
	s.Load(second)
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, 0.0, s.Progress())

	s.Start(0)
	got, ok := s.CurrentSample()
	require.True(t, ok)
	assert.Equal(t, second[0], got)
}

func TestSchedulerProgress(t *testing.T) {
	s := NewScheduler()
	assert.Equal(t, 0.0, s.Progress())

	s.Load(testutil.MakeSamples(4, 0, 30))
	s.Start(0)
	s.Tick(30)
	assert.Equal(t, 0.25, s.Progress())
}
