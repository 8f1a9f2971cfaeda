package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClockAdvance(t *testing.T) {
	start := time.UnixMilli(1_000_000)
	c := NewManualClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(33 * time.Millisecond)
	assert.Equal(t, start.Add(33*time.Millisecond), c.Now())
}

func TestManualTickerFiresOnAdvance(t *testing.T) {
	c := NewManualClock(time.UnixMilli(0))
	ticker := c.NewTicker(33 * time.Millisecond)

	select {
	case <-ticker.C():
		t.Fatal("ticker fired before the clock advanced")
	default:
	}

	c.Advance(33 * time.Millisecond)
	select {
	case now := <-ticker.C():
		assert.Equal(t, time.UnixMilli(33), now)
	default:
		t.Fatal("ticker did not fire on advance")
	}
}

func TestManualTickerStopped(t *testing.T) {
	c := NewManualClock(time.UnixMilli(0))
	ticker := c.NewTicker(time.Millisecond)
	ticker.Stop()

	c.Advance(time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker must not fire")
	default:
	}
}

func TestRealClock(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	now := c.Now()
	require.False(t, now.Before(before))

	ticker := c.NewTicker(time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker did not fire")
	}
}
