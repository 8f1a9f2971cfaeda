package serialmux

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcscan-data/arcscan/internal/sweep"
)

func TestSweeperLinesParse(t *testing.T) {
	sw := NewSweeper(1)
	for i := 0; i < 500; i++ {
		line := sw.NextLine(int64(i * 30))
		s, ok := sweep.ParseLine(line, 0)
		require.True(t, ok, "line %q must parse", line)
		assert.Equal(t, int64(i*30), s.TimestampMs)
	}
}

func TestSweeperReversesAtArcLimits(t *testing.T) {
	sw := NewSweeper(1)

	var angles []int
	for i := 0; i < 800; i++ {
		s, ok := sweep.ParseLine(sw.NextLine(0), 0)
		require.True(t, ok)
		angles = append(angles, s.Angle)
	}

	sawTop, sawBottom := false, false
	for i, a := range angles {
		assert.GreaterOrEqual(t, a, sweep.MinAngle)
		assert.LessOrEqual(t, a, sweep.MaxAngle)
		if a == sweep.MaxAngle {
			sawTop = true
		}
		if i > 0 && a == sweep.MinAngle {
			sawBottom = true
		}
		if i > 0 {
			step := a - angles[i-1]
			assert.LessOrEqual(t, step*step, 1, "sweep moves one degree per line")
		}
	}
	assert.True(t, sawTop, "sweep must reach the top of the arc")
	assert.True(t, sawBottom, "sweep must return to the bottom")
}

func TestSweeperDeterministicForSeed(t *testing.T) {
	a, b := NewSweeper(42), NewSweeper(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.NextLine(int64(i)), b.NextLine(int64(i)))
	}
}

func TestSimulatedMuxEmitsParsableLines(t *testing.T) {
	m := NewSimulatedMux(time.Millisecond, 1)
	defer m.Close()

	id, ch := m.Subscribe()
	defer m.Unsubscribe(id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Monitor(ctx)

	select {
	case line := <-ch:
		_, ok := sweep.ParseLine(line, 0)
		assert.True(t, ok, "simulated line %q must parse", line)
	case <-time.After(2 * time.Second):
		t.Fatal("no line from simulated sensor")
	}
}

func TestSimPortDiscardsWrites(t *testing.T) {
	m := NewSimulatedMux(time.Hour, 1)
	defer m.Close()
	assert.NoError(t, m.SendCommand("RATE 30"), "the simulated sensor accepts any command")
}
