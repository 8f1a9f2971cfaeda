package sweep

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryTruncatesToLowWater(t *testing.T) {
	h := NewHistoryBuffer(1000, 800)

	for i := 0; i < 1001; i++ {
		h.Push(Sample{Angle: 90, RawDistance: float64(i + 1)})
	}

	// Pushing past the high-water mark drops the oldest entries in one
	// operation, keeping exactly the most recent 800 in order.
	require.Equal(t, 800, h.Len())
	snap := h.Snapshot()
	assert.Equal(t, 202.0, snap[0].RawDistance)
	assert.Equal(t, 1001.0, snap[len(snap)-1].RawDistance)
	for i := 1; i < len(snap); i++ {
		assert.Equal(t, snap[i-1].RawDistance+1, snap[i].RawDistance, "surviving order must be preserved")
	}
}

func TestHistoryNeverExceedsHighWater(t *testing.T) {
	h := NewHistoryBuffer(100, 80)
	for i := 0; i < 5000; i++ {
		h.Push(Sample{RawDistance: float64(i)})
		require.LessOrEqual(t, h.Len(), 100)
	}
}

func TestHistorySnapshotIsIsolated(t *testing.T) {
	h := NewHistoryBuffer(10, 5)
	h.Push(Sample{RawDistance: 1})
	h.Push(Sample{RawDistance: 2})

	snap := h.Snapshot()
	snap[0].RawDistance = 999

	fresh := h.Snapshot()
	assert.Equal(t, 1.0, fresh[0].RawDistance, "mutating a snapshot must not touch the buffer")

	if diff := cmp.Diff([]float64{1, 2}, []float64{fresh[0].RawDistance, fresh[1].RawDistance}); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryClear(t *testing.T) {
	h := NewHistoryBuffer(10, 5)
	h.Push(Sample{RawDistance: 1})
	h.Clear()
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Snapshot())
}

func TestHistoryDefaults(t *testing.T) {
	h := NewHistoryBuffer(0, 0)
	assert.Equal(t, DefaultHighWater, h.highWater)
	assert.Equal(t, DefaultLowWater, h.lowWater)

	// A low-water mark at or above the high-water mark is nonsense;
	// fall back to the default ratio.
	h = NewHistoryBuffer(500, 600)
	assert.Equal(t, 500, h.highWater)
	assert.Equal(t, 400, h.lowWater)
}
