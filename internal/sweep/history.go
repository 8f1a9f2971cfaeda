package sweep

// Default truncation thresholds for the rolling history.
const (
	DefaultHighWater = 1000
	DefaultLowWater  = 800
)

// HistoryBuffer is a bounded, insertion-ordered container of filtered
// samples. Growth is bounded by a high-water mark: when a push takes the
// buffer past highWater it is truncated down to lowWater in a single copy,
// dropping the oldest entries, rather than evicting one element per push.
type HistoryBuffer struct {
	highWater int
	lowWater  int
	samples   []Sample
}

// NewHistoryBuffer creates a buffer with the given truncation marks.
// Nonsensical marks fall back to the defaults.
func NewHistoryBuffer(highWater, lowWater int) *HistoryBuffer {
	if highWater <= 0 {
		highWater = DefaultHighWater
	}
	if lowWater <= 0 || lowWater >= highWater {
		lowWater = highWater * DefaultLowWater / DefaultHighWater
	}
	return &HistoryBuffer{highWater: highWater, lowWater: lowWater}
}

// Push appends a sample and truncates if the buffer exceeded the
// high-water mark. Relative order of surviving samples is preserved.
func (h *HistoryBuffer) Push(s Sample) {
	h.samples = append(h.samples, s)
	if len(h.samples) > h.highWater {
		kept := make([]Sample, h.lowWater)
		copy(kept, h.samples[len(h.samples)-h.lowWater:])
		h.samples = kept
	}
}

// Snapshot returns a copy of the buffer contents, oldest first. The copy
// is safe to hand to a renderer while the pipeline keeps pushing.
func (h *HistoryBuffer) Snapshot() []Sample {
	out := make([]Sample, len(h.samples))
	copy(out, h.samples)
	return out
}

// Len returns the current number of buffered samples.
func (h *HistoryBuffer) Len() int {
	return len(h.samples)
}

// Clear drops all buffered samples.
func (h *HistoryBuffer) Clear() {
	h.samples = nil
}
