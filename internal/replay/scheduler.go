// Package replay provides timestamp-driven playback of a recorded sample
// sequence. Pacing is decoupled from the recording's original timestamps:
// the cursor advances on a fixed nominal interval scaled by a speed
// factor, so playback stays predictable however irregular the original
// sampling was.
package replay

import (
	"math"

	"github.com/arcscan-data/arcscan/internal/sweep"
)

// State is the scheduler's playback state.
type State int

const (
	// Idle means no playback is in progress.
	Idle State = iota
	// Playing means the cursor is advancing.
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

// Speed and pacing bounds.
const (
	DefaultBaseIntervalMs = 30
	MinSpeed              = 0.1
	MaxSpeed              = 10.0
	DefaultSpeed          = 1.0
)

// Scheduler advances through a loaded sample sequence at a configurable
// rate. The sequence is read-only during playback; each sample is handed
// out exactly once via CurrentSample.
type Scheduler struct {
	samples        []sweep.Sample
	cursor         int
	state          State
	speed          float64
	baseIntervalMs int64
	lastAdvanceMs  int64
	consumed       bool
}

// NewScheduler creates an idle scheduler with default pacing.
func NewScheduler() *Scheduler {
	return &Scheduler{
		speed:          DefaultSpeed,
		baseIntervalMs: DefaultBaseIntervalMs,
	}
}

// Load replaces the playback sequence and rewinds the cursor. The
// scheduler is left Idle; call Start to begin playback.
func (s *Scheduler) Load(samples []sweep.Sample) {
	s.samples = samples
	s.cursor = 0
	s.state = Idle
	s.consumed = false
}

// Start begins playback from the current cursor position. Starting with
// an empty sequence is a no-op, not an error.
func (s *Scheduler) Start(nowMs int64) {
	if len(s.samples) == 0 || s.state == Playing {
		return
	}
	s.state = Playing
	s.lastAdvanceMs = nowMs
	s.consumed = false
}

// Stop halts playback. Stopping an idle scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.state = Idle
}

// Tick advances the cursor by one position each time the scaled nominal
// interval has elapsed. Reaching the end of the sequence transitions back
// to Idle; there is no looping.
func (s *Scheduler) Tick(nowMs int64) {
	if s.state != Playing {
		return
	}
	if s.cursor >= len(s.samples) {
		s.state = Idle
		return
	}
	interval := int64(float64(s.baseIntervalMs) / s.speed)
	if interval < 1 {
		interval = 1
	}
	if nowMs-s.lastAdvanceMs < interval {
		return
	}
	s.lastAdvanceMs = nowMs
	s.cursor++
	s.consumed = false
	if s.cursor >= len(s.samples) {
		s.state = Idle
	}
}

// CurrentSample returns the sample at the cursor while playing. Each
// cursor position is delivered at most once; repeated calls between
// advances report no sample.
func (s *Scheduler) CurrentSample() (sweep.Sample, bool) {
	if s.state != Playing || s.consumed || s.cursor >= len(s.samples) {
		return sweep.Sample{}, false
	}
	s.consumed = true
	return s.samples[s.cursor], true
}

// Seek repositions the cursor to round(fraction * length) regardless of
// play state. The fraction is clamped to [0, 1].
func (s *Scheduler) Seek(fraction float64) {
	if math.IsNaN(fraction) {
		return
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	s.cursor = int(math.Round(fraction * float64(len(s.samples))))
	if s.cursor > len(s.samples) {
		s.cursor = len(s.samples)
	}
	s.consumed = false
}

// SetSpeed updates the playback speed factor, clamped to [0.1, 10.0].
func (s *Scheduler) SetSpeed(speed float64) {
	if math.IsNaN(speed) {
		return
	}
	if speed < MinSpeed {
		speed = MinSpeed
	}
	if speed > MaxSpeed {
		speed = MaxSpeed
	}
	s.speed = speed
}

// SetBaseInterval updates the nominal inter-sample interval in
// milliseconds. Values below 1ms are ignored.
func (s *Scheduler) SetBaseInterval(ms int64) {
	if ms >= 1 {
		s.baseIntervalMs = ms
	}
}

// Speed returns the current speed factor.
func (s *Scheduler) Speed() float64 { return s.speed }

// State returns the current playback state.
func (s *Scheduler) State() State { return s.state }

// Len returns the length of the loaded sequence.
func (s *Scheduler) Len() int { return len(s.samples) }

// Progress returns the cursor position as a fraction of the sequence
// length, or 0 for an empty sequence.
func (s *Scheduler) Progress() float64 {
	if len(s.samples) == 0 {
		return 0
	}
	return float64(s.cursor) / float64(len(s.samples))
}
