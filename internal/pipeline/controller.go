// Package pipeline is the composition root of the sampling pipeline. It
// imports the layer packages (sweep, replay, session) and owns all of
// their mutable state; none of those packages import pipeline.
//
// One Controller instance owns the filter buckets, history buffer,
// recording set and replay cursor. All of them are mutated only inside
// Tick, on the controller's goroutine. Control commands issued by other
// goroutines are queued and applied atomically at the start of the next
// tick.
package pipeline

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arcscan-data/arcscan/internal/replay"
	"github.com/arcscan-data/arcscan/internal/session"
	"github.com/arcscan-data/arcscan/internal/sweep"
	"github.com/arcscan-data/arcscan/internal/timeutil"
)

// DefaultTickInterval targets a little over 30 ticks per second.
const DefaultTickInterval = 33 * time.Millisecond

// Mode says where the pipeline pulls samples from. Live ingestion and
// replay are mutually exclusive by construction: one field, not two
// booleans.
type Mode int

const (
	// ModeLive pulls lines from the live source.
	ModeLive Mode = iota
	// ModeReplay pulls samples from the replay scheduler.
	ModeReplay
)

func (m Mode) String() string {
	if m == ModeReplay {
		return "replay"
	}
	return "live"
}

// LineSource yields at most one pending wire line per call without
// blocking, returning ok=false when nothing is waiting.
type LineSource interface {
	NextLine() (string, bool)
}

// ChannelSource adapts a subscriber channel (such as one returned by
// serialmux.Subscribe) into a non-blocking LineSource.
type ChannelSource struct {
	ch <-chan string
}

// NewChannelSource wraps a line channel.
func NewChannelSource(ch <-chan string) *ChannelSource {
	return &ChannelSource{ch: ch}
}

// NextLine performs a non-blocking receive.
func (s *ChannelSource) NextLine() (string, bool) {
	select {
	case line, ok := <-s.ch:
		if !ok {
			return "", false
		}
		return line, true
	default:
		return "", false
	}
}

// Status is the pipeline state exposed to the control surface.
type Status struct {
	Connected      bool    `json:"connected"`
	Recording      bool    `json:"recording"`
	Replaying      bool    `json:"replaying"`
	SampleCount    int     `json:"sample_count"`
	Mode           string  `json:"mode"`
	ReplayProgress float64 `json:"replay_progress"`
	ReplaySpeed    float64 `json:"replay_speed"`
}

// Options configures a Controller. Zero values fall back to defaults.
type Options struct {
	Source               LineSource
	Filter               sweep.FilterParams
	HistoryHighWater     int
	HistoryLowWater      int
	ReplayBaseIntervalMs int64
	TickInterval         time.Duration
	SessionsDir          string
	Catalog              *session.Catalog
	Clock                timeutil.Clock
}

// Controller orchestrates one tick of the pipeline: pull a sample from
// the live source or the replay scheduler, filter it, buffer it, and
// record it when a recording is active.
type Controller struct {
	mu sync.Mutex

	source    LineSource
	filter    *sweep.AdaptiveFilter
	history   *sweep.HistoryBuffer
	scheduler *replay.Scheduler
	catalog   *session.Catalog

	sessionsDir  string
	clock        timeutil.Clock
	tickInterval time.Duration

	mode Mode

	recording        []sweep.Sample
	recordingActive  bool
	recordingID      string
	recordingStartMs int64
	recordingDropped int

	commands chan command
}

// NewController creates a controller from the given options.
func NewController(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Filter == (sweep.FilterParams{}) {
		opts.Filter = sweep.DefaultFilterParams()
	}

	sched := replay.NewScheduler()
	if opts.ReplayBaseIntervalMs > 0 {
		sched.SetBaseInterval(opts.ReplayBaseIntervalMs)
	}

	return &Controller{
		source:       opts.Source,
		filter:       sweep.NewAdaptiveFilter(opts.Filter),
		history:      sweep.NewHistoryBuffer(opts.HistoryHighWater, opts.HistoryLowWater),
		scheduler:    sched,
		catalog:      opts.Catalog,
		sessionsDir:  opts.SessionsDir,
		clock:        opts.Clock,
		tickInterval: opts.TickInterval,
		mode:         ModeLive,
		commands:     make(chan command, 128),
	}
}

// Run drives Tick at the configured cadence until the context ends.
func (c *Controller) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C():
			c.Tick(now.UnixMilli())
		}
	}
}

// Tick performs one scheduling step: drain queued commands, pull at most
// one sample, filter, buffer, record. Malformed or invalid input changes
// no state; the pipeline stays tickable after any single bad line.
func (c *Controller) Tick(nowMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drainCommands(nowMs)

	var s sweep.Sample
	var ok bool

	switch c.mode {
	case ModeReplay:
		c.scheduler.Tick(nowMs)
		s, ok = c.scheduler.CurrentSample()
		if !ok && c.scheduler.State() == replay.Idle {
			log.Printf("replay finished; returning to live ingestion")
			c.mode = ModeLive
		}
	case ModeLive:
		if c.source == nil {
			return
		}
		line, got := c.source.NextLine()
		if !got {
			return
		}
		s, ok = sweep.ParseLine(line, nowMs)
	}

	if !ok {
		return
	}
	if !s.Valid() {
		if c.recordingActive {
			c.recordingDropped++
		}
		return
	}

	s.Angle = sweep.ClampAngle(s.Angle)
	s.FilteredDistance = c.filter.Apply(s.RawDistance, s.Angle)
	c.history.Push(s)

	if c.recordingActive && c.mode == ModeLive {
		c.recording = append(c.recording, s)
	}
}

// Snapshot returns a copy of the history buffer, oldest first.
func (c *Controller) Snapshot() []sweep.Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Snapshot()
}

// Status reports the pipeline's externally visible state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Connected:      c.source != nil,
		Recording:      c.recordingActive,
		Replaying:      c.mode == ModeReplay,
		SampleCount:    c.history.Len(),
		Mode:           c.mode.String(),
		ReplayProgress: c.scheduler.Progress(),
		ReplaySpeed:    c.scheduler.Speed(),
	}
}

// FilterParams returns the filter's current tuning.
func (c *Controller) FilterParams() sweep.FilterParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter.Params()
}

// finishRecording saves the recording set, catalogs it, and clears it.
// Called with c.mu held, inside a tick.
func (c *Controller) finishRecording(nowMs int64) {
	if !c.recordingActive {
		return
	}

	path := filepath.Join(c.sessionsDir, c.recordingID+session.FileExtension)
	written, err := session.Save(path, c.recording)
	if err != nil {
		log.Printf("failed to save session %s: %v", c.recordingID, err)
	} else {
		log.Printf("saved session %s: %d samples to %s", c.recordingID, written, path)
		if c.catalog != nil {
			rec := session.Record{
				ID:           c.recordingID,
				Path:         path,
				StartedMs:    c.recordingStartMs,
				EndedMs:      nowMs,
				SampleCount:  written,
				DroppedCount: c.recordingDropped,
			}
			if err := c.catalog.Insert(rec); err != nil {
				log.Printf("failed to catalog session %s: %v", c.recordingID, err)
			}
		}
	}

	c.recording = nil
	c.recordingActive = false
	c.recordingID = ""
	c.recordingDropped = 0
}

// newSessionID returns a fresh session identifier.
func newSessionID() string {
	return uuid.New().String()
}
