package pipeline

import (
	"log"

	"github.com/arcscan-data/arcscan/internal/replay"
	"github.com/arcscan-data/arcscan/internal/session"
	"github.com/arcscan-data/arcscan/internal/sweep"
)

// command is a control-surface mutation. Commands are queued by any
// goroutine and applied under the controller lock at the start of the
// next tick, so the GUI/API collaborator never mutates pipeline state
// directly.
type command interface {
	apply(c *Controller, nowMs int64)
}

// enqueue queues a command without blocking. A full queue drops the
// command and logs; the pipeline must never stall on a chatty client.
func (c *Controller) enqueue(cmd command) {
	select {
	case c.commands <- cmd:
	default:
		log.Printf("command queue full; dropping %T", cmd)
	}
}

// drainCommands applies all queued commands. Called with c.mu held.
func (c *Controller) drainCommands(nowMs int64) {
	for {
		select {
		case cmd := <-c.commands:
			cmd.apply(c, nowMs)
		default:
			return
		}
	}
}

type setAlphaCommand struct{ alpha float64 }

func (cmd setAlphaCommand) apply(c *Controller, _ int64) {
	c.filter.SetAlpha(cmd.alpha)
}

type setMedianWindowCommand struct{ window int }

func (cmd setMedianWindowCommand) apply(c *Controller, _ int64) {
	c.filter.SetMedianWindow(cmd.window)
}

type setOutlierKCommand struct{ k float64 }

func (cmd setOutlierKCommand) apply(c *Controller, _ int64) {
	c.filter.SetOutlierK(cmd.k)
}

type resetFiltersCommand struct{}

func (resetFiltersCommand) apply(c *Controller, _ int64) {
	c.filter.Reset()
}

type clearHistoryCommand struct{}

func (clearHistoryCommand) apply(c *Controller, _ int64) {
	c.history.Clear()
	c.filter.Reset()
}

type startRecordingCommand struct{ id string }

func (cmd startRecordingCommand) apply(c *Controller, nowMs int64) {
	if c.recordingActive || c.mode == ModeReplay {
		return
	}
	c.recordingActive = true
	c.recordingID = cmd.id
	c.recordingStartMs = nowMs
	c.recordingDropped = 0
	c.recording = c.recording[:0]
	log.Printf("recording started: session %s", cmd.id)
}

type stopRecordingCommand struct{}

func (stopRecordingCommand) apply(c *Controller, nowMs int64) {
	c.finishRecording(nowMs)
}

type startReplayCommand struct{ samples []sweep.Sample }

func (cmd startReplayCommand) apply(c *Controller, nowMs int64) {
	// Starting a replay implicitly stops live recording for the
	// duration of playback.
	c.finishRecording(nowMs)
	c.scheduler.Load(cmd.samples)
	c.scheduler.Start(nowMs)
	if c.scheduler.State() == replay.Playing {
		c.mode = ModeReplay
		log.Printf("replay started: %d samples", len(cmd.samples))
	}
}

type stopReplayCommand struct{}

func (stopReplayCommand) apply(c *Controller, _ int64) {
	c.scheduler.Stop()
	c.mode = ModeLive
}

type setReplaySpeedCommand struct{ speed float64 }

func (cmd setReplaySpeedCommand) apply(c *Controller, _ int64) {
	c.scheduler.SetSpeed(cmd.speed)
}

type seekReplayCommand struct{ fraction float64 }

func (cmd seekReplayCommand) apply(c *Controller, _ int64) {
	c.scheduler.Seek(cmd.fraction)
}

// SetAlpha queues a smoothing-factor update, clamped to its valid range.
func (c *Controller) SetAlpha(alpha float64) {
	c.enqueue(setAlphaCommand{alpha: alpha})
}

// SetMedianWindow queues a median window length update.
func (c *Controller) SetMedianWindow(w int) {
	c.enqueue(setMedianWindowCommand{window: w})
}

// SetOutlierThreshold queues an outlier gate multiplier update.
func (c *Controller) SetOutlierThreshold(k float64) {
	c.enqueue(setOutlierKCommand{k: k})
}

// ResetFilters queues a bulk clear of every filter bucket.
func (c *Controller) ResetFilters() {
	c.enqueue(resetFiltersCommand{})
}

// ClearHistory queues a clear of the history buffer and filter state.
func (c *Controller) ClearHistory() {
	c.enqueue(clearHistoryCommand{})
}

// StartRecording queues the start of a recording and returns the session
// ID it will be saved under. Starting while already recording, or while
// replaying, is a no-op.
func (c *Controller) StartRecording() string {
	id := newSessionID()
	c.enqueue(startRecordingCommand{id: id})
	return id
}

// StopRecording queues the end of the active recording; the recording set
// is saved through the session store and cleared. Idempotent.
func (c *Controller) StopRecording() {
	c.enqueue(stopRecordingCommand{})
}

// LoadReplay reads a session file and queues playback of its samples.
// The file is read on the caller's goroutine so a slow disk can never
// stall a tick; only the loaded slice crosses into the pipeline.
func (c *Controller) LoadReplay(path string) error {
	samples, err := session.Load(path)
	if err != nil {
		return err
	}
	c.enqueue(startReplayCommand{samples: samples})
	return nil
}

// StopReplay queues an immediate, idempotent stop of playback and
// resumes live ingestion.
func (c *Controller) StopReplay() {
	c.enqueue(stopReplayCommand{})
}

// SetReplaySpeed queues a playback speed update, clamped to [0.1, 10].
func (c *Controller) SetReplaySpeed(speed float64) {
	c.enqueue(setReplaySpeedCommand{speed: speed})
}

// SeekReplay queues a cursor reposition to the given fraction of the
// loaded sequence.
func (c *Controller) SeekReplay(fraction float64) {
	c.enqueue(seekReplayCommand{fraction: fraction})
}
