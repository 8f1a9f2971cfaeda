package serialmux

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/arcscan-data/arcscan/internal/sweep"
)

// Sweeper generates the line stream of a simulated ranging sensor sweeping
// back and forth across the arc. Direction and position are explicit
// fields so a restarted simulation is deterministic for a given seed.
type Sweeper struct {
	Angle int
	Dir   int
	rng   *rand.Rand
}

// NewSweeper creates a sweeper starting at angle 0 moving upward.
func NewSweeper(seed int64) *Sweeper {
	return &Sweeper{Dir: 1, rng: rand.New(rand.NewSource(seed))}
}

// NextLine returns one wire line and advances the sweep by one degree,
// reversing direction at the arc limits. Distances follow a smooth room
// profile with gaussian noise and the occasional glitch reading so the
// downstream filter has something to reject.
func (s *Sweeper) NextLine(nowMs int64) string {
	base := 150 + 100*math.Sin(float64(s.Angle)*math.Pi/180)
	distance := base + s.rng.NormFloat64()*4
	if s.rng.Float64() < 0.02 {
		distance = s.rng.Float64() * 950
	}
	line := fmt.Sprintf("%d,%.1f,%d", s.Angle, distance, nowMs)

	s.Angle += s.Dir
	if s.Angle >= sweep.MaxAngle {
		s.Angle = sweep.MaxAngle
		s.Dir = -1
	} else if s.Angle <= sweep.MinAngle {
		s.Angle = sweep.MinAngle
		s.Dir = 1
	}
	return line
}

// SimPort is a Porter fed by a generator goroutine. Writes are accepted
// and discarded, mimicking a sensor that ignores unknown commands.
type SimPort struct {
	reader *io.PipeReader
	writer *io.PipeWriter
}

func (p *SimPort) Read(b []byte) (int, error)  { return p.reader.Read(b) }
func (p *SimPort) Write(b []byte) (int, error) { return len(b), nil }

func (p *SimPort) Close() error {
	p.writer.Close()
	return p.reader.Close()
}

// NewSimulatedMux creates a LineMux backed by a simulated sensor emitting
// one sample per interval. Used by the daemon's dev mode and by tests
// that need a live-looking feed without hardware.
func NewSimulatedMux(interval time.Duration, seed int64) *LineMux[*SimPort] {
	r, w := io.Pipe()
	port := &SimPort{reader: r, writer: w}

	go func() {
		sw := NewSweeper(seed)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			line := sw.NextLine(time.Now().UnixMilli())
			if _, err := io.WriteString(w, line+"\n"); err != nil {
				// reader side closed; stop generating
				return
			}
		}
	}()

	return NewLineMux[*SimPort](port)
}
