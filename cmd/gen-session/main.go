// Command gen-session writes a synthetic sweep session file, useful for
// exercising replay without sensor hardware.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/arcscan-data/arcscan/internal/serialmux"
	"github.com/arcscan-data/arcscan/internal/session"
	"github.com/arcscan-data/arcscan/internal/sweep"
)

var (
	out        = flag.String("out", "session"+session.FileExtension, "Output file path")
	count      = flag.Int("samples", 1000, "Number of samples to generate")
	seed       = flag.Int64("seed", 1, "Random seed for the simulated sweep")
	intervalMs = flag.Int64("interval-ms", 30, "Timestamp spacing between samples")
)

func main() {
	flag.Parse()

	if *count <= 0 {
		log.Fatalf("samples must be positive, got %d", *count)
	}

	sw := serialmux.NewSweeper(*seed)
	nowMs := time.Now().UnixMilli()

	samples := make([]sweep.Sample, 0, *count)
	for i := 0; i < *count; i++ {
		ts := nowMs + int64(i)*(*intervalMs)
		line := sw.NextLine(ts)
		s, ok := sweep.ParseLine(line, ts)
		if !ok {
			continue
		}
		samples = append(samples, s)
	}

	written, err := session.Save(*out, samples)
	if err != nil {
		log.Fatalf("failed to write session: %v", err)
	}
	log.Printf("wrote %d samples to %s", written, *out)
}
