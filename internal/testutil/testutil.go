// Package testutil provides shared test fixtures for the pipeline
// packages.
package testutil

import (
	"github.com/arcscan-data/arcscan/internal/sweep"
)

// MakeSamples returns n valid samples sweeping up from angle 0 with
// distances inside the default filter bounds and timestamps spaced
// spacingMs apart.
func MakeSamples(n int, startMs, spacingMs int64) []sweep.Sample {
	samples := make([]sweep.Sample, n)
	for i := range samples {
		samples[i] = sweep.Sample{
			Angle:       sweep.ClampAngle(i % (sweep.MaxAngle + 1)),
			RawDistance: 100 + float64(i%50),
			TimestampMs: startMs + int64(i)*spacingMs,
		}
	}
	return samples
}
