// Package sweep implements the core measurement pipeline for a rotating
// single-axis ranging sensor: the sample record, per-angle adaptive
// filtering, and a bounded rolling history of filtered samples.
package sweep

import "math"

const (
	// MinAngle and MaxAngle bound the sensor's sweep arc in degrees.
	MinAngle = 0
	MaxAngle = 180

	// AngleBuckets is the number of fixed per-degree filter slots.
	AngleBuckets = MaxAngle - MinAngle + 1

	// MaxValidDistanceCm is the sensor's hard range ceiling. Readings at or
	// beyond it are "no echo" markers, not measurements.
	MaxValidDistanceCm = 999.0
)

// Sample is one measurement from the sensor. RawDistance is the value as
// reported on the wire; FilteredDistance is filled in by the pipeline.
type Sample struct {
	Angle            int     `json:"angle"`
	RawDistance      float64 `json:"raw_distance_cm"`
	FilteredDistance float64 `json:"filtered_distance_cm"`
	TimestampMs      int64   `json:"timestamp_ms"`
}

// Valid reports whether the raw distance is a usable measurement. Invalid
// samples never enter the history buffer or a recording.
func (s Sample) Valid() bool {
	return !math.IsNaN(s.RawDistance) && s.RawDistance > 0 && s.RawDistance < MaxValidDistanceCm
}

// ClampAngle bounds an angle to the fixed bucket range so that every
// per-angle lookup is in bounds.
func ClampAngle(angle int) int {
	if angle < MinAngle {
		return MinAngle
	}
	if angle > MaxAngle {
		return MaxAngle
	}
	return angle
}
