package sweep

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Filter parameter bounds. Out-of-range values are clamped, never rejected,
// so a bad control input can degrade smoothing but cannot fail it.
const (
	MinAlpha = 0.1
	MaxAlpha = 0.9

	MinMedianWindow = 3
	MaxMedianWindow = 15

	MinOutlierK = 1.0
	MaxOutlierK = 5.0

	// outlierMinSamples is the window population required before the
	// statistical gate is trusted at all.
	outlierMinSamples = 5
)

// FilterParams holds the tunable knobs of the adaptive filter.
type FilterParams struct {
	// Alpha is the exponential smoothing factor.
	Alpha float64
	// MedianWindow is the per-angle raw history length W.
	MedianWindow int
	// OutlierK is the stddev multiplier of the statistical gate.
	OutlierK float64
	// MinDistance and MaxDistance bound plausible readings in cm.
	MinDistance float64
	MaxDistance float64
}

// DefaultFilterParams returns the stock tuning for the sensor.
func DefaultFilterParams() FilterParams {
	return FilterParams{
		Alpha:        0.3,
		MedianWindow: 5,
		OutlierK:     2.0,
		MinDistance:  10,
		MaxDistance:  400,
	}
}

// normalize clamps every parameter into its valid range.
func (p FilterParams) normalize() FilterParams {
	p.Alpha = clampFloat(p.Alpha, MinAlpha, MaxAlpha)
	p.MedianWindow = clampInt(p.MedianWindow, MinMedianWindow, MaxMedianWindow)
	p.OutlierK = clampFloat(p.OutlierK, MinOutlierK, MaxOutlierK)
	if p.MinDistance <= 0 {
		p.MinDistance = DefaultFilterParams().MinDistance
	}
	if p.MaxDistance <= p.MinDistance {
		p.MaxDistance = DefaultFilterParams().MaxDistance
	}
	return p
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// bucket is the per-angle filter state: the median window of recent raw
// values and one EMA accumulator. Window slices are allocated lazily but
// the bucket count itself is fixed by the angle range.
type bucket struct {
	window []float64
	ema    float64
	seeded bool
}

// AdaptiveFilter cleans raw distance readings with a three-stage pipeline
// per angle bucket: outlier gate, median window, exponential smoothing.
// It performs no I/O; Apply is a pure function of the filter state and one
// input reading.
type AdaptiveFilter struct {
	params  FilterParams
	buckets [AngleBuckets]bucket
}

// NewAdaptiveFilter creates a filter with the given parameters, clamped
// into their valid ranges.
func NewAdaptiveFilter(params FilterParams) *AdaptiveFilter {
	return &AdaptiveFilter{params: params.normalize()}
}

// Params returns the current (normalized) parameters.
func (f *AdaptiveFilter) Params() FilterParams {
	return f.params
}

// SetAlpha updates the smoothing factor, clamped to [0.1, 0.9].
func (f *AdaptiveFilter) SetAlpha(alpha float64) {
	f.params.Alpha = clampFloat(alpha, MinAlpha, MaxAlpha)
}

// SetMedianWindow updates the window length W, clamped to [3, 15].
func (f *AdaptiveFilter) SetMedianWindow(w int) {
	f.params.MedianWindow = clampInt(w, MinMedianWindow, MaxMedianWindow)
}

// SetOutlierK updates the outlier gate multiplier, clamped to [1.0, 5.0].
func (f *AdaptiveFilter) SetOutlierK(k float64) {
	f.params.OutlierK = clampFloat(k, MinOutlierK, MaxOutlierK)
}

// Apply runs one raw reading through the filter for the given angle and
// returns the smoothed value. Rejected readings leave the bucket untouched
// and return the bucket's current EMA, so one bad reading can never drag
// the output.
func (f *AdaptiveFilter) Apply(raw float64, angle int) float64 {
	b := &f.buckets[ClampAngle(angle)]

	if f.reject(b, raw) {
		return b.ema
	}

	med := b.pushMedian(raw, f.params.MedianWindow)

	// The EMA is updated only on acceptance; the gate above reads it as
	// the fallback value, so a rejected reading must never reach it.
	if !b.seeded {
		b.ema = med
		b.seeded = true
	} else {
		b.ema = f.params.Alpha*med + (1-f.params.Alpha)*b.ema
	}
	return b.ema
}

// reject applies the outlier gate: hard range bounds always, and the
// statistical distance-from-mean test once the window has enough history
// to make the estimate meaningful.
func (f *AdaptiveFilter) reject(b *bucket, raw float64) bool {
	if math.IsNaN(raw) || raw < f.params.MinDistance || raw > f.params.MaxDistance {
		return true
	}
	if len(b.window) >= outlierMinSamples {
		mean := stat.Mean(b.window, nil)
		sigma := stat.PopStdDev(b.window, nil)
		if math.Abs(raw-mean) > f.params.OutlierK*sigma {
			return true
		}
	}
	return false
}

// pushMedian appends raw to the bucket's window, truncates it to at most w
// entries dropping the oldest, and returns the median. Windows with fewer
// than three entries pass the raw value through unchanged.
func (b *bucket) pushMedian(raw float64, w int) float64 {
	b.window = append(b.window, raw)
	if len(b.window) > w {
		b.window = b.window[len(b.window)-w:]
	}
	if len(b.window) < 3 {
		return raw
	}

	sorted := make([]float64, len(b.window))
	copy(sorted, b.window)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Reset clears every bucket's window and EMA back to the empty state.
func (f *AdaptiveFilter) Reset() {
	for i := range f.buckets {
		f.buckets[i] = bucket{}
	}
}
