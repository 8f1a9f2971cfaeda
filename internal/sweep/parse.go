package sweep

import (
	"math"
	"strconv"
	"strings"
)

// ParseLine parses one wire line of the form "angle,distance[,timestamp]".
// The angle may be an integer or an integer-like float; the timestamp is
// optional and defaults to nowMs when absent or unparsable. Lines with
// fewer than two numeric fields are malformed and reported as not ok; the
// caller decides what to do with samples that parse but fail validation.
func ParseLine(line string, nowMs int64) (Sample, bool) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 2 {
		return Sample{}, false
	}

	angle, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil || math.IsNaN(angle) || math.IsInf(angle, 0) {
		return Sample{}, false
	}

	distance, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return Sample{}, false
	}

	timestamp := nowMs
	if len(fields) >= 3 {
		if ts, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64); err == nil {
			timestamp = ts
		}
	}

	return Sample{
		Angle:       ClampAngle(int(math.Round(angle))),
		RawDistance: distance,
		TimestampMs: timestamp,
	}, true
}
