// Package session persists recorded sweep sessions. The on-disk record
// format is flat UTF-8 text: a comment header block, one blank separator
// line, then one "angle,distance,timestamp" line per sample. A SQLite
// catalog tracks saved sessions alongside the flat files.
package session

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/arcscan-data/arcscan/internal/sweep"
)

// ErrNoSamples is returned when a save has nothing valid to write or a
// load finds no valid data lines.
var ErrNoSamples = errors.New("session contains no valid samples")

// FileExtension is the conventional extension for session files.
const FileExtension = ".sweep"

// Save writes the valid subset of samples to path in the flat record
// format and returns how many were written. Samples failing validation
// are dropped here so they can never reappear on load.
func Save(path string, samples []sweep.Sample) (int, error) {
	valid := make([]sweep.Sample, 0, len(samples))
	for _, s := range samples {
		if s.Valid() {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return 0, fmt.Errorf("save %s: %w", path, ErrNoSamples)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create session file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# arcscan sweep session\n")
	fmt.Fprintf(w, "# saved: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "# samples: %d\n", len(valid))
	fmt.Fprintf(w, "# fields: angle,distance_cm,timestamp_ms\n")
	fmt.Fprintln(w)

	for _, s := range valid {
		fmt.Fprintf(w, "%.1f,%.1f,%d\n", float64(s.Angle), s.RawDistance, s.TimestampMs)
	}

	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("failed to write session file: %w", err)
	}
	return len(valid), nil
}

// Load reads a session file and returns its valid samples in file order.
// Comment and blank lines are skipped; lines that fail to parse or fail
// range validation are silently dropped. A file yielding zero valid
// samples is an error, but partially-skipped files are not.
func Load(path string) ([]sweep.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	defer f.Close()

	nowMs := time.Now().UnixMilli()
	var samples []sweep.Sample

	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := scan.Text()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		s, ok := sweep.ParseLine(line, nowMs)
		if !ok || !s.Valid() {
			continue
		}
		samples = append(samples, s)
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("load %s: %w", path, ErrNoSamples)
	}
	return samples, nil
}
