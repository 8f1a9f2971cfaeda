// Package api exposes the pipeline's control surface over HTTP: filter
// tuning, recording and replay control, history snapshots, and status.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/arcscan-data/arcscan/internal/pipeline"
	"github.com/arcscan-data/arcscan/internal/serialmux"
	"github.com/arcscan-data/arcscan/internal/session"
	"github.com/arcscan-data/arcscan/internal/units"
	"github.com/arcscan-data/arcscan/internal/version"
)

// ANSI escape codes for request logging.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// Server wires the pipeline controller, the serial mux, and the session
// catalog to HTTP handlers. It issues only discrete commands to the
// pipeline and reads only snapshots and status; it holds no pipeline
// state of its own.
type Server struct {
	pipeline *pipeline.Controller
	mux      serialmux.Muxer
	catalog  *session.Catalog
}

// NewServer creates a Server. The catalog may be nil when the daemon runs
// without one.
func NewServer(p *pipeline.Controller, m serialmux.Muxer, catalog *session.Catalog) *Server {
	return &Server{
		pipeline: p,
		mux:      m,
		catalog:  catalog,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the route table for the control surface.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/snapshot", s.showSnapshot)
	mux.HandleFunc("/api/filter/params", s.filterParams)
	mux.HandleFunc("/api/filter/reset", s.resetFilters)
	mux.HandleFunc("/api/history/clear", s.clearHistory)
	mux.HandleFunc("/api/recording/start", s.startRecording)
	mux.HandleFunc("/api/recording/stop", s.stopRecording)
	mux.HandleFunc("/api/replay/load", s.loadReplay)
	mux.HandleFunc("/api/replay/stop", s.stopReplay)
	mux.HandleFunc("/api/replay/speed", s.setReplaySpeed)
	mux.HandleFunc("/api/replay/seek", s.seekReplay)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/command", s.sendCommandHandler)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, map[string]any{
		"status":  s.pipeline.Status(),
		"version": version.String(),
	})
}

// showSnapshot returns the history buffer, optionally converted to the
// requested distance units.
func (s *Server) showSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}

	unit := units.CM
	if u := r.URL.Query().Get("units"); u != "" {
		if !units.IsValid(u) {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'units' parameter: valid values are "+units.GetValidUnitsString())
			return
		}
		unit = u
	}

	samples := s.pipeline.Snapshot()
	if unit != units.CM {
		for i := range samples {
			samples[i].RawDistance = units.ConvertDistance(samples[i].RawDistance, unit)
			samples[i].FilteredDistance = units.ConvertDistance(samples[i].FilteredDistance, unit)
		}
	}
	s.writeJSON(w, map[string]any{"units": unit, "samples": samples})
}

// filterParams reports the current tuning on GET and queues updates on
// POST. Out-of-range values are clamped, not rejected.
func (s *Server) filterParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		p := s.pipeline.FilterParams()
		s.writeJSON(w, map[string]any{
			"alpha":         p.Alpha,
			"median_window": p.MedianWindow,
			"outlier_k":     p.OutlierK,
		})
	case http.MethodPost:
		var body struct {
			Alpha        *float64 `json:"alpha"`
			MedianWindow *int     `json:"median_window"`
			OutlierK     *float64 `json:"outlier_k"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if body.Alpha != nil {
			s.pipeline.SetAlpha(*body.Alpha)
		}
		if body.MedianWindow != nil {
			s.pipeline.SetMedianWindow(*body.MedianWindow)
		}
		if body.OutlierK != nil {
			s.pipeline.SetOutlierThreshold(*body.OutlierK)
		}
		s.writeJSON(w, map[string]bool{"ok": true})
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) resetFilters(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	s.pipeline.ResetFilters()
	s.writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	s.pipeline.ClearHistory()
	s.writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) startRecording(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	id := s.pipeline.StartRecording()
	s.writeJSON(w, map[string]string{"session_id": id})
}

func (s *Server) stopRecording(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	s.pipeline.StopRecording()
	s.writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) loadReplay(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Path == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing replay path")
		return
	}
	if err := s.pipeline.LoadReplay(body.Path); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, os.ErrNotExist) {
			status = http.StatusNotFound
		}
		s.writeJSONError(w, status, err.Error())
		return
	}
	s.writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) stopReplay(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	s.pipeline.StopReplay()
	s.writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) setReplaySpeed(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	s.pipeline.SetReplaySpeed(body.Speed)
	s.writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) seekReplay(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var body struct {
		Fraction float64 `json:"fraction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	s.pipeline.SeekReplay(body.Fraction)
	s.writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.catalog == nil {
		s.writeJSON(w, map[string]any{"sessions": []session.Record{}})
		return
	}
	records, err := s.catalog.List()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	if records == nil {
		records = []session.Record{}
	}
	s.writeJSON(w, map[string]any{"sessions": records})
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	command := r.FormValue("command")
	if command == "" {
		http.Error(w, "Missing command", http.StatusBadRequest)
		return
	}

	if err := s.mux.SendCommand(command); err != nil {
		http.Error(w, "Failed to send command", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Command sent successfully")
}
