// Package api exposes the dashboard HTTP surface: live entity and alert
// views, zone data, trail queries, playback control and the websocket feed.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kudu-data/corridor.watch/internal/alert"
	"github.com/kudu-data/corridor.watch/internal/config"
	"github.com/kudu-data/corridor.watch/internal/db"
	"github.com/kudu-data/corridor.watch/internal/engine"
	"github.com/kudu-data/corridor.watch/internal/monitoring"
	"github.com/kudu-data/corridor.watch/internal/replay"
	"github.com/kudu-data/corridor.watch/internal/track"
	"github.com/kudu-data/corridor.watch/internal/units"
)

// ANSI escape codes for request log colouring
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server serves the dashboard API on top of the tracking engine.
type Server struct {
	tracker *engine.Tracker
	store   *db.DB // may be nil when running without persistence
	playbck *replay.Engine
	cfg     *config.TuningConfig
	units   string

	hub *Hub
}

// NewServer wires the API to its collaborators. units selects the speed unit
// for outbound payloads; speeds are stored in km/h.
func NewServer(tracker *engine.Tracker, store *db.DB, playback *replay.Engine, cfg *config.TuningConfig, speedUnits string) *Server {
	if !units.IsValid(speedUnits) {
		speedUnits = units.KMH
	}
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	s := &Server{
		tracker: tracker,
		store:   store,
		playbck: playback,
		cfg:     cfg,
		units:   speedUnits,
	}
	s.hub = NewHub(tracker)
	return s
}

// Hub returns the websocket fan-out hub for lifecycle management.
func (s *Server) Hub() *Hub { return s.hub }

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
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration for every request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux registers all routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/entities", s.listEntities)
	mux.HandleFunc("/api/entities/", s.entitySubroutes)
	mux.HandleFunc("/api/alerts", s.listAlerts)
	mux.HandleFunc("/api/alerts/", s.alertSubroutes)
	mux.HandleFunc("/api/zones", s.listZones)
	mux.HandleFunc("/api/replay/load", s.replayLoad)
	mux.HandleFunc("/api/replay/play", s.replayPlay)
	mux.HandleFunc("/api/replay/pause", s.replayPause)
	mux.HandleFunc("/api/replay/stop", s.replayStop)
	mux.HandleFunc("/api/replay/status", s.replayStatus)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/live", s.hub.ServeWS)
	mux.HandleFunc("/healthz", s.healthz)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("api: encoding response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// convertEntitySpeed rewrites the speed fields into the server's outbound
// unit.
func (s *Server) convertEntitySpeed(e engine.ClassifiedEntity) engine.ClassifiedEntity {
	e.SpeedKmh = units.ConvertSpeed(e.SpeedKmh, s.units)
	return e
}

func (s *Server) listEntities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var entities []engine.ClassifiedEntity
	if kind := track.Kind(r.URL.Query().Get("kind")); kind != "" {
		if !kind.IsValid() {
			s.writeJSONError(w, http.StatusBadRequest, "invalid 'kind' parameter")
			return
		}
		entities = s.tracker.EntitiesByKind(kind)
	} else {
		entities = s.tracker.Entities()
	}

	for i := range entities {
		entities[i] = s.convertEntitySpeed(entities[i])
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"entities": entities,
		"units":    s.units,
	})
}

// entitySubroutes handles /api/entities/{id}, /api/entities/{id}/trail and
// /api/entities/{id}/stats.
func (s *Server) entitySubroutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, rest := splitEntityPath(r.URL.Path)
	if id == "" {
		s.writeJSONError(w, http.StatusNotFound, "missing entity id")
		return
	}

	switch rest {
	case "":
		e, ok := s.tracker.Entity(id)
		if !ok {
			s.writeJSONError(w, http.StatusNotFound, "unknown entity")
			return
		}
		s.writeJSON(w, http.StatusOK, s.convertEntitySpeed(e))
	case "trail":
		s.entityTrail(w, r, id)
	case "stats":
		s.entityStats(w, r, id)
	default:
		s.writeJSONError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) entityTrail(w http.ResponseWriter, r *http.Request, id string) {
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotImplemented, "persistence disabled")
		return
	}

	hours, err := intParam(r, "hours", 24)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid 'hours' parameter")
		return
	}
	maxPoints, err := intParam(r, "max_points", 0)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid 'max_points' parameter")
		return
	}

	trail, err := s.store.Trail(id, hours, maxPoints)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "trail query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, trail)
}

func (s *Server) entityStats(w http.ResponseWriter, r *http.Request, id string) {
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotImplemented, "persistence disabled")
		return
	}

	hours, err := intParam(r, "hours", 24)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid 'hours' parameter")
		return
	}

	stats, err := s.store.Stats(id, hours)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "stats query failed")
		return
	}
	stats.SpeedP50 = units.ConvertSpeed(stats.SpeedP50, s.units)
	stats.SpeedP85 = units.ConvertSpeed(stats.SpeedP85, s.units)
	stats.SpeedP98 = units.ConvertSpeed(stats.SpeedP98, s.units)
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filter := alert.Status(r.URL.Query().Get("status"))
	if filter != "" && !filter.IsValid() {
		s.writeJSONError(w, http.StatusBadRequest, "invalid 'status' parameter")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"alerts": s.tracker.Alerts(filter),
		"counts": s.tracker.AlertCounts(),
	})
}

// alertSubroutes handles POST /api/alerts/{id}/status.
func (s *Server) alertSubroutes(w http.ResponseWriter, r *http.Request) {
	id, rest := splitAlertPath(r.URL.Path)
	if id == "" || rest != "status" {
		s.writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Status alert.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !body.Status.IsValid() {
		s.writeJSONError(w, http.StatusBadRequest, "unknown status")
		return
	}

	a, err := s.tracker.TransitionAlert(r.Context(), id, body.Status)
	switch {
	case errors.Is(err, alert.ErrUnknownAlert):
		s.writeJSONError(w, http.StatusNotFound, "unknown alert")
	case errors.Is(err, alert.ErrInvalidTransition):
		s.writeJSONError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.writeJSONError(w, http.StatusBadGateway, "upstream transition failed")
	default:
		s.writeJSON(w, http.StatusOK, a)
	}
}

func (s *Server) listZones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"zones": s.tracker.Zones()})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.cfg)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"entities": len(s.tracker.Entities()),
	})
}

// splitEntityPath extracts the id and trailing segment from
// /api/entities/{id}[/{rest}].
func splitEntityPath(path string) (id, rest string) {
	return splitPrefixed(path, "/api/entities/")
}

func splitAlertPath(path string) (id, rest string) {
	return splitPrefixed(path, "/api/alerts/")
}

func splitPrefixed(path, prefix string) (id, rest string) {
	if len(path) <= len(prefix) {
		return "", ""
	}
	tail := path[len(prefix):]
	for i := 0; i < len(tail); i++ {
		if tail[i] == '/' {
			return tail[:i], tail[i+1:]
		}
	}
	return tail, ""
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}
