package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kudu-data/corridor.watch/internal/replay"
)

func (s *Server) replayLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotImplemented, "persistence disabled")
		return
	}

	var body struct {
		EntityID string `json:"entity_id"`
		Hours    int    `json:"hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.EntityID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Hours <= 0 {
		body.Hours = 24
	}

	trail, err := s.store.Trail(body.EntityID, body.Hours, 0)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "trail query failed")
		return
	}

	if err := s.playbck.Load(trail); err != nil {
		if errors.Is(err, replay.ErrEmptyTrail) {
			s.writeJSONError(w, http.StatusNotFound, "no recorded trail for entity")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.playbck.Status())
}

func (s *Server) replayPlay(w http.ResponseWriter, r *http.Request) {
	s.replayControl(w, r, s.playbck.Play)
}

func (s *Server) replayPause(w http.ResponseWriter, r *http.Request) {
	s.replayControl(w, r, s.playbck.Pause)
}

func (s *Server) replayStop(w http.ResponseWriter, r *http.Request) {
	s.replayControl(w, r, func() error {
		s.playbck.Stop()
		return nil
	})
}

func (s *Server) replayControl(w http.ResponseWriter, r *http.Request, op func() error) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := op(); err != nil {
		if errors.Is(err, replay.ErrNotPlayable) {
			s.writeJSONError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.playbck.Status())
}

func (s *Server) replayStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.playbck.Status())
}
