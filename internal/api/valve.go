package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-valve/internal/controller"
	"github.com/nerrad567/gray-logic-valve/internal/hass"
	"github.com/nerrad567/gray-logic-valve/internal/snapshot"
	"github.com/nerrad567/gray-logic-valve/internal/valve"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// setStateRequest is the body of PUT /valve/state. At least one of state
// and position must be present.
type setStateRequest struct {
	State    string `json:"state"`
	Position *int   `json:"position"`
	Force    bool   `json:"force"`
}

// historyEntry is one element of the history response.
type historyEntry struct {
	ID         int64  `json:"id"`
	State      string `json:"state"`
	Position   *int16 `json:"position,omitempty"`
	Source     string `json:"source"`
	RecordedAt string `json:"recorded_at"`
}

func (s *Server) handleGetValve(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.valve.View())
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	update, err := req.toUpdate()
	if err != nil {
		writeValidation(w, err.Error())
		return
	}

	if err := s.valve.Apply(r.Context(), update, snapshot.SourceAPI); err != nil {
		switch {
		case errors.Is(err, controller.ErrEmptyUpdate):
			writeBadRequest(w, "state or position is required")
		case errors.Is(err, valve.ErrPublishFailed), errors.Is(err, hass.ErrNoBroker):
			writeUnavailable(w, "publishing to the broker failed")
		case errors.Is(err, valve.ErrUnknownState),
			errors.Is(err, valve.ErrPositionUnset),
			errors.Is(err, valve.ErrPositionUnsupported):
			writeValidation(w, err.Error())
		default:
			s.logger.Error("applying update failed", "error", err)
			writeInternalError(w, "failed to apply update")
		}
		return
	}

	writeJSON(w, http.StatusOK, s.valve.View())
}

func (r setStateRequest) toUpdate() (controller.Update, error) {
	u := controller.Update{Force: r.Force}

	if r.State != "" {
		state, err := valve.ParseState(r.State)
		if err != nil {
			return u, err
		}
		if !state.IsKnown() {
			return u, valve.ErrUnknownState
		}
		u.State = state
	}
	if r.Position != nil {
		p := *r.Position
		if p < math.MinInt16 || p > math.MaxInt16 {
			return u, fmt.Errorf("position %d out of range", p)
		}
		u.Position = valve.PositionAt(int16(p))
	}
	return u, nil
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if s.history == nil {
		writeUnavailable(w, "state history unavailable")
		return
	}

	uid := s.valve.UniqueID()
	entries, err := s.history.History(r.Context(), uid, limit)
	if err != nil {
		s.logger.Error("loading history failed", "error", err)
		writeInternalError(w, "failed to load history")
		return
	}

	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		h := historyEntry{
			ID:         e.ID,
			State:      e.State.String(),
			Source:     e.Source,
			RecordedAt: e.RecordedAt.UTC().Format(time.RFC3339Nano),
		}
		if p, ok := e.Position.Value(); ok {
			h.Position = &p
		}
		out = append(out, h)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"unique_id": uid,
		"history":   out,
		"count":     len(out),
	})
}

// parseHistoryLimit parses the limit query parameter, defaulting to 50 and
// rejecting values outside 1..200.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", maxHistoryLimit)
	}
	return limit, nil
}
