package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neonvoidvibes/align/internal/scoring"
	"github.com/neonvoidvibes/align/internal/store"
)

type messageJSON struct {
	ID          string     `json:"id"`
	Role        string     `json:"role"`
	Content     string     `json:"content,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Status      string     `json:"status,omitempty"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories":       s.registry.Categories(),
		"core_levers":      s.registry.CoreLevers(),
		"default_priority": s.registry.DefaultPriority(),
		"decay_factor":     s.registry.DecayFactor(),
		"window_days":      scoring.WindowDays,
		"time_zone":        s.registry.Location().String(),
	})
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role      string    `json:"role"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Role == "" {
		req.Role = store.RoleUser
	}
	switch req.Role {
	case store.RoleUser, store.RoleAssistant, store.RoleSystem:
	default:
		writeError(w, http.StatusBadRequest, "role must be user, assistant or system")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}

	msg, err := s.db.AddMessage(req.Role, req.Content, req.CreatedAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := messageJSON{ID: msg.ID, Role: msg.Role, CreatedAt: msg.CreatedAt, Status: "stored"}
	if !msg.UserAuthored() || s.queue == nil {
		writeJSON(w, http.StatusCreated, out)
		return
	}

	// The exchange never waits on analysis; the queue picks it up.
	if err := s.queue.Enqueue(msg.ID, msg.CreatedAt); err != nil {
		log.Printf("server: enqueue %s: %v", msg.ID, err)
		writeJSON(w, http.StatusCreated, out)
		return
	}
	out.Status = "queued"
	writeJSON(w, http.StatusAccepted, out)
}

func (s *Server) handlePendingMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.db.UnprocessedMessages(queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]messageJSON, len(msgs))
	for i, m := range msgs {
		out[i] = messageJSON{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(out),
		"messages": out,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "messageID")

	msg, err := s.db.GetMessage(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msg == nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis not running")
		return
	}
	if err := s.queue.Enqueue(msg.ID, msg.CreatedAt); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, messageJSON{
		ID:          msg.ID,
		Role:        msg.Role,
		CreatedAt:   msg.CreatedAt,
		ProcessedAt: msg.ProcessedAt,
		Status:      "queued",
	})
}

func (s *Server) handleLatestScore(w http.ResponseWriter, r *http.Request) {
	snap, err := s.db.LatestSnapshot()
	s.writeSnapshot(w, snap, err)
}

func (s *Server) handleDayScore(w http.ResponseWriter, r *http.Request) {
	day, ok := dayParam(w, r)
	if !ok {
		return
	}
	snap, err := s.db.SnapshotForDay(day)
	s.writeSnapshot(w, snap, err)
}

func (s *Server) writeSnapshot(w http.ResponseWriter, snap *scoring.Snapshot, err error) {
	if errors.Is(err, store.ErrNoSnapshot) {
		writeError(w, http.StatusNotFound, "no scores yet")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRecentScores(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.db.RecentSnapshots(queryLimit(r, scoring.WindowDays))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snaps == nil {
		snaps = []scoring.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(snaps),
		"snapshots": snaps,
	})
}

func (s *Server) handleRawValues(w http.ResponseWriter, r *http.Request) {
	day, ok := dayParam(w, r)
	if !ok {
		return
	}
	history, err := s.db.RawValuesForDays([]scoring.Day{day})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	values, ok := history[day]
	if !ok {
		writeError(w, http.StatusNotFound, "no values recorded for "+day.String())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"day":    day,
		"values": values,
	})
}

func dayParam(w http.ResponseWriter, r *http.Request) (scoring.Day, bool) {
	day, err := scoring.ParseDay(chi.URLParam(r, "day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return scoring.Day{}, false
	}
	return day, true
}

func queryLimit(r *http.Request, def int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			return n
		}
	}
	return def
}
