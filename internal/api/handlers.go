package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

const defaultJournalLimit = 50

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	st := s.status.Status()
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: s.uptime(),
		Feedback:      st.Feedback,
		Playing:       st.Playing,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:            s.status.Status(),
		Feedbacks:         []string{},
		ConfigFingerprint: s.config.Fingerprint,
		UptimeSeconds:     s.uptime(),
	}
	for _, e := range s.catalog.All() {
		resp.Feedbacks = append(resp.Feedbacks, e.Name)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFeedbacks(w http.ResponseWriter, r *http.Request) {
	all := s.catalog.All()
	out := make([]FeedbackInfo, 0, len(all))
	for _, e := range all {
		out = append(out, FeedbackInfo{
			Name:        e.Name,
			Description: e.Description,
			Source:      string(e.Source),
			Version:     e.Version,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// handleJournal handles GET /journal?limit=N.
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}

	limit := defaultJournalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read journal", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	respondJSON(w, http.StatusOK, JournalResponse{Entries: entries})
}

func (s *Server) uptime() int64 {
	return int64(time.Since(s.startedAt).Seconds())
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
