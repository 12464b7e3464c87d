package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"telegram-media-courier/internal/domain"
	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/adapter"
	"telegram-media-courier/internal/usecase"
)

type loginRequest struct {
	Key string `json:"key"`
}

// loginHandler exchanges the configured API key for a short-lived admin JWT,
// set both as a cookie and returned in the body for header use.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.apiKey == "" {
		s.log.Error().Msg("admin api key is not configured")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Key), []byte(s.apiKey)) != 1 {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "Failed to mint token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Token string `json:"token"`
	}{Token: token})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// statsHandler serves the 24h job/user counters.
func statsHandler(statsUC usecase.StatsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := statsUC.Daily(r.Context())
		if err != nil {
			http.Error(w, "Failed to get stats", http.StatusInternalServerError)
			return
		}

		response := struct {
			Since    time.Time                `json:"since"`
			Jobs     int                      `json:"jobs"`
			ByStatus map[model.JobStatus]int  `json:"jobs_by_status"`
			Users    int                      `json:"users"`
		}{
			Since:    stats.Since,
			Jobs:     stats.Total,
			ByStatus: stats.ByStatus,
			Users:    stats.UserCount,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// jobGetHandler serves the per-file report for /api/v1/jobs/{id}.
func jobGetHandler(jobUC usecase.JobUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/"), "/")
		if id == "" {
			http.Error(w, "Job ID is required", http.StatusBadRequest)
			return
		}

		report, err := jobUC.GetReport(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "Failed to get job report", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(report)
	}
}

// sessionsListHandler lists one owner's sessions, payloads excluded.
func sessionsListHandler(sessionUC usecase.SessionUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.URL.Query().Get("owner")
		if owner == "" {
			http.Error(w, "owner query parameter is required", http.StatusBadRequest)
			return
		}

		summaries, err := sessionUC.List(r.Context(), owner)
		if err != nil {
			http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
			return
		}

		response := struct {
			Data []model.SessionSummary `json:"data"`
		}{Data: summaries}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

type sessionSubmitRequest struct {
	Owner   string `json:"owner"`
	Source  string `json:"source"`
	Payload string `json:"payload"`
}

// sessionSubmitHandler stores a credential payload on behalf of an owner and
// validates it immediately. The response carries the summary only, never the
// payload.
func sessionSubmitHandler(sessionUC usecase.SessionUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionSubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Owner == "" || req.Payload == "" {
			http.Error(w, "owner and payload are required", http.StatusBadRequest)
			return
		}
		src := model.SessionSource(req.Source)
		if req.Source == "" {
			src = model.SessionSourceFile
		}

		sessionUC.BeginSubmission(req.Owner)
		sess, err := sessionUC.Submit(r.Context(), req.Owner, src, req.Payload)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrSessionInvalid) {
				http.Error(w, "Invalid session submission", http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to store session", http.StatusInternalServerError)
			return
		}

		validated, err := sessionUC.Validate(r.Context(), sess.ID)
		if err != nil && !errors.Is(err, domain.ErrSessionInvalid) {
			http.Error(w, "Validation failed upstream", http.StatusBadGateway)
			return
		}
		if validated != nil {
			sess = validated
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(sess.Summary())
	}
}

// sessionRevokeHandler deletes a stored session and its credentials.
func sessionRevokeHandler(sessionUC usecase.SessionUseCase, id string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessionUC.Revoke(r.Context(), id); err != nil {
			http.Error(w, "Failed to revoke session", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type cleanupRequest struct {
	OlderThanHours int `json:"older_than_hours"`
}

// stagingCleanupHandler sweeps staged content older than the requested age.
func stagingCleanupHandler(staging adapter.StagingStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		req := cleanupRequest{OlderThanHours: 24}
		if r.Body != nil && r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
		}
		if req.OlderThanHours < 0 {
			http.Error(w, "older_than_hours must be non-negative", http.StatusBadRequest)
			return
		}

		cutoff := time.Now().Add(-time.Duration(req.OlderThanHours) * time.Hour)
		report, err := staging.Cleanup(r.Context(), cutoff)
		if err != nil {
			http.Error(w, "Cleanup failed", http.StatusInternalServerError)
			return
		}

		response := struct {
			RemovedCount int   `json:"removed_count"`
			BytesFreed   int64 `json:"bytes_freed"`
		}{RemovedCount: report.RemovedCount, BytesFreed: report.BytesFreed}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}
