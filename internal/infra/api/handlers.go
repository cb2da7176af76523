package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"autoapply-agent/internal/domain"
	"autoapply-agent/internal/domain/model"
	"autoapply-agent/internal/infra/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

// startResponse acknowledges a start request. The schedule itself is
// installed asynchronously; poll the status route to observe it.
type startResponse struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

type agentResponse struct {
	UserID  string `json:"user_id"`
	Running bool   `json:"running"`
}

type applicationResponse struct {
	ID            string     `json:"id"`
	JobTitle      string     `json:"job_title"`
	CompanyName   string     `json:"company_name"`
	JobURL        string     `json:"job_url"`
	JobBoard      string     `json:"job_board"`
	Status        string     `json:"status"`
	MatchScore    *int       `json:"match_score,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	AppliedAt     *time.Time `json:"applied_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type logResponse struct {
	ID            string         `json:"id"`
	Action        string         `json:"action"`
	Status        string         `json:"status"`
	Message       string         `json:"message"`
	Stage         string         `json:"stage,omitempty"`
	ScreenshotRef *string        `json:"screenshot_ref,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Msg("request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

func pathUserID(r *http.Request) (string, bool) {
	id := chi.URLParam(r, "userID")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// startAgent accepts the request and runs the first cycle in the background.
func (s *Server) startAgent(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "user id must be a uuid")
		return
	}
	s.starts.Add(1)
	go func() {
		defer s.starts.Done()
		if err := s.agents.Start(s.base, userID); err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("agent start failed")
		}
	}()
	writeJSON(w, http.StatusAccepted, startResponse{UserID: userID, Status: "accepted"})
}

func (s *Server) stopAgent(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "user id must be a uuid")
		return
	}
	if err := s.agents.Stop(userID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agentResponse{UserID: userID, Running: false})
}

func (s *Server) agentStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "user id must be a uuid")
		return
	}
	writeJSON(w, http.StatusOK, agentResponse{UserID: userID, Running: s.agents.IsRunning(userID)})
}

func (s *Server) listApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := s.apps.ListForUser(r.Context(), logging.UserID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]applicationResponse, 0, len(apps))
	for _, a := range apps {
		items = append(items, toApplicationResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) listApplicationLogs(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(appID); err != nil {
		writeError(w, http.StatusBadRequest, "application id must be a uuid")
		return
	}
	logs, err := s.apps.ListLogsForUser(r.Context(), logging.UserID(r.Context()), appID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]logResponse, 0, len(logs))
	for _, l := range logs {
		item := logResponse{
			ID:            l.ID,
			Action:        string(l.Action),
			Status:        string(l.Status),
			Message:       l.Message,
			ScreenshotRef: l.ScreenshotRef,
			Details:       l.Details,
			CreatedAt:     l.CreatedAt,
		}
		if st, ok := model.StageOf(l.Action); ok {
			item.Stage = st.String()
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"stage": model.FurthestStage(logs).String(),
	})
}

func toApplicationResponse(a *model.Application) applicationResponse {
	return applicationResponse{
		ID:            a.ID,
		JobTitle:      a.JobTitle,
		CompanyName:   a.CompanyName,
		JobURL:        a.JobURL,
		JobBoard:      a.JobBoard,
		Status:        string(a.Status),
		MatchScore:    a.MatchScore,
		FailureReason: a.FailureReason,
		AppliedAt:     a.AppliedAt,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}
