package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/middleware"
)

type jobStatusResponse struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	AudioURL  string    `json:"audio_url,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// JobStatus reports the state of a job to its owner. A job that is absent,
// owned by another session, or past its retention window all look the same
// from the outside: 404.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	owner := middleware.SessionIDFromContext(r.Context())

	job, err := a.Ledger.Get(r.Context(), jobID, owner)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("jobs: get")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	resp := jobStatusResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt,
		ExpiresAt: job.ExpiresAt,
	}
	switch job.Status {
	case domain.JobStatusCompleted:
		resp.AudioURL = "/api/audio/" + job.ID
	case domain.JobStatusFailed:
		resp.Error = job.ErrorSummary
	}
	a.json(w, http.StatusOK, resp)
}

// CancelJob cancels a job that has not been picked up yet. Once a worker
// claims it the race is lost and the caller gets a 409.
func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	owner := middleware.SessionIDFromContext(r.Context())

	_, err := a.Ledger.Cancel(r.Context(), jobID, owner)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", "job is no longer cancelable")
	default:
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("jobs: cancel")
		a.error(w, http.StatusInternalServerError, "internal", "failed to cancel job")
	}
}
