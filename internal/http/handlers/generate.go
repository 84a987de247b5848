package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"server/internal/domain"
	"server/internal/middleware"
)

type generateResponse struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	EstimatedWait int    `json:"estimated_wait"`
}

// Generate accepts a generation request, records it as a queued job owned
// by the caller's session, and hands the job ID to the queue. The ledger
// row is written before the enqueue so a poll can never miss a job the
// queue already delivered.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	owner := middleware.SessionIDFromContext(r.Context())
	if owner == "" {
		a.error(w, http.StatusInternalServerError, "internal", "missing session")
		return
	}

	var req domain.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusUnprocessableEntity, "invalid_request", "invalid payload")
		return
	}
	if err := req.Validate(); err != nil {
		a.error(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
		return
	}

	job, err := a.Ledger.Create(r.Context(), owner, req)
	if err != nil {
		a.Logger.Error().Err(err).Msg("generate: create job")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	if err := a.Queue.Enqueue(r.Context(), job.ID); err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("generate: enqueue")
		if _, ferr := a.Ledger.Transition(r.Context(), job.ID, domain.JobStatusQueued, domain.JobStatusFailed,
			domain.TransitionFields{ErrorSummary: "queue unavailable"}); ferr != nil && !errors.Is(ferr, domain.ErrConflict) {
			a.Logger.Error().Err(ferr).Str("job_id", job.ID).Msg("generate: record enqueue failure")
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}

	a.json(w, http.StatusAccepted, generateResponse{
		JobID:         job.ID,
		Status:        string(job.Status),
		EstimatedWait: a.Cfg.EstimatedWait,
	})
}
