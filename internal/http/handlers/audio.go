package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/middleware"
)

// Audio serves the finished artifact for a completed job. With an object
// store behind the app it redirects to a short-lived presigned URL so the
// bytes never pass through this process; with the filesystem store it
// streams the file directly. Ownership and expiry checks mirror JobStatus,
// so a 404 here is just as uninformative.
func (a *App) Audio(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	owner := middleware.SessionIDFromContext(r.Context())

	job, err := a.Ledger.Get(r.Context(), jobID, owner)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "audio not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("audio: get job")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	if job.Status != domain.JobStatusCompleted || job.ResultKey == "" {
		a.error(w, http.StatusNotFound, "not_found", "audio not found")
		return
	}

	url, err := a.Store.PresignedGet(r.Context(), job.ResultKey, a.Cfg.PresignTTL)
	switch {
	case err == nil:
		http.Redirect(w, r, url, http.StatusFound)
		return
	case errors.Is(err, domain.ErrPresignUnsupported):
		// fall through to streaming
	default:
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("audio: presign")
		a.error(w, http.StatusInternalServerError, "internal", "failed to sign audio url")
		return
	}

	reader, err := a.Store.Open(r.Context(), job.ResultKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "audio not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("audio: open artifact")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read audio")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		a.Logger.Warn().Err(err).Str("job_id", jobID).Msg("audio: stream interrupted")
	}
}
