package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// CancelReason is recorded as the error summary when a queued job is
// canceled by its owner. Cancellation is modeled as a terminal failure
// rather than a fifth status.
const CancelReason = "canceled by user"

// Terminal reports whether s admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether the lifecycle permits moving from one
// status to the next. Status only moves forward through
// queued -> processing -> {completed, failed}; queued -> failed covers
// cancellation.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusQueued:
		return to == JobStatusProcessing || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// Duration values accepted for a generation request, in seconds.
const (
	DurationShort  = 30
	DurationMedium = 60
	DurationLong   = 120
)

// MaxPromptLength bounds the prompt in runes after whitespace trimming.
const MaxPromptLength = 500

// GenerationRequest holds the validated generation parameters. The request
// is immutable once the job has been accepted.
type GenerationRequest struct {
	Prompt   string `json:"prompt"`
	Duration int    `json:"duration"`
	Genre    string `json:"genre,omitempty"`
}

// Validate normalizes and checks the request in place. It returns
// ErrInvalidRequest (wrapped with a cause) when the request cannot be
// accepted.
func (r *GenerationRequest) Validate() error {
	r.Prompt = strings.TrimSpace(r.Prompt)
	if r.Prompt == "" {
		return invalidRequest("prompt must not be empty")
	}
	if utf8.RuneCountInString(r.Prompt) > MaxPromptLength {
		return invalidRequest("prompt exceeds 500 characters")
	}
	switch r.Duration {
	case 0:
		r.Duration = DurationMedium
	case DurationShort, DurationMedium, DurationLong:
	default:
		return invalidRequest("duration must be 30, 60 or 120 seconds")
	}
	r.Genre = strings.TrimSpace(r.Genre)
	if utf8.RuneCountInString(r.Genre) > 100 {
		return invalidRequest("genre exceeds 100 characters")
	}
	return nil
}

// Job encapsulates the lifecycle of a single music generation request.
type Job struct {
	ID           string
	OwnerToken   string
	Status       JobStatus
	Request      GenerationRequest
	ResultKey    string
	ErrorSummary string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the job is past its retention window at the
// given instant. Expired jobs must be treated as not found by readers
// even when the record has not been purged yet.
func (j *Job) Expired(now time.Time) bool {
	return !now.Before(j.ExpiresAt)
}

// ArtifactKey returns the deterministic storage key for the job's audio.
func (j *Job) ArtifactKey() string {
	return j.ID + ".wav"
}

// TransitionFields carries the status-dependent fields set during a
// transition. ResultKey is set only when entering completed, ErrorSummary
// only when entering failed.
type TransitionFields struct {
	ResultKey    string
	ErrorSummary string
}
