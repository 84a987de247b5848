package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for jobs that are absent, expired, or owned
	// by a different session. The three cases are indistinguishable so
	// that job existence never leaks across sessions.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a compare-and-swap transition whose expected
	// status no longer matches. Callers recover locally; the race always
	// resolves to a normal terminal status.
	ErrConflict = errors.New("status conflict")
	// ErrInvalidRequest rejects malformed generation parameters before a
	// job is created.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrProviderFailure marks errors from the external inference service.
	ErrProviderFailure = errors.New("provider failure")
	// ErrPresignUnsupported is returned by stores that cannot mint
	// time-limited URLs; callers stream the artifact instead.
	ErrPresignUnsupported = errors.New("presigned urls not supported")
)

func invalidRequest(cause string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, cause)
}
