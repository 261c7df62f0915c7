package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrConfiguration = errors.New("invalid configuration")

	// ErrFetch covers source-control API failures. A fetch failure is fatal
	// for the whole run: metrics are never computed from a partial window.
	ErrFetch = errors.New("pull request fetch failed")

	// ErrSubmission covers GRC platform failures. Locally stored evidence
	// stays valid when submission fails.
	ErrSubmission = errors.New("evidence submission failed")

	// ErrCacheMiss signals an absent or expired cache entry. Callers treat
	// it as a normal condition, never as a failure.
	ErrCacheMiss = errors.New("cache miss")
)

// FetchError carries enough context about a failed pull request fetch for an
// operator to act on: which repository, which window, and the cause.
type FetchError struct {
	Repository string
	Days       int
	Cause      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching merged pull requests for '%s' (last %d days): %v", e.Repository, e.Days, e.Cause)
}
func (e *FetchError) Unwrap() error        { return e.Cause }
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// SubmissionError carries the GRC platform's response for a rejected or
// failed evidence submission.
type SubmissionError struct {
	StatusCode int
	Body       string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("GRC platform rejected evidence: status %d: %s", e.StatusCode, e.Body)
}
func (e *SubmissionError) Is(target error) bool { return target == ErrSubmission }
