package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across services. Wrapped errors are matched with
// errors.Is through eris chains.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
	ErrValidation = errors.New("validation failed")
)

// Summarization and cache outcomes.
var (
	ErrNothingToSummarize  = errors.New("nothing to summarize")
	ErrSummarizationFailed = errors.New("summarization failed")
	ErrCacheMiss           = errors.New("summary cache miss")
)

// ErrCollaborator marks a failure of an outside service (model API, scraper).
var ErrCollaborator = errors.New("collaborator failure")

// ValidationError carries a user-facing validation message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is allows errors.Is() to match against ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Is allows errors.Is() to match against ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound returns a NotFoundError for the given resource and id.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// PartialFailureError reports question ids that received no answer. The
// answers that were produced are returned alongside it.
type PartialFailureError struct {
	MissingIDs []string
	Cause      error
}

func (e *PartialFailureError) Error() string {
	msg := fmt.Sprintf("answers missing for %d question(s): %s", len(e.MissingIDs), strings.Join(e.MissingIDs, ", "))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PartialFailureError) Unwrap() error { return e.Cause }

// Invalid converts a field validation error into a ValidationError. A nil
// error stays nil.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Message: err.Error()}
}
