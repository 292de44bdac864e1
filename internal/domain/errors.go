package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures for the orchestrator's retry discipline.
type ErrorKind string

const (
	ErrTransient   ErrorKind = "transient"   // timeout, 5xx; retryable at next run
	ErrPermanent   ErrorKind = "permanent"   // bad locator, 4xx, malformed document
	ErrProvider    ErrorKind = "provider"    // embedding/generation backend failure
	ErrValidation  ErrorKind = "validation"  // generated text fails checks
	ErrPersistence ErrorKind = "persistence" // storage write failure
)

// Stage names the pipeline state in which an error occurred.
type Stage string

const (
	StageFetching      Stage = "fetching"
	StageDeduplicating Stage = "deduplicating"
	StageEmbedding     Stage = "embedding"
	StageMatching      Stage = "matching"
	StageGenerating    Stage = "generating"
	StagePersisting    Stage = "persisting"
)

// ClassifiedError carries a failure together with its kind, the stage it
// happened in, and (for per-source failures) the source involved.
type ClassifiedError struct {
	Kind     ErrorKind
	Stage    Stage
	SourceID string
	Err      error
}

func (e *ClassifiedError) Error() string {
	if e.SourceID != "" {
		return fmt.Sprintf("%s error at %s (source %s): %v", e.Kind, e.Stage, e.SourceID, e.Err)
	}
	return fmt.Sprintf("%s error at %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Classify wraps err with a kind and stage. Returns nil for a nil err.
func Classify(kind ErrorKind, stage Stage, sourceID string, err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Kind: kind, Stage: stage, SourceID: sourceID, Err: err}
}

// KindOf extracts the classification of err, or empty string when err was
// never classified.
func KindOf(err error) ErrorKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	return KindOf(err) == ErrTransient
}
