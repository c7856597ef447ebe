package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────

var (
	// Gateway errors
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrTransport  = errors.New("transport failure")
	ErrAnalysis   = errors.New("leverage analysis unavailable")
	ErrAIService  = errors.New("AI service unavailable")

	// Simulation lifecycle errors
	ErrRunTerminal       = errors.New("simulation run is in a terminal state")
	ErrInvalidTransition = errors.New("invalid simulation run transition")
	ErrOutOfOrder        = errors.New("observation precedes the last recorded point")

	// Console errors
	ErrEmptyMessage = errors.New("chat message is empty")
	ErrChatBusy     = errors.New("analyst is still answering the previous message")
	ErrNotAnalyzed  = errors.New("leverage point not in the current analysis")
)

// ValidationError describes a rejected parameter write. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	ParameterID string
	Reason      string
}

func (e *ValidationError) Error() string {
	if e.ParameterID == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed for parameter %s: %s", e.ParameterID, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFound wraps ErrNotFound with the kind and id that were missing.
func NotFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

// Kind returns a short label for the error class, used in metrics and
// HTTP error bodies.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAnalysis):
		return "analysis"
	case errors.Is(err, ErrAIService):
		return "ai_service"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrRunTerminal), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrOutOfOrder):
		return "lifecycle"
	}
	return "internal"
}
