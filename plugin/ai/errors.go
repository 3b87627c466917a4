package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is the cause of a GenerationError for a reply without any text.
var ErrEmptyResponse = errors.New("empty response")

// GenerationError reports a failed call to the generation service.
type GenerationError struct {
	Provider string
	Model    string
	// Timeout is set when the call ran out of time.
	Timeout bool
	Cause   error
}

func (e *GenerationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s/%s generation timed out: %v", e.Provider, e.Model, e.Cause)
	}
	return fmt.Sprintf("%s/%s generation failed: %v", e.Provider, e.Model, e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// AsGenerationError returns the GenerationError in err's chain, if any.
func AsGenerationError(err error) (*GenerationError, bool) {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr, true
	}
	return nil, false
}

func (s *llmService) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if genErr, ok := AsGenerationError(err); ok {
		return genErr
	}
	return &GenerationError{
		Provider: s.cfg.Provider,
		Model:    s.cfg.Model,
		Timeout:  errors.Is(err, context.DeadlineExceeded),
		Cause:    err,
	}
}
