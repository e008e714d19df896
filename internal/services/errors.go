package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks preflight rejections: the input was never admitted
	// and no job record exists for it.
	ErrValidation = errors.New("validation rejected")
	// ErrNormalization marks audio normalization failures (unreadable,
	// corrupt, or unsupported input).
	ErrNormalization = errors.New("normalization error")
	// ErrEngine marks transcription/diarization engine failures (model load,
	// out of memory, credential rejection for gated models).
	ErrEngine = errors.New("engine error")
	// ErrPersistence marks queue state read/write failures.
	ErrPersistence = errors.New("persistence error")
	// ErrConfiguration marks unusable configuration discovered at runtime.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrEngine
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short string classification for a wrapped error, suitable
// for structured log fields.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNormalization):
		return "normalization"
	case errors.Is(err, ErrEngine):
		return "engine"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
