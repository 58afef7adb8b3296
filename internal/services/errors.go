package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrReferenceMissing marks records that point at an unknown venue.
	ErrReferenceMissing = errors.New("reference missing")
	// ErrExternalService marks timeouts, network failures and non-2xx responses.
	ErrExternalService = errors.New("external service unavailable")
	// ErrMalformedResponse marks external payloads that do not decode or violate their schema.
	ErrMalformedResponse = errors.New("malformed external response")
	// ErrPersistenceConflict marks uniqueness violations in the canonical store.
	ErrPersistenceConflict = errors.New("persistence conflict")
	ErrValidation          = errors.New("validation error")
	ErrConfiguration       = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalService
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short label for the marker carried by err, for logs and summaries.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrReferenceMissing):
		return "reference_missing"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPersistenceConflict):
		return "persistence_conflict"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrExternalService):
		return "external_service"
	default:
		return "internal"
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
