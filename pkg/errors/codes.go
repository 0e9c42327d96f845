package errors

import "net/http"

// Code is the stable, client-visible error identifier.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMITED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code surfaces over HTTP. Retryable codes tell clients
// that the same request may succeed later.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

// MetadataFor falls back to the internal error entry for unknown codes.
func MetadataFor(code Code) Metadata {
	switch code {
	case CodeValidation:
		return Metadata{http.StatusBadRequest, false, "validation failed", true}
	case CodeUnauthorized:
		return Metadata{http.StatusUnauthorized, false, "authentication required", false}
	case CodeForbidden:
		return Metadata{http.StatusForbidden, false, "access denied", false}
	case CodeNotFound:
		return Metadata{http.StatusNotFound, false, "resource not found", false}
	case CodeConflict:
		return Metadata{http.StatusConflict, false, "resource is not in the required state", true}
	case CodeStateConflict:
		return Metadata{http.StatusConflict, false, "state transition disallowed", true}
	case CodeIdempotency:
		return Metadata{http.StatusConflict, false, "idempotency key reused", true}
	case CodeRateLimit:
		return Metadata{http.StatusTooManyRequests, false, "rate limit exceeded", false}
	case CodeDependency:
		return Metadata{http.StatusServiceUnavailable, true, "dependency unavailable", true}
	default:
		return Metadata{http.StatusInternalServerError, true, "internal server error", false}
	}
}
