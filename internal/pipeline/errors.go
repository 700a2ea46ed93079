package pipeline

import "net/http"

// Kind classifies pipeline failures. The HTTP mapping lives in
// StatusCode, decoupled from control flow so it can be tested alone.
type Kind int

const (
	KindBadRequest Kind = iota
	KindUnsupportedFormat
	KindPayloadTooLarge
	KindDecode
	KindModelUnavailable
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindDecode:
		return "decode_error"
	case KindModelUnavailable:
		return "model_unavailable"
	default:
		return "internal"
	}
}

// StatusCode maps an error kind to its HTTP status. Decode failures are
// client data errors, not server faults, hence 422.
func StatusCode(k Kind) int {
	switch k {
	case KindBadRequest, KindUnsupportedFormat:
		return http.StatusBadRequest
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindDecode:
		return http.StatusUnprocessableEntity
	case KindModelUnavailable, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Stable user-facing reason strings. These are part of the API contract
// and never carry internal detail.
const (
	ReasonNoFile           = "No file provided"
	ReasonBadExtension     = "Unsupported file extension"
	ReasonTooLarge         = "File too large"
	ReasonDecodeFailed     = "Audio decode failed"
	ReasonModelUnavailable = "Model initialization failed"
	ReasonInternal         = "Internal Server Error"
)

// Error carries the classification, the stable reason shown to callers,
// and the wrapped cause that only ever reaches the logs.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}
