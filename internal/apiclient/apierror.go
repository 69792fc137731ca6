package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// DefaultValidationPlaceholder replaces field errors that carry neither loc nor msg.
const DefaultValidationPlaceholder = "Validation error"

// APIError is returned for every failed JSON call: one per failed request.
type APIError struct {
	// Status is the HTTP status code, or 0 when no response was received.
	Status int
	// Detail is the human-readable message: the backend's detail string, the reduced
	// field-error list, or a synthesized fallback.
	Detail string
	// OriginalError is the parsed error body, kept for inspection. Empty for transport failures.
	OriginalError map[string]any
	// Err is the transport error for Status 0.
	Err error

	backend BackendError
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Detail
}

// Unwrap returns the transport error, if any.
func (e *APIError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status, 0 for transport failures.
func (e *APIError) StatusCode() int {
	return e.Status
}

// IsUnauthorized reports a 401.
func (e *APIError) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// IsNotFound reports a 404.
func (e *APIError) IsNotFound() bool {
	return e.Status == http.StatusNotFound
}

// IsValidationError reports a 422 or a body carrying per-field errors.
func (e *APIError) IsValidationError() bool {
	return e.Status == http.StatusUnprocessableEntity || e.backend.Kind == KindFieldErrors
}

// ValidationErrors returns the per-field errors from the body, if any.
func (e *APIError) ValidationErrors() []FieldError {
	if e.backend.Kind != KindFieldErrors {
		return nil
	}
	out := make([]FieldError, len(e.backend.Errors))
	copy(out, e.backend.Errors)
	return out
}

// ErrorCode returns the backend's machine-readable error code (`code` or `error_code`), if any.
func (e *APIError) ErrorCode() string {
	for _, key := range []string{"code", "error_code"} {
		if v, ok := e.OriginalError[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// BackendErrorKind discriminates the shapes the backend uses for `detail`.
type BackendErrorKind int

const (
	// KindNone means the body had no usable detail.
	KindNone BackendErrorKind = iota
	// KindSimple means detail was a plain string.
	KindSimple
	// KindFieldErrors means detail was a list of per-field validation errors.
	KindFieldErrors
)

// FieldError is one entry of a validation-error list.
type FieldError struct {
	Loc  []any  `json:"loc,omitempty"`
	Msg  string `json:"msg,omitempty"`
	Type string `json:"type,omitempty"`
}

// Field returns the last loc segment, e.g. "birthdate" for ["body","students",0,"birthdate"].
func (f FieldError) Field() string {
	if len(f.Loc) == 0 {
		return ""
	}
	switch v := f.Loc[len(f.Loc)-1].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// BackendError is the error body decoded once at the boundary.
type BackendError struct {
	Kind   BackendErrorKind
	Detail string
	Errors []FieldError
}

// decodeBackendError parses an error body. Unparseable bodies are treated as `{}`.
func decodeBackendError(body []byte) (BackendError, map[string]any) {
	raw := map[string]any{}
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		raw = map[string]any{}
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return BackendError{Kind: KindNone}, raw
	}

	var detail string
	if err := json.Unmarshal(envelope.Detail, &detail); err == nil {
		return BackendError{Kind: KindSimple, Detail: detail}, raw
	}

	var items []json.RawMessage
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		errs := make([]FieldError, 0, len(items))
		for _, item := range items {
			var fe FieldError
			// Entries that are not objects still count, as placeholders.
			_ = json.Unmarshal(item, &fe)
			errs = append(errs, fe)
		}
		return BackendError{Kind: KindFieldErrors, Errors: errs}, raw
	}

	return BackendError{Kind: KindNone}, raw
}

// message reduces a decoded body to the single human-readable detail.
func (b BackendError) message(status int, placeholder string) string {
	switch b.Kind {
	case KindSimple:
		if b.Detail != "" {
			return b.Detail
		}
	case KindFieldErrors:
		parts := make([]string, 0, len(b.Errors))
		for _, fe := range b.Errors {
			field := fe.Field()
			switch {
			case field != "" && fe.Msg != "":
				parts = append(parts, field+": "+fe.Msg)
			case field != "":
				parts = append(parts, field+": "+placeholder)
			case fe.Msg != "":
				parts = append(parts, fe.Msg)
			default:
				parts = append(parts, placeholder)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	return fmt.Sprintf("HTTP error! status: %d", status)
}

func newHTTPError(status int, body []byte, placeholder string) *APIError {
	backend, raw := decodeBackendError(body)
	return &APIError{
		Status:        status,
		Detail:        backend.message(status, placeholder),
		OriginalError: raw,
		backend:       backend,
	}
}

func newTransportError(err error) *APIError {
	return &APIError{
		Status: 0,
		Detail: err.Error(),
		Err:    err,
	}
}
