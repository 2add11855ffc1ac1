package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error so transport layers can map it to a status
// without inspecting error strings.
type Code string

const (
	CodeBadRequest       Code = "bad_request"
	CodeUnsupportedMedia Code = "unsupported_media_type"
	CodePayloadTooLarge  Code = "payload_too_large"
	CodeNotFound         Code = "not_found"
	CodeConflict         Code = "conflict"
	CodeInvalidState     Code = "invalid_state"
	CodeUnavailable      Code = "unavailable"
	CodeInternal         Code = "internal_error"
)

// Error carries a code plus a human-readable description. The description of
// internal errors is never written to clients; see httputil.WriteError.
type Error struct {
	Code        Code
	Description string
	wrapped     error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New builds a domain error with the given code and description.
func New(code Code, description string) *Error {
	return &Error{Code: code, Description: description}
}

// Wrap attaches a cause to a domain error so `errors.Is/As` keep working
// through the chain.
func Wrap(code Code, description string, err error) *Error {
	return &Error{Code: code, Description: description, wrapped: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not originate in domain logic.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
