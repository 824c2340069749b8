package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryRequest   Category = "request"
	CategoryRender    Category = "render"
	CategoryHydration Category = "hydration"
	CategoryConfig    Category = "config"
	CategoryStorage   Category = "storage"
	CategoryCLI       Category = "cli"
)

// SSRError is a structured error with a code, an explanation and a fix hint.
type SSRError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Fields carries request-specific values (path, component name, ...)
	// that are useful in logs.
	Fields map[string]any

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *SSRError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *SSRError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *SSRError) WithSuggestion(s string) *SSRError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *SSRError) WithDetail(d string) *SSRError {
	e.Detail = d
	return e
}

// With attaches a key/value pair reported alongside the error.
func (e *SSRError) With(key string, value any) *SSRError {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// Wrap wraps another error.
func (e *SSRError) Wrap(err error) *SSRError {
	e.Wrapped = err
	return e
}

// LogAttrs returns the error as slog key/value pairs.
func (e *SSRError) LogAttrs() []any {
	attrs := []any{"code", e.Code, "category", string(e.Category)}
	for k, v := range e.Fields {
		attrs = append(attrs, k, v)
	}
	if e.Wrapped != nil {
		attrs = append(attrs, "error", e.Wrapped.Error())
	}
	return attrs
}

// New creates an SSRError from a registered error code.
func New(code string) *SSRError {
	template, ok := registry[code]
	if !ok {
		return &SSRError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &SSRError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new SSRError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *SSRError {
	return &SSRError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in an SSRError. Errors that already carry
// an SSRError in their chain are returned unchanged.
func FromError(err error, code string) error {
	if err == nil {
		return nil
	}
	var se *SSRError
	if stderrors.As(err, &se) {
		return err
	}
	return New(code).Wrap(err)
}

// Code returns the code of the first SSRError in err's chain, or "".
func Code(err error) string {
	var se *SSRError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Is reports whether err carries an SSRError with the given code.
func Is(err error, code string) bool {
	for err != nil {
		var se *SSRError
		if !stderrors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Wrapped
	}
	return false
}
