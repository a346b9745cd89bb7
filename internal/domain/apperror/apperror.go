package apperror

import (
	"errors"
	"strings"
)

// Code classifies a failure for callers and the HTTP layer.
type Code string

const (
	CodeValidation           Code = "VALIDATION_ERROR"
	CodeInvalidOperation     Code = "INVALID_OPERATION"
	CodeInvalidConfiguration Code = "INVALID_CONFIGURATION"
	CodeNotFound             Code = "RESOURCE_NOT_FOUND"
	CodeForbidden            Code = "FORBIDDEN"
	CodeNotAvailable         Code = "RESOURCE_NOT_AVAILABLE"
	CodeUnexpected           Code = "UNEXPECTED_ERROR"
)

// Entry is a single violation.
type Entry struct {
	Code    Code   `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e Entry) String() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

// Error carries one or more violations collected for a single request.
type Error struct {
	Entries []Entry `json:"errors"`
}

// New returns an error with a single entry.
func New(code Code, message string) *Error {
	return &Error{Entries: []Entry{{Code: code, Message: message}}}
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Entries))
	for _, entry := range e.Entries {
		parts = append(parts, entry.String())
	}
	return strings.Join(parts, "; ")
}

// Code returns the code of the first entry.
func (e *Error) Code() Code {
	if len(e.Entries) == 0 {
		return CodeUnexpected
	}
	return e.Entries[0].Code
}

// Has reports whether any entry carries the code.
func (e *Error) Has(code Code) bool {
	for _, entry := range e.Entries {
		if entry.Code == code {
			return true
		}
	}
	return false
}

// Validation accumulates entries instead of failing on the first one.
type Validation struct {
	entries []Entry
}

func (v *Validation) Add(code Code, message string) {
	v.entries = append(v.entries, Entry{Code: code, Message: message})
}

func (v *Validation) HasErrors() bool {
	return len(v.entries) > 0
}

// Err returns nil when nothing was collected.
func (v *Validation) Err() error {
	if len(v.entries) == 0 {
		return nil
	}
	entries := make([]Entry, len(v.entries))
	copy(entries, v.entries)
	return &Error{Entries: entries}
}

// CodeOf classifies any error; unknown errors are UNEXPECTED_ERROR.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return CodeUnexpected
}

// Entries flattens err into entries for rendering.
func Entries(err error) []Entry {
	if appErr, ok := err.(*Error); ok {
		return appErr.Entries
	}
	return []Entry{{Code: CodeOf(err), Message: err.Error()}}
}
