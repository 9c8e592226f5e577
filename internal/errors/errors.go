package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind identifies the category of a pipeline error. The orchestrator
// surfaces the kind unchanged to callers and logs.
type Kind string

const (
	KindFormat         Kind = "format"
	KindSchema         Kind = "schema"
	KindMetric         Kind = "metric"
	KindClassification Kind = "classification"
	KindExport         Kind = "export"
	KindConfig         Kind = "config"
)

// Error is a pipeline error carrying its kind and the component that
// raised it. It wraps the underlying cause so errors.Is/As keep working.
type Error struct {
	Kind      Kind   `json:"kind"`
	Component string `json:"component"`
	Message   string `json:"message"`
	Cause     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "unknown pipeline error"
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, e.Component, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Component, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New creates a pipeline error with the given kind and component.
func New(kind Kind, component, message string) *Error {
	return &Error{Kind: kind, Component: component, Message: message}
}

// Wrap creates a pipeline error wrapping an underlying cause.
func Wrap(kind Kind, component, message string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Message: message, Cause: cause}
}

// FormatError reports unreadable or malformed input.
func FormatError(component, message string, cause error) *Error {
	return Wrap(KindFormat, component, message, cause)
}

// SchemaError reports a missing or mistyped required column.
func SchemaError(component, message string) *Error {
	return New(KindSchema, component, message)
}

// MetricError reports an aggregation that cannot be computed.
func MetricError(component, message string) *Error {
	return New(KindMetric, component, message)
}

// ClassificationError reports missing inputs for a classifier.
func ClassificationError(component, message string) *Error {
	return New(KindClassification, component, message)
}

// ExportError reports a failed report export.
func ExportError(component, message string, cause error) *Error {
	return Wrap(KindExport, component, message, cause)
}

// ConfigError reports invalid pipeline configuration.
func ConfigError(component, message string, cause error) *Error {
	return Wrap(KindConfig, component, message, cause)
}

// KindOf returns the kind of err, or the empty kind when err is not a
// pipeline error.
func KindOf(err error) Kind {
	var pe *Error
	if stderrors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) is a pipeline error
// of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ComponentOf returns the component that raised err, if known.
func ComponentOf(err error) string {
	var pe *Error
	if stderrors.As(err, &pe) {
		return pe.Component
	}
	return ""
}
