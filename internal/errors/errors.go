// Package errors defines the structured error taxonomy shared by the
// forecasting engine. Every failure carries a machine-readable code, the
// series it occurred on, and the underlying cause so batch callers can
// aggregate per-series failures without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies a class of forecasting failure.
type Code string

const (
	// CodeInsufficientHistory indicates a series or window too short for
	// the requested operation.
	CodeInsufficientHistory Code = "INSUFFICIENT_HISTORY"

	// CodeOptimizationDidNotConverge indicates parameter fitting exceeded
	// its iteration or tolerance bounds.
	CodeOptimizationDidNotConverge Code = "OPTIMIZATION_DID_NOT_CONVERGE"

	// CodeInvalidConfiguration indicates an unusable configuration value,
	// e.g. a non-positive horizon or an empty candidate set.
	CodeInvalidConfiguration Code = "INVALID_CONFIGURATION"

	// CodeNoValidStrategy indicates every candidate strategy failed to fit
	// or forecast for a series.
	CodeNoValidStrategy Code = "NO_VALID_STRATEGY"
)

// Error is the structured error type produced by the engine.
type Error struct {
	Code     Code   `json:"code"`
	Series   string `json:"series,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	Message  string `json:"message"`
	Err      error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Series != "" {
		msg = fmt.Sprintf("%s (series=%s)", msg, e.Series)
	}
	if e.Strategy != "" {
		msg = fmt.Sprintf("%s (strategy=%s)", msg, e.Strategy)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a structured error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a structured error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a structured error wrapping an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithSeries returns a copy of the error annotated with a series identifier.
func (e *Error) WithSeries(id string) *Error {
	clone := *e
	clone.Series = id
	return &clone
}

// WithStrategy returns a copy of the error annotated with a strategy name.
func (e *Error) WithStrategy(name string) *Error {
	clone := *e
	clone.Strategy = name
	return &clone
}

// IsCode reports whether err or any error in its chain carries the given code.
func IsCode(err error, code Code) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// GetCode extracts the code from err, or an empty Code if err is not
// a structured engine error.
func GetCode(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// Convenience constructors for the common failure classes.

// InsufficientHistory reports a series too short for the requested operation.
func InsufficientHistory(format string, args ...interface{}) *Error {
	return Newf(CodeInsufficientHistory, format, args...)
}

// OptimizationDidNotConverge reports exhausted optimization bounds.
func OptimizationDidNotConverge(format string, args ...interface{}) *Error {
	return Newf(CodeOptimizationDidNotConverge, format, args...)
}

// InvalidConfiguration reports an unusable configuration value.
func InvalidConfiguration(format string, args ...interface{}) *Error {
	return Newf(CodeInvalidConfiguration, format, args...)
}

// NoValidStrategy reports a fully exhausted candidate set for a series.
func NoValidStrategy(seriesID string, causes error) *Error {
	return &Error{
		Code:    CodeNoValidStrategy,
		Series:  seriesID,
		Message: "every candidate strategy failed to fit or forecast",
		Err:     causes,
	}
}
