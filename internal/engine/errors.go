package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/verity/internal/ir"
)

// Error is a structured metric computation error.
//
// Run-level codes (ErrCodeRequestUnsupported, ErrCodeComputationFailure)
// abort a whole analysis run. Value-level codes (ErrCodeInsufficientData,
// ErrCodeMetricUnavailable) describe a single request and surface as
// constraint failures instead.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Dataset identifies the affected dataset, if known.
	Dataset ir.DatasetID

	// Request is the rendering of the affected request, if any.
	Request string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes computation errors.
type ErrorCode string

const (
	// ErrCodeRequestUnsupported indicates a request no engine scan can serve.
	ErrCodeRequestUnsupported ErrorCode = "REQUEST_UNSUPPORTED"

	// ErrCodeComputationFailure indicates the engine failed executing a batch.
	ErrCodeComputationFailure ErrorCode = "COMPUTATION_FAILURE"

	// ErrCodeInsufficientData indicates a request resolved to no value.
	ErrCodeInsufficientData ErrorCode = "INSUFFICIENT_DATA"

	// ErrCodeMetricUnavailable indicates a value is absent from a context.
	ErrCodeMetricUnavailable ErrorCode = "METRIC_UNAVAILABLE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Request != "" {
		msg += fmt.Sprintf(" (request=%s)", e.Request)
	}
	if e.Dataset != "" {
		msg += fmt.Sprintf(" (dataset=%s)", e.Dataset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsRequestUnsupported reports whether err is a RequestUnsupported error.
// Uses errors.As to handle wrapped errors.
func IsRequestUnsupported(err error) bool { return hasCode(err, ErrCodeRequestUnsupported) }

// IsComputationFailure reports whether err is a ComputationFailure error.
func IsComputationFailure(err error) bool { return hasCode(err, ErrCodeComputationFailure) }

// IsInsufficientData reports whether err is an InsufficientData error.
func IsInsufficientData(err error) bool { return hasCode(err, ErrCodeInsufficientData) }

// IsMetricUnavailable reports whether err is a MetricUnavailable error.
func IsMetricUnavailable(err error) bool { return hasCode(err, ErrCodeMetricUnavailable) }

// NewUnsupportedError creates an Error for a request that cannot be served.
func NewUnsupportedError(req ir.Request, err error) *Error {
	return &Error{
		Code:    ErrCodeRequestUnsupported,
		Message: "metric request not supported",
		Request: req.String(),
		Err:     err,
	}
}

// NewComputationError creates an Error for a failed batch.
func NewComputationError(dataset ir.DatasetID, message string, err error) *Error {
	return &Error{
		Code:    ErrCodeComputationFailure,
		Message: message,
		Dataset: dataset,
		Err:     err,
	}
}

// NewInsufficientDataError creates an Error for a request without a value.
func NewInsufficientDataError(req ir.Request, reason string) *Error {
	return &Error{
		Code:    ErrCodeInsufficientData,
		Message: reason,
		Request: req.String(),
	}
}

// NewMetricUnavailableError creates an Error for a value missing from a context.
func NewMetricUnavailableError(req ir.Request) *Error {
	return &Error{
		Code:    ErrCodeMetricUnavailable,
		Message: "metric was not computed in this run",
		Request: req.String(),
	}
}
