package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// QueryError is the typed outcome of a failed engine operation.
//
// NotFound, InvalidQuery and QueryTooLarge are deterministic for a given
// input and must not be retried. StoreUnavailable is the only retryable
// code; retrying is the caller's job.
type QueryError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Dimension names the offending dimension (subject, filter_item,
	// location, indicator, time_period), when there is one.
	Dimension string

	// ID is the offending id, when there is one.
	ID string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, for StoreUnavailable.
	Err error
}

// ErrorCode categorizes query errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates an unknown subject or dimension id.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeQueryTooLarge indicates cropping could not fit the cell budget.
	ErrCodeQueryTooLarge ErrorCode = "QUERY_TOO_LARGE"

	// ErrCodeInvalidQuery indicates a structurally malformed query.
	ErrCodeInvalidQuery ErrorCode = "INVALID_QUERY"

	// ErrCodeStoreUnavailable indicates a transient backing-store failure.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

// Error implements the error interface.
func (e *QueryError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Dimension != "" && e.ID != "":
		msg += fmt.Sprintf(" (%s=%s)", e.Dimension, e.ID)
	case e.Dimension != "":
		msg += fmt.Sprintf(" (%s)", e.Dimension)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry the operation.
func (e *QueryError) Retryable() bool {
	return e.Code == ErrCodeStoreUnavailable
}

func hasCode(err error, code ErrorCode) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == code
	}
	return false
}

// IsNotFound returns true if err is a NotFound QueryError.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsQueryTooLarge returns true if err is a QueryTooLarge QueryError.
func IsQueryTooLarge(err error) bool { return hasCode(err, ErrCodeQueryTooLarge) }

// IsInvalidQuery returns true if err is an InvalidQuery QueryError.
func IsInvalidQuery(err error) bool { return hasCode(err, ErrCodeInvalidQuery) }

// IsStoreUnavailable returns true if err is a StoreUnavailable QueryError.
func IsStoreUnavailable(err error) bool { return hasCode(err, ErrCodeStoreUnavailable) }

// ErrorCodeOf returns the code of the QueryError in err's chain, or "".
func ErrorCodeOf(err error) ErrorCode {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}

// NewNotFoundError creates a QueryError for an unknown id.
func NewNotFoundError(dimension, id string) *QueryError {
	return &QueryError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", dimension),
		Dimension: dimension,
		ID:        id,
	}
}

// NewInvalidQueryError creates a QueryError for a malformed query.
func NewInvalidQueryError(dimension, message string, details map[string]string) *QueryError {
	return &QueryError{
		Code:      ErrCodeInvalidQuery,
		Message:   message,
		Dimension: dimension,
		Details:   details,
	}
}

// NewQueryTooLargeError creates a QueryError for a query that exceeds the
// cell budget even with a single time period.
func NewQueryTooLargeError(minimalCells, maxCells int) *QueryError {
	return &QueryError{
		Code:      ErrCodeQueryTooLarge,
		Message:   fmt.Sprintf("query needs %d cells for a single time period, budget is %d", minimalCells, maxCells),
		Dimension: "time_period",
		Details: map[string]string{
			"estimated_cells": strconv.Itoa(minimalCells),
			"max_cells":       strconv.Itoa(maxCells),
		},
	}
}

// storeError wraps a backing-store failure as StoreUnavailable.
// Cancellation is returned unchanged so callers can tell it apart.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryError{
		Code:    ErrCodeStoreUnavailable,
		Message: op + " failed",
		Err:     err,
	}
}
