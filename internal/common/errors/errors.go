// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Query compiler errors
	ErrCodeInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrCodeDomainNotFound       ErrorCode = "DOMAIN_NOT_FOUND"
	ErrCodeQueryExecutionFailed ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout         ErrorCode = "QUERY_TIMEOUT"

	// Intent extraction errors. EXTRACTOR_UNAVAILABLE is recovered inside the
	// parser by falling back to rules; it reaches a caller only when the
	// fallback itself is miswired, which is a defect.
	ErrCodeExtractorUnavailable ErrorCode = "EXTRACTOR_UNAVAILABLE"
	ErrCodeIntentParsingFailed  ErrorCode = "INTENT_PARSING_FAILED"

	// Infrastructure errors
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ConvertToBPMNError maps a StandardError onto a throwable BPMN error.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   GetRetryCount(stdErr.Code),
		ErrorVariables: map[string]interface{}{
			"timestamp": stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// GetRetryCount returns how many retries a worker should request per code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeQueryTimeout, ErrCodeDatabaseConnectionFailed:
		return 2
	case ErrCodeQueryExecutionFailed:
		return 1
	default:
		return 0
	}
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeInvalidInput, ErrCodeDomainNotFound:
		return "validation"
	case ErrCodeExtractorUnavailable, ErrCodeIntentParsingFailed:
		return "extraction"
	case ErrCodeQueryExecutionFailed, ErrCodeQueryTimeout, ErrCodeDatabaseConnectionFailed:
		return "database"
	default:
		return "internal"
	}
}

// ==========================
// 3. Error Constructors
// ==========================

// NewInvalidInputError creates a non-retryable input validation error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Query input is empty or malformed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDomainNotFoundError creates a non-retryable unknown-domain error.
// Stage 1 only emits registry-valid domains, so hitting this in Stage 2
// indicates a parser contract violation.
func NewDomainNotFoundError(domain string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDomainNotFound,
		Message:   "Query domain is not registered",
		Details:   fmt.Sprintf("domain: %s", domain),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
// The wrapped database error is kept in Details for the log; the Message is
// what reaches the caller and carries no SQL or parameter values.
func NewQueryExecutionFailedError(domain string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("domain: %s, error: %s", domain, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"domain": domain},
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(domain string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("domain: %s", domain),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractorUnavailableError creates an internal extractor failure error.
func NewExtractorUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractorUnavailable,
		Message:   "Language-model extractor unavailable",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIntentParsingFailedError creates a non-retryable parsing contract error.
func NewIntentParsingFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIntentParsingFailed,
		Message:   "Intent parsing produced invalid output",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
