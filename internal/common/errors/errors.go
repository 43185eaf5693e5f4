// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeNoBasePackage     ErrorCode = "NO_BASE_PACKAGE"
	ErrCodePromotionConflict ErrorCode = "PROMOTION_CONFLICT"
	ErrCodeCascadeFailed     ErrorCode = "CASCADE_FAILED"

	ErrCodeRecordNotFound           ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeConfigurationCompleted ErrorCode = "CONFIGURATION_COMPLETED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeSearchIndexFailed      ErrorCode = "SEARCH_INDEX_FAILED"

	// TOTAL_MISMATCH is a data-integrity signal, never surfaced to the buyer.
	// The save still succeeds with the server-computed total.
	ErrCodeTotalMismatch ErrorCode = "TOTAL_MISMATCH"
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
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// NewValidationFailedError creates a non-retryable admin-input validation error.
// Validation rejects the write before anything is persisted.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Pricing input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoBasePackageError signals that a plan has no active base package to
// price upgrades against.
func NewNoBasePackageError(planID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoBasePackage,
		Message:   "No active base package for plan",
		Details:   fmt.Sprintf("planId: %s", planID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPromotionConflictError is returned when a concurrent promotion won the
// per-plan lock first. Retryable against the new baseline.
func NewPromotionConflictError(planID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePromotionConflict,
		Message:   "Concurrent base package promotion detected",
		Details:   fmt.Sprintf("planId: %s, error: %v", planID, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCascadeFailedError marks a failed sibling recompute during promotion.
// The promotion must have been rolled back by the time this is returned.
func NewCascadeFailedError(planID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCascadeFailed,
		Message:   "Base package cascade recalculation failed",
		Details:   fmt.Sprintf("planId: %s, error: %v", planID, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordNotFoundError creates a non-retryable missing-record error.
func NewRecordNotFoundError(kind, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordNotFound,
		Message:   "Catalog record not found",
		Details:   fmt.Sprintf("%s: %s", kind, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(op string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("operation: %s", op),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable insert error.
func NewDatabaseInsertFailedError(table string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert error",
		Details:   fmt.Sprintf("table: %s, error: %s", table, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConfigurationCompletedError rejects writes to a completed configuration.
func NewConfigurationCompletedError(configID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigurationCompleted,
		Message:   "Configuration is marked complete and can no longer be replaced",
		Details:   fmt.Sprintf("configurationId: %s", configID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ConvertToBPMNError maps a StandardError into its workflow-facing form.
func ConvertToBPMNError(e *StandardError) *BPMNError {
	return &BPMNError{
		Code:      string(e.Code),
		Message:   e.Message,
		Details:   e.Details,
		Retryable: e.Retryable,
		Retries:   GetRetryCount(e.Code),
	}
}

// GetRetryCount returns how many workflow retries a code deserves.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed, ErrCodeQueryTimeout:
		return 3
	case ErrCodeQueryExecutionFailed, ErrCodeDatabaseInsertFailed,
		ErrCodePromotionConflict, ErrCodeCascadeFailed,
		ErrCodeNotificationSendFailed:
		return 2
	default:
		return 0
	}
}

// GetErrorCategory buckets codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed:
		return "validation"
	case ErrCodeNoBasePackage, ErrCodePromotionConflict, ErrCodeCascadeFailed:
		return "base_package"
	case ErrCodeRecordNotFound, ErrCodeConfigurationCompleted:
		return "business"
	case ErrCodeNotificationSendFailed, ErrCodeSearchIndexFailed:
		return "integration"
	case ErrCodeTotalMismatch:
		return "integrity"
	default:
		return "infrastructure"
	}
}
