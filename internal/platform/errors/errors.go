// Package errors provides the unified error taxonomy for the analytics core.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique, stable error code.
type ErrorCode string

const (
	// Structural errors (1xxx) - surfaced immediately from resolve/graph operations.
	ErrCodeUnknownAnalytic ErrorCode = "STRUCT_1001"
	ErrCodeCycleDetected   ErrorCode = "STRUCT_1002"
	ErrCodeNodeNotFound    ErrorCode = "STRUCT_1003"

	// Validation errors (2xxx) - surfaced from push_data and dependency resolution.
	ErrCodeInvalidDateRange      ErrorCode = "VAL_2001"
	ErrCodeInvalidPushValue      ErrorCode = "VAL_2002"
	ErrCodeNonMonotonicTimestamp ErrorCode = "VAL_2003"
	ErrCodeDuplicateTimestamp    ErrorCode = "VAL_2004"
	ErrCodeInvalidWindow         ErrorCode = "VAL_2005"
	ErrCodeMismatchedLengths     ErrorCode = "VAL_2006"
	ErrCodeEngineNotInitialized  ErrorCode = "VAL_2007"

	// Propagation errors (3xxx) - captured onto the node, never abort the whole push.
	ErrCodeNodeFailed ErrorCode = "PROP_3001"

	// Provider errors (4xxx) - wrapped verbatim into an engine-level error.
	ErrCodeAssetNotFound     ErrorCode = "PROV_4001"
	ErrCodeProviderDateRange ErrorCode = "PROV_4002"
	ErrCodeProviderOther     ErrorCode = "PROV_4003"

	// Callback errors (5xxx) - caught, logged with node id, never propagated.
	ErrCodeCallbackFailed ErrorCode = "CB_5001"
)

// ServiceError is a structured error with code, message, and HTTP status,
// carrying details used to name the failing node/key in REST responses.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails adds additional details to the error, returning the receiver for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new ServiceError.
func New(code ErrorCode, message string, httpStatus int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Wrap wraps an existing error with a ServiceError.
func Wrap(code ErrorCode, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// Structural errors

// UnknownAnalytic reports that the registry has no definition for an analytic type.
func UnknownAnalytic(analytic string) *ServiceError {
	return New(ErrCodeUnknownAnalytic, "unknown analytic type", http.StatusNotFound).
		WithDetails("analytic", analytic)
}

// CycleDetected reports that resolving a key would close a cycle, naming the participants.
func CycleDetected(participants []string) *ServiceError {
	return New(ErrCodeCycleDetected, "cycle detected during node resolution", http.StatusNotFound).
		WithDetails("participants", participants)
}

// NodeNotFound reports that a referenced node id does not exist in the DAG.
func NodeNotFound(nodeID int) *ServiceError {
	return New(ErrCodeNodeNotFound, "node not found", http.StatusNotFound).
		WithDetails("node_id", nodeID)
}

// Validation errors

// InvalidDateRange reports start >= end on a requested range.
func InvalidDateRange(start, end string) *ServiceError {
	return New(ErrCodeInvalidDateRange, "invalid date range", http.StatusBadRequest).
		WithDetails("start", start).
		WithDetails("end", end)
}

// InvalidPushValue reports a non-finite, negative, or otherwise unusable pushed value.
func InvalidPushValue(asset string, value float64) *ServiceError {
	return New(ErrCodeInvalidPushValue, "pushed value must be finite and non-negative", http.StatusBadRequest).
		WithDetails("asset", asset).
		WithDetails("value", value)
}

// NonMonotonicTimestamp reports a push whose timestamp does not strictly advance a node's clock.
func NonMonotonicTimestamp(nodeID int) *ServiceError {
	return New(ErrCodeNonMonotonicTimestamp, "timestamp is not strictly after the node's last timestamp", http.StatusBadRequest).
		WithDetails("node_id", nodeID)
}

// DuplicateTimestamp reports two points for one node sharing a timestamp.
func DuplicateTimestamp(nodeID int) *ServiceError {
	return New(ErrCodeDuplicateTimestamp, "duplicate timestamp for node", http.StatusBadRequest).
		WithDetails("node_id", nodeID)
}

// InvalidWindow reports a non-positive window capacity or out-of-range lambda.
func InvalidWindow(reason string) *ServiceError {
	return New(ErrCodeInvalidWindow, "invalid window specification", http.StatusBadRequest).
		WithDetails("reason", reason)
}

// MismatchedLengths reports a weighted_sum (or similar) call with unequal input lengths.
func MismatchedLengths(xs, ws int) *ServiceError {
	return New(ErrCodeMismatchedLengths, "input lengths do not match", http.StatusBadRequest).
		WithDetails("values", xs).
		WithDetails("weights", ws)
}

// EngineNotInitialized reports a push_data call before Initialize completed.
func EngineNotInitialized() *ServiceError {
	return New(ErrCodeEngineNotInitialized, "push engine is not initialized", http.StatusBadRequest)
}

// Propagation errors

// NodeFailed wraps the reason a node's executor failed during propagation.
func NodeFailed(nodeID int, reason string) *ServiceError {
	return New(ErrCodeNodeFailed, "node failed during propagation", http.StatusInternalServerError).
		WithDetails("node_id", nodeID).
		WithDetails("reason", reason)
}

// Provider errors

// AssetNotFound wraps the provider's AssetNotFound failure.
func AssetNotFound(asset string) *ServiceError {
	return New(ErrCodeAssetNotFound, "asset not found", http.StatusNotFound).
		WithDetails("asset", asset)
}

// ProviderDateRange wraps the provider's InvalidDateRange failure.
func ProviderDateRange(asset string) *ServiceError {
	return New(ErrCodeProviderDateRange, "provider rejected date range", http.StatusBadRequest).
		WithDetails("asset", asset)
}

// ProviderOther wraps any other provider failure verbatim.
func ProviderOther(asset string, err error) *ServiceError {
	return Wrap(ErrCodeProviderOther, "provider call failed", http.StatusBadGateway, err).
		WithDetails("asset", asset)
}

// Callback errors

// CallbackFailed wraps a panic or error raised by a registered subscriber.
// It is logged, never propagated to the caller of push_data.
func CallbackFailed(nodeID int, err error) *ServiceError {
	return Wrap(ErrCodeCallbackFailed, "callback failed", http.StatusOK, err).
		WithDetails("node_id", nodeID)
}

// Helper functions

// IsServiceError checks if an error is a ServiceError.
func IsServiceError(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr)
}

// GetServiceError extracts a ServiceError from an error chain.
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// GetHTTPStatus returns the HTTP status code for an error.
func GetHTTPStatus(err error) int {
	if serviceErr := GetServiceError(err); serviceErr != nil {
		return serviceErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
