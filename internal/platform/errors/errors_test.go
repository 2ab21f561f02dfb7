package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestServiceError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ServiceError
		want string
	}{
		{
			name: "error without underlying error",
			err:  New(ErrCodeUnknownAnalytic, "test message", http.StatusNotFound),
			want: "[STRUCT_1001] test message",
		},
		{
			name: "error with underlying error",
			err:  Wrap(ErrCodeProviderOther, "test message", http.StatusBadGateway, errors.New("underlying")),
			want: "[PROV_4003] test message: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServiceError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(ErrCodeProviderOther, "test", http.StatusBadGateway, underlying)

	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}
}

func TestServiceError_WithDetails(t *testing.T) {
	err := New(ErrCodeInvalidPushValue, "test", http.StatusBadRequest)
	err.WithDetails("asset", "AAPL").WithDetails("value", -1.0)

	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
	if err.Details["asset"] != "AAPL" {
		t.Errorf("Details[asset] = %v, want AAPL", err.Details["asset"])
	}
	if err.Details["value"] != -1.0 {
		t.Errorf("Details[value] = %v, want -1.0", err.Details["value"])
	}
}

func TestUnknownAnalytic(t *testing.T) {
	err := UnknownAnalytic("Frobnicate")

	if err.Code != ErrCodeUnknownAnalytic {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeUnknownAnalytic)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusNotFound)
	}
	if err.Details["analytic"] != "Frobnicate" {
		t.Errorf("Details[analytic] = %v, want Frobnicate", err.Details["analytic"])
	}
}

func TestCycleDetected(t *testing.T) {
	err := CycleDetected([]string{"A", "B", "A"})

	if err.Code != ErrCodeCycleDetected {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeCycleDetected)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusNotFound)
	}
}

func TestNodeNotFound(t *testing.T) {
	err := NodeNotFound(42)

	if err.Code != ErrCodeNodeNotFound {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeNodeNotFound)
	}
	if err.Details["node_id"] != 42 {
		t.Errorf("Details[node_id] = %v, want 42", err.Details["node_id"])
	}
}

func TestInvalidDateRange(t *testing.T) {
	err := InvalidDateRange("2024-02-01", "2024-01-01")

	if err.Code != ErrCodeInvalidDateRange {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidDateRange)
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusBadRequest)
	}
}

func TestInvalidPushValue(t *testing.T) {
	err := InvalidPushValue("AAPL", -5.0)

	if err.Code != ErrCodeInvalidPushValue {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidPushValue)
	}
	if err.Details["asset"] != "AAPL" {
		t.Errorf("Details[asset] = %v, want AAPL", err.Details["asset"])
	}
}

func TestNonMonotonicTimestamp(t *testing.T) {
	err := NonMonotonicTimestamp(7)

	if err.Code != ErrCodeNonMonotonicTimestamp {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeNonMonotonicTimestamp)
	}
}

func TestDuplicateTimestamp(t *testing.T) {
	err := DuplicateTimestamp(7)

	if err.Code != ErrCodeDuplicateTimestamp {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeDuplicateTimestamp)
	}
}

func TestInvalidWindow(t *testing.T) {
	err := InvalidWindow("capacity must be > 0")

	if err.Code != ErrCodeInvalidWindow {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidWindow)
	}
}

func TestMismatchedLengths(t *testing.T) {
	err := MismatchedLengths(3, 2)

	if err.Code != ErrCodeMismatchedLengths {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeMismatchedLengths)
	}
	if err.Details["values"] != 3 || err.Details["weights"] != 2 {
		t.Errorf("Details = %v, want values=3 weights=2", err.Details)
	}
}

func TestEngineNotInitialized(t *testing.T) {
	err := EngineNotInitialized()

	if err.Code != ErrCodeEngineNotInitialized {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeEngineNotInitialized)
	}
}

func TestNodeFailed(t *testing.T) {
	err := NodeFailed(3, "missing parent value")

	if err.Code != ErrCodeNodeFailed {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeNodeFailed)
	}
	if err.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusInternalServerError)
	}
	if err.Details["reason"] != "missing parent value" {
		t.Errorf("Details[reason] = %v, want missing parent value", err.Details["reason"])
	}
}

func TestAssetNotFound(t *testing.T) {
	err := AssetNotFound("ZZZZ")

	if err.Code != ErrCodeAssetNotFound {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeAssetNotFound)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusNotFound)
	}
}

func TestProviderDateRange(t *testing.T) {
	err := ProviderDateRange("AAPL")

	if err.Code != ErrCodeProviderDateRange {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeProviderDateRange)
	}
}

func TestProviderOther(t *testing.T) {
	underlying := errors.New("connection reset")
	err := ProviderOther("AAPL", underlying)

	if err.Code != ErrCodeProviderOther {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeProviderOther)
	}
	if err.HTTPStatus != http.StatusBadGateway {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusBadGateway)
	}
	if err.Err != underlying {
		t.Errorf("Err = %v, want %v", err.Err, underlying)
	}
}

func TestCallbackFailed(t *testing.T) {
	underlying := errors.New("subscriber panicked")
	err := CallbackFailed(9, underlying)

	if err.Code != ErrCodeCallbackFailed {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeCallbackFailed)
	}
	if err.Details["node_id"] != 9 {
		t.Errorf("Details[node_id] = %v, want 9", err.Details["node_id"])
	}
}

func TestIsServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "service error",
			err:  New(ErrCodeNodeFailed, "test", http.StatusInternalServerError),
			want: true,
		},
		{
			name: "standard error",
			err:  errors.New("standard error"),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsServiceError(tt.err); got != tt.want {
				t.Errorf("IsServiceError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetServiceError(t *testing.T) {
	serviceErr := New(ErrCodeNodeFailed, "test", http.StatusInternalServerError)
	standardErr := errors.New("standard error")

	tests := []struct {
		name string
		err  error
		want *ServiceError
	}{
		{name: "service error", err: serviceErr, want: serviceErr},
		{name: "standard error", err: standardErr, want: nil},
		{name: "nil error", err: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetServiceError(tt.err)
			if got != tt.want {
				t.Errorf("GetServiceError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "structural error maps to 404",
			err:  UnknownAnalytic("Frobnicate"),
			want: http.StatusNotFound,
		},
		{
			name: "validation error maps to 400",
			err:  InvalidPushValue("AAPL", -1),
			want: http.StatusBadRequest,
		},
		{
			name: "propagation error maps to 500",
			err:  NodeFailed(1, "boom"),
			want: http.StatusInternalServerError,
		},
		{
			name: "standard error",
			err:  errors.New("standard error"),
			want: http.StatusInternalServerError,
		},
		{
			name: "nil error",
			err:  nil,
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetHTTPStatus(tt.err); got != tt.want {
				t.Errorf("GetHTTPStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}
