package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("FV-TEST-1000", "test message"),
			expected: "[FV-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("FV-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[FV-TEST-1001] test message: extra info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("FV-TEST-1000", "message 1")
	err2 := NewDomainError("FV-TEST-1000", "message 2")
	err3 := NewDomainError("FV-TEST-1001", "message 1")

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}
}

func TestDomainError_WrappedSentinel(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := fmt.Errorf("write: %w", ErrStorageFailure.WithCause(cause))

	if !errors.Is(err, ErrStorageFailure) {
		t.Error("wrapped domain error should match its sentinel")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through the chain")
	}
	if got := GetErrorCode(err); got != "FV-STOR-5000" {
		t.Errorf("GetErrorCode() = %q, want FV-STOR-5000", got)
	}
	if !IsDomainError(err, "") {
		t.Error("IsDomainError with empty code should be true")
	}
	if IsDomainError(err, "FV-AUTH-4011") {
		t.Error("IsDomainError should not match a different code")
	}
}

func TestDomainError_WithDetailsKeepsSentinel(t *testing.T) {
	err := ErrPathEscape.WithDetails("../etc")
	if !errors.Is(err, ErrPathEscape) {
		t.Error("WithDetails copy should still match sentinel")
	}
	if ErrPathEscape.Details != "" {
		t.Error("WithDetails must not mutate the sentinel")
	}
}

func TestGetErrorCode_NonDomain(t *testing.T) {
	if got := GetErrorCode(errors.New("plain")); got != "" {
		t.Errorf("GetErrorCode() = %q, want empty", got)
	}
}
