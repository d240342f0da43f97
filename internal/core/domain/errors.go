// Package domain defines the core domain models for FileVault.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
//
// Codes follow the format FV-<CATEGORY>-<NNNN>. The numeric part mirrors the
// closest HTTP status so that log consumers can bucket failures.
type DomainError struct {
	Code    string // Error code (e.g., "FV-AUTH-4011")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Protocol Errors (PROTO)
// ============================================================================

var (
	// ErrMalformedMessage indicates the message is not a JSON object.
	ErrMalformedMessage = NewDomainError("FV-PROTO-4000", "malformed message")

	// ErrUnknownCommand indicates the command tag is not recognised.
	ErrUnknownCommand = NewDomainError("FV-PROTO-4001", "unsupported command")

	// ErrMissingField indicates a required field is absent.
	ErrMissingField = NewDomainError("FV-PROTO-4002", "missing required field")

	// ErrInvalidField indicates a field has the wrong JSON type.
	ErrInvalidField = NewDomainError("FV-PROTO-4003", "invalid field")
)

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrNotAuthenticated indicates the session has no logged-in account.
	ErrNotAuthenticated = NewDomainError("FV-AUTH-4010", "not logged in")

	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = NewDomainError("FV-AUTH-4011", "invalid username or password")

	// ErrDuplicateUsername indicates the username is already registered.
	ErrDuplicateUsername = NewDomainError("FV-AUTH-4090", "username already exists")

	// ErrInvalidUsername indicates the username cannot name a sandbox.
	ErrInvalidUsername = NewDomainError("FV-AUTH-4001", "invalid username")
)

// ============================================================================
// Authorization and Containment Errors (PERM, PATH)
// ============================================================================

var (
	// ErrPermissionDenied indicates the account lacks the required capability.
	ErrPermissionDenied = NewDomainError("FV-PERM-4030", "permission denied")

	// ErrPathEscape indicates the path resolves outside the account sandbox.
	ErrPathEscape = NewDomainError("FV-PATH-4031", "path escapes sandbox")
)

// ============================================================================
// Storage Errors (STOR)
// ============================================================================

var (
	// ErrNotFound indicates the target file or directory does not exist.
	ErrNotFound = NewDomainError("FV-STOR-4040", "no such file or directory")

	// ErrPayloadTooLarge indicates an upload exceeds the size cap.
	ErrPayloadTooLarge = NewDomainError("FV-STOR-4130", "payload too large")

	// ErrMalformedPayload indicates the transport encoding of a payload is invalid.
	ErrMalformedPayload = NewDomainError("FV-STOR-4000", "malformed payload encoding")

	// ErrStorageFailure indicates an underlying I/O failure.
	ErrStorageFailure = NewDomainError("FV-STOR-5000", "storage operation failed")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrRateLimited indicates too many commands on one connection.
	ErrRateLimited = NewDomainError("FV-SYS-4290", "too many requests")

	// ErrInternal indicates an unexpected server error.
	ErrInternal = NewDomainError("FV-SYS-5000", "internal server error")
)
