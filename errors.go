package pim

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeExecution  ErrorType = "execution"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeResolver   ErrorType = "resolver"
	ErrorTypeMigration  ErrorType = "migration"
	ErrorTypeExport     ErrorType = "export"
)

// Error is the structured error returned across the module.
type Error struct {
	Type      ErrorType      `json:"type"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Attribute string         `json:"attribute,omitempty"`
	Field     string         `json:"field,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Attribute != "" {
		return fmt.Sprintf("[%s:%s] attribute %s: %s", e.Type, e.Code, e.Attribute, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s:%s] field '%s': %s", e.Type, e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetails merges details into the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail adds a single detail.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func (e *Error) WithAttribute(attributeID string) *Error {
	e.Attribute = attributeID
	return e
}

func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

const (
	ErrCodeInvalidAttribute    = "INVALID_ATTRIBUTE"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeResolverFailed      = "RESOLVER_FAILED"
	ErrCodeMigrationFailed     = "MIGRATION_FAILED"
	ErrCodeDowngradeProhibited = "DOWNGRADE_PROHIBITED"
	ErrCodeExportFailed        = "EXPORT_FAILED"
	ErrCodeInvalidConfig       = "INVALID_CONFIG"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// ErrResolutionMiss is wrapped by collaborators when a lookup finds nothing.
var ErrResolutionMiss = errors.New("resolution miss")

// IsResolutionMiss reports whether err is, or wraps, ErrResolutionMiss.
func IsResolutionMiss(err error) bool {
	return errors.Is(err, ErrResolutionMiss)
}

func NewError(errorType ErrorType, code, message string) *Error {
	return &Error{
		Type:    errorType,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

// NewInvalidAttributeError reports an attribute that cannot drive a conversion.
func NewInvalidAttributeError(attributeID, message string) *Error {
	return &Error{
		Type:      ErrorTypeValidation,
		Code:      ErrCodeInvalidAttribute,
		Message:   message,
		Attribute: attributeID,
		Details:   make(map[string]any),
	}
}

func NewValidationError(field, message string) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeValidationFailed,
		Message: message,
		Field:   field,
		Details: make(map[string]any),
	}
}

// NewResolverError wraps an infrastructure failure of a collaborator lookup.
func NewResolverError(resolver string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeResolver,
		Code:    ErrCodeResolverFailed,
		Message: fmt.Sprintf("%s lookup failed", resolver),
		Details: map[string]any{"resolver": resolver},
		Cause:   cause,
	}
}

func NewMigrationError(version, message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeMigration,
		Code:    ErrCodeMigrationFailed,
		Message: message,
		Details: map[string]any{"version": version},
		Cause:   cause,
	}
}

func NewDowngradeProhibitedError(version string) *Error {
	return &Error{
		Type:    ErrorTypeMigration,
		Code:    ErrCodeDowngradeProhibited,
		Message: "Downgrade is prohibited.",
		Details: map[string]any{"version": version},
	}
}

func NewExportError(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeExport,
		Code:    ErrCodeExportFailed,
		Message: message,
		Details: make(map[string]any),
		Cause:   cause,
	}
}

func NewInternalError(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Details: make(map[string]any),
		Cause:   cause,
	}
}

// IsInvalidAttributeError checks if an error is an invalid attribute error
func IsInvalidAttributeError(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeInvalidAttribute
	}
	return false
}

// IsResolverError checks if an error is a collaborator infrastructure failure
func IsResolverError(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeResolverFailed
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Type == ErrorTypeValidation
	}
	return false
}
