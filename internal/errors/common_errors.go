package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeMalformedInput     ErrorType = "MALFORMED_INPUT"
	ErrTypeUndefinedVariation ErrorType = "UNDEFINED_VARIATION"
	ErrTypeUnmatchedID        ErrorType = "UNMATCHED_ID"
	ErrTypeAlignmentMismatch  ErrorType = "ALIGNMENT_MISMATCH"
	ErrTypeInvalidPercentage  ErrorType = "INVALID_PERCENTAGE"
	ErrTypeParsing            ErrorType = "PARSING"
	ErrTypeStorage            ErrorType = "STORAGE"
	ErrTypeValidation         ErrorType = "VALIDATION"
	ErrTypeConfig             ErrorType = "CONFIG"
)

// Sentinels for errors.Is checks by type
var (
	ErrMalformedInput     = &AppError{Type: ErrTypeMalformedInput}
	ErrUndefinedVariation = &AppError{Type: ErrTypeUndefinedVariation}
	ErrUnmatchedID        = &AppError{Type: ErrTypeUnmatchedID}
	ErrAlignmentMismatch  = &AppError{Type: ErrTypeAlignmentMismatch}
	ErrInvalidPercentage  = &AppError{Type: ErrTypeInvalidPercentage}
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Stage   string
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.Stage != "" {
		prefix = fmt.Sprintf("[%s] %s:", e.Type, e.Stage)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError of the same type when the target is a bare sentinel
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Message == "" && t.Stage == "" {
		return e.Type == t.Type
	}
	return e == t
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithStage records which pipeline stage raised the error
func (e *AppError) WithStage(stage string) *AppError {
	e.Stage = stage
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or ""
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// Helper functions for common error types

// NewMalformedInputError reports a required column missing or unreadable
func NewMalformedInputError(stage, column, message string) *AppError {
	return NewAppError(ErrTypeMalformedInput, fmt.Sprintf("column %q: %s", column, message), nil).
		WithStage(stage).
		WithContext("column", column)
}

// NewUndefinedVariationError reports a parent pixel group whose coefficient
// of variation cannot be computed
func NewUndefinedVariationError(parentID int64, reason string) *AppError {
	return NewAppError(ErrTypeUndefinedVariation, fmt.Sprintf("parent id %d: %s", parentID, reason), nil).
		WithContext("parent_id", parentID)
}

// NewUnmatchedIDError reports a parent id without a counterpart on the other side
func NewUnmatchedIDError(stage string, parentID int64) *AppError {
	return NewAppError(ErrTypeUnmatchedID, fmt.Sprintf("parent id %d has no matching row", parentID), nil).
		WithStage(stage).
		WithContext("parent_id", parentID)
}

// NewAlignmentMismatchError reports two tables that cannot be aligned row for row
func NewAlignmentMismatchError(stage, message string) *AppError {
	return NewAppError(ErrTypeAlignmentMismatch, message, nil).WithStage(stage)
}

// NewInvalidPercentageError reports a selection percentage outside (0, 1]
func NewInvalidPercentageError(p float64) *AppError {
	return NewAppError(ErrTypeInvalidPercentage, fmt.Sprintf("percentage %v is outside (0, 1]", p), nil).
		WithContext("percentage", p)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
