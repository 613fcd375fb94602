package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorType_Constants(t *testing.T) {
	tests := []struct {
		name     string
		errType  ErrorType
		expected string
	}{
		{name: "malformed input", errType: ErrTypeMalformedInput, expected: "MALFORMED_INPUT"},
		{name: "undefined variation", errType: ErrTypeUndefinedVariation, expected: "UNDEFINED_VARIATION"},
		{name: "unmatched id", errType: ErrTypeUnmatchedID, expected: "UNMATCHED_ID"},
		{name: "alignment mismatch", errType: ErrTypeAlignmentMismatch, expected: "ALIGNMENT_MISMATCH"},
		{name: "invalid percentage", errType: ErrTypeInvalidPercentage, expected: "INVALID_PERCENTAGE"},
		{name: "parsing", errType: ErrTypeParsing, expected: "PARSING"},
		{name: "storage", errType: ErrTypeStorage, expected: "STORAGE"},
		{name: "config", errType: ErrTypeConfig, expected: "CONFIG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.errType))
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name:        "error without cause or stage",
			appError:    &AppError{Type: ErrTypeConfig, Message: "band file missing"},
			wantMessage: "[CONFIG] band file missing",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeStorage,
				Message: "failed to save workbook",
				Cause:   fmt.Errorf("disk full"),
			},
			wantMessage: "[STORAGE] failed to save workbook: disk full",
		},
		{
			name:        "error with stage",
			appError:    NewAlignmentMismatchError("reconcile", "2 secondary rows for 3 variation rows"),
			wantMessage: "[ALIGNMENT_MISMATCH] reconcile: 2 secondary rows for 3 variation rows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_IsSentinel(t *testing.T) {
	err := NewMalformedInputError("load", "FID_pixelc", "column not found")
	wrapped := fmt.Errorf("load fine table: %w", err)

	assert.True(t, errors.Is(wrapped, ErrMalformedInput))
	assert.False(t, errors.Is(wrapped, ErrAlignmentMismatch))
	assert.Equal(t, ErrTypeMalformedInput, TypeOf(wrapped))
	assert.Equal(t, ErrorType(""), TypeOf(fmt.Errorf("plain")))

	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, "FID_pixelc", appErr.Context["column"])
	assert.Equal(t, "load", appErr.Stage)
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("unexpected EOF")
	err := NewParsingError("failed to read csv", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestHelperConstructors(t *testing.T) {
	undefined := NewUndefinedVariationError(7, "single member group")
	assert.Equal(t, ErrTypeUndefinedVariation, undefined.Type)
	assert.Equal(t, int64(7), undefined.Context["parent_id"])
	assert.Contains(t, undefined.Error(), "parent id 7")

	unmatched := NewUnmatchedIDError("reconcile", 5)
	assert.True(t, errors.Is(unmatched, ErrUnmatchedID))
	assert.Equal(t, "reconcile", unmatched.Stage)

	pct := NewInvalidPercentageError(1.5)
	assert.True(t, errors.Is(pct, ErrInvalidPercentage))
	assert.Contains(t, pct.Error(), "1.5")

	assert.Equal(t, ErrTypeValidation, NewAppValidationError("x").Type)
	assert.Equal(t, ErrTypeConfig, NewConfigError("x", nil).Type)
	assert.Equal(t, ErrTypeStorage, NewStorageError("x", nil).Type)
}

func TestAppError_WithContext(t *testing.T) {
	err := &AppError{Type: ErrTypeParsing, Message: "bad cell"}
	err.WithContext("row", 3).WithContext("column", "grid_code")

	assert.Equal(t, 3, err.Context["row"])
	assert.Equal(t, "grid_code", err.Context["column"])
}
