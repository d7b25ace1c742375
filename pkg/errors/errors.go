// Package errors provides structured error types for catbits.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the batch runner and the HTTP API
//   - Machine-readable error codes for programmatic handling
//   - Classification of per-image failures the batch may skip
//
// # Error Codes
//
// Pipeline preconditions have dedicated codes:
//   - IMAGE_LOAD: the source could not be decoded into a pixel grid
//   - INVALID_CROP: crop target larger than the source
//   - INVALID_DIMENSIONS: non-square grid handed to the permuter, or a grid
//     whose sides are not multiples of the block size
//   - DATA_ALIGNMENT: bit sequence length not a multiple of 8 under the
//     reject policy
//   - ARTIFACT_WRITE: the output artifact could not be written
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidCrop, "target %dx%d exceeds source %dx%d", tw, th, w, h)
//	if errors.Is(err, errors.ErrCodeInvalidCrop) {
//	    // skip this image
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeImageLoad, origErr, "decode %s", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Pipeline precondition errors
	ErrCodeImageLoad         Code = "IMAGE_LOAD"
	ErrCodeInvalidCrop       Code = "INVALID_CROP"
	ErrCodeInvalidDimensions Code = "INVALID_DIMENSIONS"
	ErrCodeDataAlignment     Code = "DATA_ALIGNMENT"

	// Output errors
	ErrCodeArtifactWrite Code = "ARTIFACT_WRITE"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Skippable reports whether err only concerns the image being processed.
// A batch logs skippable errors and moves on to the next image; anything
// else (artifact writes, cancellation, internal faults) aborts the batch.
func Skippable(err error) bool {
	switch GetCode(err) {
	case ErrCodeImageLoad, ErrCodeInvalidCrop, ErrCodeInvalidDimensions,
		ErrCodeDataAlignment, ErrCodeNotFound, ErrCodeNetwork, ErrCodeTimeout:
		return true
	}
	return false
}
