package syncplan

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable, client-visible identifier of a DriveError. Messages
// may change between releases, codes may not.
type ErrorCode string

const (
	CodeConflict          ErrorCode = "DRV-0001" // conflicting concurrent changes
	CodeInvalidComparison ErrorCode = "DRV-0002" // malformed comparison input
	CodeMetadataLookup    ErrorCode = "DRV-0003" // server metadata unavailable
	CodeInvalidPath       ErrorCode = "DRV-0004" // unusable path mapping
	CodeSyncFailed        ErrorCode = "DRV-0005" // the whole batch could not be planned
	CodeInternal          ErrorCode = "DRV-0006"
)

// DriveError is a structured error carried by ERROR actions.
type DriveError struct {
	Code    ErrorCode `json:"code" msgpack:"code"`
	Message string    `json:"error" msgpack:"error"`
	// Fatal marks failures that invalidate the whole batch.
	Fatal bool `json:"-" msgpack:"-"`

	cause error
}

func (e *DriveError) Error() string {
	return fmt.Sprintf("drive error: code=%s, message=%s", e.Code, e.Message)
}

func (e *DriveError) Unwrap() error {
	return e.cause
}

// ErrorFactory wraps arbitrary failures into structured errors with stable codes.
type ErrorFactory interface {
	Conflict(identity string) *DriveError
	InvalidComparison(err error) *DriveError
	MetadataLookup(identity string, err error) *DriveError
	Wrap(err error) *DriveError
}

// DefaultErrors is the ErrorFactory used when none is configured.
var DefaultErrors ErrorFactory = defaultErrorFactory{}

type defaultErrorFactory struct{}

func (defaultErrorFactory) Conflict(identity string) *DriveError {
	return &DriveError{
		Code:    CodeConflict,
		Message: fmt.Sprintf("conflicting changes for %q", identity),
	}
}

func (defaultErrorFactory) InvalidComparison(err error) *DriveError {
	return &DriveError{Code: CodeInvalidComparison, Message: err.Error(), cause: err}
}

func (defaultErrorFactory) MetadataLookup(identity string, err error) *DriveError {
	var de *DriveError
	if errors.As(err, &de) {
		return de
	}
	return &DriveError{
		Code:    CodeMetadataLookup,
		Message: fmt.Sprintf("metadata for %q unavailable: %v", identity, err),
		cause:   err,
	}
}

func (defaultErrorFactory) Wrap(err error) *DriveError {
	var de *DriveError
	if errors.As(err, &de) {
		return de
	}
	return &DriveError{Code: CodeSyncFailed, Message: err.Error(), Fatal: true, cause: err}
}

// Fatal wraps err as a batch-level failure.
func Fatal(code ErrorCode, err error) *DriveError {
	return &DriveError{Code: code, Message: err.Error(), Fatal: true, cause: err}
}

// IsFatal reports whether err carries a fatal DriveError.
func IsFatal(err error) bool {
	var de *DriveError
	return errors.As(err, &de) && de.Fatal
}
