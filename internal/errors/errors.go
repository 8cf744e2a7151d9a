// Package errors provides the error codes surfaced to callers of the sync core.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of failure independent of its message.
type ErrorCode string

const (
	// General errors
	ErrInternal    ErrorCode = "INTERNAL_ERROR"
	ErrInvalid     ErrorCode = "INVALID_INPUT"
	ErrNotFound    ErrorCode = "NOT_FOUND"
	ErrPermission  ErrorCode = "PERMISSION_DENIED"
	ErrValidation  ErrorCode = "VALIDATION_ERROR"
	ErrConfig      ErrorCode = "CONFIG_ERROR"
	ErrContentType ErrorCode = "UNSUPPORTED_CONTENT_TYPE"

	// Local store errors
	ErrDatabase     ErrorCode = "DATABASE_ERROR"
	ErrMigration    ErrorCode = "MIGRATION_FAILED"
	ErrStoreCorrupt ErrorCode = "STORE_CORRUPT"

	// Queue / sync errors
	ErrSyncNotConfigured ErrorCode = "SYNC_NOT_CONFIGURED"
	ErrSyncFailed        ErrorCode = "SYNC_FAILED"
	ErrSyncInProgress    ErrorCode = "SYNC_IN_PROGRESS"
	ErrSyncAuthFailed    ErrorCode = "SYNC_AUTH_FAILED"
	ErrSyncTimeout       ErrorCode = "SYNC_TIMEOUT"
	ErrQueueItemInvalid  ErrorCode = "QUEUE_ITEM_INVALID"

	// Remote backend errors
	ErrRemoteUnavailable ErrorCode = "REMOTE_UNAVAILABLE"
	ErrRemoteRejected    ErrorCode = "REMOTE_REJECTED"

	// Image pipeline errors
	ErrImageEmpty    ErrorCode = "IMAGE_EMPTY"
	ErrImageDecode   ErrorCode = "IMAGE_DECODE_FAILED"
	ErrImageEncode   ErrorCode = "IMAGE_ENCODE_FAILED"
	ErrUploadFailed  ErrorCode = "UPLOAD_FAILED"
	ErrUploadPair    ErrorCode = "UPLOAD_PAIR_FAILED"
	ErrStorageDelete ErrorCode = "STORAGE_DELETE_FAILED"
	ErrStorageURL    ErrorCode = "STORAGE_URL_FAILED"
	ErrBucketUnknown ErrorCode = "STORAGE_BUCKET_UNKNOWN"

	// AI errors
	ErrAINotConfigured      ErrorCode = "AI_NOT_CONFIGURED"
	ErrAIFailed             ErrorCode = "AI_FAILED"
	ErrAIRateLimit          ErrorCode = "AI_RATE_LIMIT"
	ErrAIQuotaExceeded      ErrorCode = "AI_QUOTA_EXCEEDED"
	ErrAITimeout            ErrorCode = "AI_TIMEOUT"
	ErrAIInvalidCredentials ErrorCode = "AI_INVALID_CREDENTIALS"
	ErrAIInvalidResponse    ErrorCode = "AI_INVALID_RESPONSE"
	ErrAINotHealthCheckup   ErrorCode = "AI_NOT_HEALTH_CHECKUP"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is reports whether any AppError in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// CodeOf returns the code of the outermost AppError in err's chain, or
// ErrInternal when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}
