package errors

import (
	stderrors "errors"
	"fmt"
	"os"
)

// Standard error codes
const (
	ErrInvalidRequest      = 400
	ErrNotFound            = 404
	ErrInternalServerError = 500
	ErrServiceUnavailable  = 503

	// Lottery client error codes (1000+)
	ErrProviderUnavailable = 1001 // no wallet capability present when required
	ErrNoSignerAvailable   = 1002 // wallet present but locked/unauthorized
	ErrRemoteCallFailure   = 1003 // balance/jackpot/bet-list/bet-submission call failed
	ErrSideChannelFailure  = 1004 // session-sync call failed, never surfaces
	ErrInternal            = 1005 // a transition panicked
)

// AppError represents a custom application error
type AppError struct {
	Code         int    `json:"code"`
	Message      string `json:"message"`
	DebugMessage string `json:"debug_message,omitempty"`
	Err          error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.DebugMessage != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.DebugMessage)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s [%v]", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Kind returns the symbolic name of the error code.
func (e *AppError) Kind() string {
	return KindName(e.Code)
}

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewWithDebug creates a new AppError with a debug message
func NewWithDebug(code int, message string, debugMessage string) *AppError {
	return &AppError{
		Code:         code,
		Message:      message,
		DebugMessage: debugMessage,
	}
}

// Wrap wraps an existing error into an AppError
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ProviderUnavailable is returned when a wallet capability is required but absent.
func ProviderUnavailable() *AppError {
	return New(ErrProviderUnavailable, "wallet provider unavailable")
}

// NoSignerAvailable wraps a failure to read the authorized account.
func NoSignerAvailable(err error) *AppError {
	return Wrap(err, ErrNoSignerAvailable, "no signer available, wallet locked or not authorized")
}

// RemoteCall wraps a failed wallet or contract call.
func RemoteCall(err error, message string) *AppError {
	return Wrap(err, ErrRemoteCallFailure, message)
}

// SideChannel wraps a failed session-sync call.
func SideChannel(err error, message string) *AppError {
	return Wrap(err, ErrSideChannelFailure, message)
}

// Capture converts err into an AppError suitable for the snapshot.
// An AppError already present in the chain keeps its own code.
func Capture(err error, code int, message string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, code, message)
}

// Is reports whether err carries the given code.
func Is(err error, code int) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Response returns a map suitable for JSON response
func (e *AppError) Response() map[string]interface{} {
	response := map[string]interface{}{
		"code":    e.Code,
		"kind":    e.Kind(),
		"message": e.Message,
	}

	// Include debug message in development environment
	env := os.Getenv("APP_ENV")
	if (env == "dev" || env == "development") && e.DebugMessage != "" {
		response["debug_message"] = e.DebugMessage
	}
	if e.Err != nil {
		response["cause"] = e.Err.Error()
	}

	return response
}

// GetCode extracts error code from an error
func GetCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServerError
}

// KindName maps error codes to their symbolic names
func KindName(code int) string {
	switch code {
	case ErrProviderUnavailable:
		return "ProviderUnavailable"
	case ErrNoSignerAvailable:
		return "NoSignerAvailable"
	case ErrRemoteCallFailure:
		return "RemoteCallFailure"
	case ErrSideChannelFailure:
		return "SideChannelFailure"
	case ErrInternal:
		return "Internal"
	case ErrInvalidRequest:
		return "InvalidRequest"
	case ErrNotFound:
		return "NotFound"
	case ErrServiceUnavailable:
		return "ServiceUnavailable"
	default:
		return "InternalServerError"
	}
}

// HTTPStatusFromCode maps error codes to HTTP status codes
func HTTPStatusFromCode(code int) int {
	switch code {
	case ErrInvalidRequest:
		return 400
	case ErrNotFound:
		return 404
	case ErrServiceUnavailable, ErrProviderUnavailable:
		return 503
	case ErrNoSignerAvailable:
		return 401
	case ErrRemoteCallFailure, ErrSideChannelFailure:
		return 502
	default:
		return 500
	}
}
