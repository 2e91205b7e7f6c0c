package server

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/donnyesq/gamble/errors"
	"github.com/donnyesq/gamble/types"
	"github.com/gin-gonic/gin"
)

const ErrUndefinedErrorCode = -99

// ErrorResponse is an alias for types.ErrorResponse
type ErrorResponse = types.ErrorResponse

// SuccessResponse is a type alias for types.SuccessResponse[T]
type SuccessResponse[T any] = types.SuccessResponse[T]

// Success sends a success response
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, types.SuccessResponse[interface{}]{
		StatusCode: statusCode,
		IsSuccess:  true,
		Data:       data,
	})
}

// OK sends a 200 OK response
func OK(c *gin.Context, data interface{}) {
	Success(c, http.StatusOK, data)
}

// Error sends an error response
func Error(c *gin.Context, statusCode int, err error) {
	detail := types.ErrorDetail{
		Timestamp:    time.Now().Format(time.RFC3339),
		Path:         c.Request.URL.Path,
		ErrorMessage: err.Error(),
		ErrorCode:    ErrUndefinedErrorCode,
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		detail.ErrorMessage = appErr.Message
		detail.ErrorCode = appErr.Code
		detail.ErrorKind = appErr.Kind()
	}

	c.JSON(statusCode, types.ErrorResponse{
		StatusCode: statusCode,
		IsSuccess:  false,
		Error:      detail,
	})
}

// ErrorWithMessage sends an error response with a custom message
func ErrorWithMessage(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, types.ErrorResponse{
		StatusCode: statusCode,
		IsSuccess:  false,
		Error: types.ErrorDetail{
			Timestamp:    time.Now().Format(time.RFC3339),
			Path:         c.Request.URL.Path,
			ErrorMessage: message,
			ErrorCode:    ErrUndefinedErrorCode,
		},
	})
}

// BadRequest sends a 400 Bad Request response
func BadRequest(c *gin.Context, err error) {
	Error(c, http.StatusBadRequest, err)
}

// HandleAppError maps an AppError to its HTTP status; anything else is a 500.
func HandleAppError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		Error(c, errors.HTTPStatusFromCode(appErr.Code), appErr)
		return
	}
	Error(c, http.StatusInternalServerError, err)
}
