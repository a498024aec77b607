package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"flightdeals/internal/job"
	"flightdeals/pkg/flightclient"
)

type ErrorCode string

const (
	ErrorCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrorCodeUnknownSource   ErrorCode = "UNKNOWN_SOURCE"
	ErrorCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrorCodeInternalFailure ErrorCode = "INTERNAL_FAILURE"
)

// AppError is an error with the HTTP status and code it is reported with.
type AppError struct {
	Status  int
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func validationError(format string, args ...any) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: ErrorCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// classify maps domain errors onto AppError. Anything it does not know stays as is.
func classify(err error) error {
	switch {
	case errors.Is(err, flightclient.ErrUnknownSource):
		return &AppError{Status: http.StatusNotFound, Code: ErrorCodeUnknownSource, Message: "Unknown source", Err: err}
	case errors.Is(err, job.ErrJobNotFound):
		return &AppError{Status: http.StatusNotFound, Code: ErrorCodeNotFound, Message: "Fetch job not found", Err: err}
	}
	return err
}

func sendError(c *gin.Context, err error) {
	var appErr *AppError

	if errors.As(classify(err), &appErr) {
		c.JSON(appErr.Status, gin.H{
			"error": appErr.Message,
			"code":  appErr.Code,
		})
		return
	}

	// Default to 500 for unknown errors
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "Internal Server Error",
		"code":    ErrorCodeInternalFailure,
		"details": err.Error(),
	})
}
