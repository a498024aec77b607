package flightclient

import (
	"errors"
	"fmt"
)

var (
	ErrMissingToken      = errors.New("session token missing from search page")
	ErrPollLimitExceeded = errors.New("poll limit exceeded before results finished")
	ErrUnknownSource     = errors.New("unknown source")
)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Source string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: external api returned non-2xx status: %d", e.Source, e.Code)
}
