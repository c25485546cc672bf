package engine

import (
	"errors"
	"net/http"
)

// notInitializedError is returned by Generate before any successful Initialize.
type notInitializedError struct{}

func (notInitializedError) Error() string {
	return "Model is not initialized. Please call /initialize first."
}
func (notInitializedError) StatusCode() int { return http.StatusBadRequest }

// ErrNotInitialized reports that no model is loaded.
var ErrNotInitialized error = notInitializedError{}

// IsNotInitialized reports whether err indicates a missing model.
func IsNotInitialized(err error) bool {
	return errors.Is(err, ErrNotInitialized)
}

// tooBusyError signals that the execution slot was not free within MaxWait.
type tooBusyError struct{ op string }

func (e tooBusyError) Error() string   { return "too busy: " + e.op }
func (e tooBusyError) StatusCode() int { return http.StatusTooManyRequests }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var tb tooBusyError
	return errors.As(err, &tb)
}
