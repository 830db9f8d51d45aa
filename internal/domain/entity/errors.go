package entity

import "errors"

// Domain errors returned by repositories and usecases
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserNotVerified     = errors.New("user email not verified")
	ErrRouteNotFound       = errors.New("monitored route not found")
	ErrNotSubscribed       = errors.New("user is not subscribed to route")
	ErrRouteNotMonitoring  = errors.New("route is not in monitoring state")
	ErrRouteNotRestartable = errors.New("route monitoring is not finished")
	ErrProviderUnavailable = errors.New("seat availability provider unavailable")
)

// permanentError marks failures that must not be retried
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent wraps err so the task queue dead-letters it instead of retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err or any error it wraps was marked with Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
