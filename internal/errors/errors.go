package errors

import (
	"errors"
	"fmt"
)

// Common error types for the administration console
var (
	// Session errors
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrAlreadyInitialized = errors.New("session already initialized")
	ErrTokenRefresh       = errors.New("token refresh failed")

	// Authorization errors
	ErrDenied = errors.New("access denied")

	// API errors
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
