package services

import "errors"

var (
	// ErrValidation marks malformed, user-correctable input.
	ErrValidation = errors.New("invalid input")

	// ErrDuplicateUsername is returned when registering a taken username.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound is returned when a session outlives its user record.
	ErrUserNotFound = errors.New("user not found")

	// ErrUnauthenticated is returned when no live session backs the request.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrStoreUnavailable wraps backing store failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)
