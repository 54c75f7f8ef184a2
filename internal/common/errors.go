// Package common defines shared constants and sentinel errors used across
// workdeck components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrUserDoesNotExist  = errors.New("user does not exist")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrGroupDoesNotExist = errors.New("group does not exist")

	// Directory-service errors.
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrEmailValidationFailed = errors.New("email validation failed")
	ErrNotificationNotSent   = errors.New("notification not sent")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Auth errors (invalid, malformed or outdated token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
