package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
	ErrInvalidAlert  = errors.New("invalid alert parameters")
	ErrInvalidConfig = errors.New("invalid scan config")
	ErrNotConfigured = errors.New("not configured")
)
