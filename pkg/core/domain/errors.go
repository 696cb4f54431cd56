package domain

import "errors"

var (
	// ErrInvalidURL is returned when a submitted destination is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")

	// ErrTitleFetch is returned when the destination page could not be read for a title.
	ErrTitleFetch = errors.New("unable to read destination title")

	// ErrNotFound is returned when no record matches. A short code miss is not a failure.
	ErrNotFound = errors.New("not found")

	// ErrPersistence wraps any storage read or write failure.
	ErrPersistence = errors.New("persistence failure")

	// ErrCodeExhausted is returned when no unused short code could be generated.
	ErrCodeExhausted = errors.New("unable to generate a unique short code")

	// ErrDuplicate is returned by repositories when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")

	ErrInvalidInput       = errors.New("invalid input")
	ErrUserExists         = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthorized       = errors.New("unauthorized")
)
