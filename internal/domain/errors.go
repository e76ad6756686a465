package domain

import "errors"

var (
	// ErrEmptyUpload is returned when an image upload carries no bytes.
	ErrEmptyUpload = errors.New("image upload failed: empty file payload")

	// ErrNoData is returned when a write succeeds but the backend returns no row.
	ErrNoData = errors.New("no data returned")

	// ErrNotFound is returned when a required entity does not exist.
	ErrNotFound = errors.New("not found")

	ErrInvalidArgument = errors.New("invalid argument")
)
