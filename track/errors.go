package track

import "errors"

// ErrNotFound is returned when no tracked content matches the lookup.
var ErrNotFound = errors.New("track: content not found")

// ErrInvalidInput is returned when a submission is missing required fields.
var ErrInvalidInput = errors.New("track: invalid input")
