package queue

import "errors"

// ErrNotFound is returned when no instruction matches the lookup.
var ErrNotFound = errors.New("queue: instruction not found")

// ErrInvalidInput is returned when an enqueue is missing required fields.
var ErrInvalidInput = errors.New("queue: invalid input")

// ErrUnknownStatus is returned when a caller proposes a status outside the
// lifecycle, or proposes pending (the initial state is never a target).
var ErrUnknownStatus = errors.New("queue: unknown status")

// ErrInvalidTransition is returned when a proposed transition violates the
// state machine. The stored instruction is left unchanged.
var ErrInvalidTransition = errors.New("queue: invalid transition")

// ErrMissingResult is returned when a terminal transition lacks its
// required result payload.
var ErrMissingResult = errors.New("queue: missing result")
