package agent

import "errors"

// ErrNoInsertionPoint is returned when no candidate block qualifies for
// the instruction: wrong word count range everywhere, or a non-empty
// keyword set that no block mentions.
var ErrNoInsertionPoint = errors.New("agent: no suitable insertion point found")

// ErrContentTooShort is returned when the chosen block splits into fewer
// than two sentences. A block that cannot be truncated after its first
// sentence is unsafe to mutate at all.
var ErrContentTooShort = errors.New("agent: content too short to split")
