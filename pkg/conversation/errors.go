package conversation

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("conversation not found")
	ErrNotIncluded  = errors.New("plan does not include saved conversations")
	ErrLimitReached = errors.New("saved conversation limit reached")
	ErrPersistence  = errors.New("conversation persistence failed")
	ErrInvalidInput = errors.New("invalid conversation")
)

var (
	ErrTitleRequired   = errors.New("title is required")
	ErrTitleTooLong    = errors.New("title exceeds maximum length")
	ErrTooManyMessages = errors.New("conversation has too many messages")
	ErrInvalidMessage  = errors.New("conversation contains an invalid message")
)

// LimitError reports the allowance a save ran into. It matches ErrLimitReached.
type LimitError struct {
	Limit int
	Count int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %d of %d", ErrLimitReached, e.Count, e.Limit)
}

func (e *LimitError) Is(target error) bool { return target == ErrLimitReached }
