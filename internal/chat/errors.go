package chat

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed or missing field. It is always
// returned before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type NotFoundError struct {
	Resource string
	Id       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Id)
}

// ConflictError is a duplicate-key race on creation. The registry recovers
// from it by looking the record up again, so it only escapes when that
// recovery itself fails.
type ConflictError struct {
	Resource string
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %v", e.Resource, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// ErrNotParticipant is returned when a user acts on a conversation they
// are not part of.
var ErrNotParticipant = errors.New("not a participant of the conversation")
