package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound signals that a requested record does not exist in the store.
var ErrNotFound = errors.New("record not found")

// FieldErrors lists the mandatory root fields that are missing or violate a
// static constraint. It is collected before any store call is made.
type FieldErrors struct {
	Fields []string
}

func (e *FieldErrors) Error() string {
	return fmt.Sprintf("missing or invalid fields: %s", strings.Join(e.Fields, ", "))
}

// MediaError reports a single media intake violation. The whole intake batch
// it belongs to is rejected.
type MediaError struct {
	Message string
}

func (e *MediaError) Error() string {
	return e.Message
}

// RemoteError wraps the first store operation that failed during a save run.
// Operations completed before it remain applied.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("store operation %s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
