package coordinator

import (
	"errors"

	"github.com/kingrea/roster/internal/employee"
)

var (
	// ErrNothingPending is returned by Confirm when no action awaits confirmation.
	ErrNothingPending = errors.New("coordinator: nothing to confirm")
	// ErrNotEditing is returned when a delete is requested for an unsaved draft.
	ErrNotEditing = errors.New("coordinator: no saved record selected")
	// ErrMutationInFlight rejects a second mutation of a record whose first
	// mutation has not finished.
	ErrMutationInFlight = errors.New("coordinator: a change to this record is already in progress")
	// ErrNotFound is returned when selecting a record that is not in the list.
	ErrNotFound = errors.New("coordinator: record not found")
)

// ValidationError reports a draft that failed validation. It never reaches
// the network.
type ValidationError struct {
	Fields employee.Errors
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	return "validation failed: " + e.Fields.Error()
}
