package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is returned by New when the store location is incomplete.
var ErrInvalidConfig = errors.New("store: invalid config")

// Op identifies which store call failed.
type Op string

const (
	OpList   Op = "list"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// TransportError is any failed store call: a non-2xx response (Status set,
// Body holding the response text) or a request that never produced a usable
// response (Status zero, Err set).
type TransportError struct {
	Op     Op
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	if e.Status == 0 {
		if e.Err == nil {
			return fmt.Sprintf("%s failed", e.Op)
		}
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	body := strings.TrimSpace(e.Body)
	switch e.Op {
	case OpUpdate:
		return fmt.Sprintf("Update failed (HTTP %d): %s", e.Status, body)
	case OpDelete:
		return fmt.Sprintf("Delete failed (HTTP %d): %s", e.Status, body)
	default:
		return fmt.Sprintf("HTTP %d: %s", e.Status, body)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsStatus reports whether err is a TransportError carrying the given HTTP status.
func IsStatus(err error, status int) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.Status == status
}
