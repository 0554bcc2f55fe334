// Package employee holds the roster's record types, the wire shape used by
// the list store, and the validation rules a draft must pass before any
// mutating call is issued.
package employee

import (
	"fmt"
	"strings"
	"time"
)

// Record is an employee as returned by the list store. A Record always has a
// store-assigned ID.
type Record struct {
	ID             int
	Name           string
	HireDate       time.Time
	JobDescription string
}

// Draft is the form-local working copy of a record. ID is nil until the
// store has created the item.
type Draft struct {
	ID             *int
	Name           string
	HireDate       string
	JobDescription string
}

// NewDraft returns an empty draft for the create flow.
func NewDraft() Draft {
	return Draft{}
}

// DraftFrom copies rec into a fresh draft. The result shares no memory with rec.
func DraftFrom(rec Record) Draft {
	id := rec.ID
	return Draft{
		ID:             &id,
		Name:           rec.Name,
		HireDate:       FormatHireDate(rec.HireDate),
		JobDescription: rec.JobDescription,
	}
}

// IsNew reports whether the draft has not been created in the store yet.
func (d Draft) IsNew() bool {
	return d.ID == nil
}

// Clone returns a deep copy of the draft.
func (d Draft) Clone() Draft {
	out := d
	if d.ID != nil {
		id := *d.ID
		out.ID = &id
	}
	return out
}

// Get returns the raw value of a single field.
func (d Draft) Get(field Field) string {
	switch field {
	case FieldName:
		return d.Name
	case FieldHireDate:
		return d.HireDate
	case FieldJobDescription:
		return d.JobDescription
	}
	return ""
}

// Set updates a single field on the draft.
func (d *Draft) Set(field Field, value string) error {
	switch field {
	case FieldName:
		d.Name = value
	case FieldHireDate:
		d.HireDate = value
	case FieldJobDescription:
		d.JobDescription = value
	default:
		return fmt.Errorf("employee: unknown field %q", string(field))
	}
	return nil
}

// Payload builds the write body for the draft. The draft must be valid; the
// hire date is normalised to an RFC 3339 UTC timestamp.
func (d Draft) Payload() (Payload, error) {
	if errs := Validate(d); len(errs) > 0 {
		return Payload{}, errs
	}
	hired, err := ParseHireDate(d.HireDate)
	if err != nil {
		return Payload{}, err
	}
	name := strings.TrimSpace(d.Name)
	return Payload{
		Title:          name,
		Name:           name,
		HireDate:       FormatHireDate(hired),
		JobDescription: strings.TrimSpace(d.JobDescription),
	}, nil
}

// Item is the list item wire shape. Title mirrors Name on write and is
// ignored on read.
type Item struct {
	ID             int    `json:"Id"`
	Title          string `json:"Title,omitempty"`
	Name           string `json:"Name"`
	HireDate       string `json:"HireDate"`
	JobDescription string `json:"JobDescription"`
}

// Record converts a wire item into a Record.
func (it Item) Record() (Record, error) {
	hired, err := ParseHireDate(it.HireDate)
	if err != nil {
		return Record{}, fmt.Errorf("employee: item %d: %w", it.ID, err)
	}
	return Record{
		ID:             it.ID,
		Name:           it.Name,
		HireDate:       hired,
		JobDescription: it.JobDescription,
	}, nil
}

// Payload is the JSON body sent on create and update.
type Payload struct {
	Title          string `json:"Title"`
	Name           string `json:"Name"`
	HireDate       string `json:"HireDate"`
	JobDescription string `json:"JobDescription"`
}

// ItemEnvelope is the body returned by the items collection endpoint.
type ItemEnvelope struct {
	Value []Item `json:"value"`
}
