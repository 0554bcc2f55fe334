package employee

import (
	"sort"
	"strings"
)

// Field names one editable attribute of a draft.
type Field string

const (
	FieldName           Field = "name"
	FieldHireDate       Field = "hireDate"
	FieldJobDescription Field = "jobDescription"
)

// Fields lists the editable fields in form order.
var Fields = []Field{FieldName, FieldHireDate, FieldJobDescription}

// Label returns the human label used in forms and messages.
func (f Field) Label() string {
	switch f {
	case FieldName:
		return "Name"
	case FieldHireDate:
		return "Hire Date"
	case FieldJobDescription:
		return "Job Description"
	}
	return string(f)
}

// ParseField maps a field name back to a Field.
func ParseField(name string) (Field, bool) {
	for _, f := range Fields {
		if strings.EqualFold(string(f), strings.TrimSpace(name)) {
			return f, true
		}
	}
	return "", false
}

const (
	msgNameRequired     = "Name is required."
	msgHireDateRequired = "Hire Date is required."
	msgHireDateInvalid  = "Hire Date must be a valid date."
	msgJobRequired      = "Job Description is required."
)

// Errors maps a field to its validation message. Only failing fields are present.
type Errors map[Field]string

// Error joins the messages in form order so Errors can travel as an error.
func (e Errors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, f := range Fields {
		if msg, ok := e[f]; ok {
			msgs = append(msgs, msg)
		}
	}
	var extra []string
	for f, msg := range e {
		if _, known := ParseField(string(f)); !known {
			extra = append(extra, msg)
		}
	}
	sort.Strings(extra)
	return strings.Join(append(msgs, extra...), " ")
}

// Validate checks the required fields of d. It has no side effects.
func Validate(d Draft) Errors {
	errs := Errors{}
	if strings.TrimSpace(d.Name) == "" {
		errs[FieldName] = msgNameRequired
	}
	switch {
	case strings.TrimSpace(d.HireDate) == "":
		errs[FieldHireDate] = msgHireDateRequired
	default:
		if _, err := ParseHireDate(d.HireDate); err != nil {
			errs[FieldHireDate] = msgHireDateInvalid
		}
	}
	if strings.TrimSpace(d.JobDescription) == "" {
		errs[FieldJobDescription] = msgJobRequired
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// IsValid reports whether d passes every rule.
func IsValid(d Draft) bool {
	return len(Validate(d)) == 0
}
