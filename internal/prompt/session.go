package prompt

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kingrea/roster/internal/coordinator"
	"github.com/kingrea/roster/internal/employee"
)

// ErrNoRecords is returned when a flow needs a record and the list is empty.
var ErrNoRecords = errors.New("prompt: no employees found")

// Session runs list/add/edit/delete flows against a mounted coordinator.
type Session struct {
	coord  *coordinator.Coordinator
	driver Driver
}

// NewSession pairs a coordinator with a prompt driver.
func NewSession(coord *coordinator.Coordinator, driver Driver) *Session {
	return &Session{coord: coord, driver: driver}
}

// List prints the current records, or the load error if the last refresh failed.
func (s *Session) List(ctx context.Context) error {
	state := s.coord.List().State()
	if state.LoadError != "" {
		if err := s.driver.Info(ctx, "Error loading employees: "+state.LoadError); err != nil {
			return err
		}
		return fmt.Errorf("prompt: load employees: %s", state.LoadError)
	}
	return s.driver.Info(ctx, RenderTable(state.Filtered))
}

// RenderTable formats records as the No / Name / Job Description / Hired On table.
func RenderTable(records []employee.Record) string {
	if len(records) == 0 {
		return "No employees found."
	}
	rows := make([][]string, 0, len(records))
	for i, rec := range records {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			rec.Name,
			employee.PlainText(rec.JobDescription),
			employee.DisplayDate(rec.HireDate),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("No", "Name", "Job Description", "Hired On").
		Rows(rows...).
		String()
}

// Add collects a new record and creates it after confirmation.
func (s *Session) Add(ctx context.Context) error {
	s.coord.NewRecord()
	if err := s.fill(ctx, employee.Fields); err != nil {
		return err
	}
	return s.save(ctx, "Employee added successfully")
}

// Edit updates record id, or one picked from the list when id is zero.
func (s *Session) Edit(ctx context.Context, id int) error {
	if err := s.selectRecord(ctx, id); err != nil {
		return err
	}
	if err := s.fill(ctx, employee.Fields); err != nil {
		return err
	}
	return s.save(ctx, "Employee updated successfully")
}

// Delete removes record id, or one picked from the list when id is zero.
func (s *Session) Delete(ctx context.Context, id int) error {
	if err := s.selectRecord(ctx, id); err != nil {
		return err
	}
	form := s.coord.Form()
	if err := form.RequestDelete(); err != nil {
		return err
	}
	ok, err := s.driver.Confirm(ctx, ConfirmConfig{
		Message: "Confirm Delete: Are you sure you want to delete this employee?",
	})
	if err != nil {
		form.DismissConfirmation()
		return err
	}
	if !ok {
		form.DismissConfirmation()
		return s.driver.Info(ctx, "Nothing deleted.")
	}
	if err := form.Confirm(ctx); err != nil {
		return err
	}
	return s.driver.Info(ctx, "Employee deleted")
}

func (s *Session) selectRecord(ctx context.Context, id int) error {
	if id == 0 {
		picked, err := s.pick(ctx)
		if err != nil {
			return err
		}
		id = picked
	}
	if err := s.coord.List().SelectByID(id); err != nil {
		return fmt.Errorf("employee %d: %w", id, err)
	}
	return nil
}

func (s *Session) pick(ctx context.Context) (int, error) {
	records := s.coord.List().State().Filtered
	if len(records) == 0 {
		return 0, ErrNoRecords
	}
	options := make([]string, len(records))
	for i, rec := range records {
		options[i] = fmt.Sprintf("%d. %s (%s)", i+1, rec.Name, employee.DisplayDate(rec.HireDate))
	}
	idx, err := s.driver.Select(ctx, SelectConfig{Message: "Employee", Options: options, PageSize: 10})
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx >= len(records) {
		return 0, fmt.Errorf("prompt: selection %d out of range", idx)
	}
	return records[idx].ID, nil
}

// fill prompts for each field, defaulting to the draft's current value.
func (s *Session) fill(ctx context.Context, fields []employee.Field) error {
	form := s.coord.Form()
	for _, field := range fields {
		current := form.State().Draft.Get(field)
		var (
			value string
			err   error
		)
		switch field {
		case employee.FieldJobDescription:
			value, err = s.driver.TextArea(ctx, TextAreaConfig{Message: field.Label(), Default: current})
		case employee.FieldHireDate:
			value, err = s.driver.Input(ctx, InputConfig{
				Message: field.Label(),
				Default: employee.InputDate(current),
				Help:    "YYYY-MM-DD",
			})
		default:
			value, err = s.driver.Input(ctx, InputConfig{Message: field.Label(), Default: current})
		}
		if err != nil {
			return err
		}
		if err := form.SetField(field, value); err != nil {
			return err
		}
	}
	return nil
}

// save validates, re-prompting only the failing fields, then asks for
// confirmation and runs the store call.
func (s *Session) save(ctx context.Context, success string) error {
	form := s.coord.Form()
	for {
		err := form.RequestSave()
		if err == nil {
			break
		}
		var verr *coordinator.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		var failing []employee.Field
		for _, field := range employee.Fields {
			if msg, ok := verr.Fields[field]; ok {
				failing = append(failing, field)
				if err := s.driver.Info(ctx, msg); err != nil {
					return err
				}
			}
		}
		if err := s.fill(ctx, failing); err != nil {
			return err
		}
	}

	ok, err := s.driver.Confirm(ctx, ConfirmConfig{
		Message: "Confirm Save: Do you want to save the changes?",
		Default: true,
	})
	if err != nil {
		form.DismissConfirmation()
		return err
	}
	if !ok {
		form.DismissConfirmation()
		return s.driver.Info(ctx, "Nothing saved.")
	}
	if err := form.Confirm(ctx); err != nil {
		return err
	}
	return s.driver.Info(ctx, success)
}
