package tui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/roster/internal/coordinator"
	"github.com/kingrea/roster/internal/employee"
	"github.com/kingrea/roster/internal/logbook"
)

type fakeStore struct {
	mu        sync.Mutex
	records   []employee.Record
	creates   []employee.Payload
	updates   []int
	deletes   []int
	listErr   error
	updateErr error
}

func (f *fakeStore) List(context.Context) ([]employee.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]employee.Record(nil), f.records...), nil
}

func (f *fakeStore) Create(_ context.Context, p employee.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, p)
	hired, _ := employee.ParseHireDate(p.HireDate)
	f.records = append(f.records, employee.Record{ID: len(f.records) + 10, Name: p.Name, HireDate: hired, JobDescription: p.JobDescription})
	return nil
}

func (f *fakeStore) Update(_ context.Context, id int, _ employee.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, id)
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	kept := f.records[:0]
	for _, rec := range f.records {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	f.records = kept
	return nil
}

func seeded() *fakeStore {
	return &fakeStore{records: []employee.Record{
		{ID: 1, Name: "Ann", HireDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), JobDescription: "Eng"},
		{ID: 2, Name: "Bob", HireDate: time.Date(2019, 5, 5, 0, 0, 0, 0, time.UTC), JobDescription: "Ops"},
	}}
}

func newTestApp(t *testing.T, store coordinator.Store, opts ...AppOption) *App {
	t.Helper()
	app := NewApp(coordinator.New(store), opts...)
	t.Cleanup(app.Close)
	return runCommands(t, app, app.mountCmd())
}

// press feeds keys to the app, discarding the cursor-blink commands the
// text widgets return.
func press(t *testing.T, app *App, keys ...tea.KeyMsg) (*App, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, key := range keys {
		var model tea.Model
		model, cmd = app.Update(key)
		app = model.(*App)
	}
	return app, cmd
}

func typed(text string) []tea.KeyMsg {
	keys := make([]tea.KeyMsg, 0, len(text))
	for _, r := range text {
		keys = append(keys, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return keys
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func TestMountRendersRecords(t *testing.T) {
	app := newTestApp(t, seeded())
	view := app.View()
	for _, want := range []string{"Ann", "Bob", "Hired On", "New employee", "[ctrl+s] Create"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "[ctrl+d] Delete") {
		t.Fatalf("delete button must only show while editing")
	}
}

func TestEmptyAndErrorStates(t *testing.T) {
	app := newTestApp(t, &fakeStore{})
	if view := app.View(); !strings.Contains(view, "No employees found.") {
		t.Fatalf("empty view:\n%s", view)
	}
	app = newTestApp(t, &fakeStore{listErr: errors.New("HTTP 500: boom")})
	if view := app.View(); !strings.Contains(view, "Error loading employees: HTTP 500: boom") {
		t.Fatalf("error view:\n%s", view)
	}
}

func TestSearchFiltersWithoutTouchingSelection(t *testing.T) {
	app := newTestApp(t, seeded())
	app, _ = press(t, app, typed("/bo")...)
	state := app.coord.List().State()
	if state.Filter != "bo" || len(state.Filtered) != 1 || state.Filtered[0].Name != "Bob" {
		t.Fatalf("filter state = %+v", state)
	}
	if len(app.records.Items()) != 1 {
		t.Fatalf("list rows = %d", len(app.records.Items()))
	}
	app, _ = press(t, app, key(tea.KeyEsc))
	if app.focus != focusList {
		t.Fatalf("esc should return focus to the list")
	}
}

func TestCreateThroughConfirmDialog(t *testing.T) {
	store := &fakeStore{}
	app := newTestApp(t, store)

	keys := append([]tea.KeyMsg{}, typed("n")...)
	keys = append(keys, typed("Cy")...)
	keys = append(keys, key(tea.KeyTab))
	keys = append(keys, typed("2022-03-04")...)
	keys = append(keys, key(tea.KeyTab))
	keys = append(keys, typed("Support")...)
	keys = append(keys, key(tea.KeyCtrlS))
	app, _ = press(t, app, keys...)

	if view := app.View(); !strings.Contains(view, "Confirm Save") || !strings.Contains(view, "[y] Yes, save") {
		t.Fatalf("expected save dialog:\n%s", view)
	}
	app, cmd := press(t, app, typed("y")...)
	app = runCommands(t, app, cmd)

	if len(store.creates) != 1 {
		t.Fatalf("creates = %+v", store.creates)
	}
	got := store.creates[0]
	if got.Name != "Cy" || got.Title != "Cy" || got.HireDate != "2022-03-04T00:00:00Z" || got.JobDescription != "Support" {
		t.Fatalf("payload = %+v", got)
	}
	if app.statusMsg != "Employee added successfully" {
		t.Fatalf("status = %q", app.statusMsg)
	}
	if app.focus != focusList || len(app.records.Items()) != 1 {
		t.Fatalf("after create focus=%d rows=%d", app.focus, len(app.records.Items()))
	}
}

func TestInvalidDraftShowsFieldErrors(t *testing.T) {
	store := &fakeStore{}
	app := newTestApp(t, store)
	app, _ = press(t, app, append(typed("n"), key(tea.KeyCtrlS))...)
	view := app.View()
	for _, want := range []string{"Name is required.", "Hire Date is required.", "Job Description is required."} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
	if app.coord.Form().State().Pending != coordinator.ConfirmNone {
		t.Fatalf("invalid draft must not open the dialog")
	}
	app, _ = press(t, app, typed("A")...)
	if strings.Contains(app.View(), "Name is required.") {
		t.Fatalf("typing should clear the field's error")
	}
}

func TestEditDeleteAndDismiss(t *testing.T) {
	store := seeded()
	app := newTestApp(t, store)
	app, _ = press(t, app, key(tea.KeyEnter))
	if app.focus != focusForm || app.inputs[employee.FieldName].Value() != "Ann" {
		t.Fatalf("enter should load Ann into the form")
	}
	if got := app.inputs[employee.FieldHireDate].Value(); got != "2020-01-01" {
		t.Fatalf("hire date input = %q", got)
	}
	if view := app.View(); !strings.Contains(view, "Edit employee") || !strings.Contains(view, "[ctrl+d] Delete") {
		t.Fatalf("edit view:\n%s", view)
	}

	app, _ = press(t, app, key(tea.KeyCtrlD))
	if !strings.Contains(app.View(), "Are you sure you want to delete this employee?") {
		t.Fatalf("expected delete dialog")
	}
	app, _ = press(t, app, typed("n")...)
	if app.coord.Form().State().Pending != coordinator.ConfirmNone || len(store.deletes) != 0 {
		t.Fatalf("dismiss must not delete")
	}

	app, _ = press(t, app, key(tea.KeyCtrlD))
	app, cmd := press(t, app, typed("y")...)
	app = runCommands(t, app, cmd)
	if len(store.deletes) != 1 || store.deletes[0] != 1 {
		t.Fatalf("deletes = %v", store.deletes)
	}
	snap := app.coord.Snapshot()
	if snap.List.Selected != nil || snap.Form.Editing() || len(snap.List.Records) != 1 {
		t.Fatalf("after delete: %+v", snap.List)
	}
	if app.statusMsg != "Employee deleted" {
		t.Fatalf("status = %q", app.statusMsg)
	}
}

func TestUpdateFailureKeepsDialogWithError(t *testing.T) {
	store := seeded()
	store.updateErr = errors.New("Update failed (HTTP 412): stale")
	app := newTestApp(t, store)
	app, _ = press(t, app, key(tea.KeyEnter), key(tea.KeyCtrlS))
	app, cmd := press(t, app, typed("y")...)
	app = runCommands(t, app, cmd)

	state := app.coord.Form().State()
	if state.Saving || state.Pending != coordinator.ConfirmSave {
		t.Fatalf("failure should keep the dialog open: %+v", state)
	}
	if view := app.View(); !strings.Contains(view, "Update failed (HTTP 412): stale") {
		t.Fatalf("error not rendered:\n%s", view)
	}

	store.mu.Lock()
	store.updateErr = nil
	store.mu.Unlock()
	app, cmd = press(t, app, key(tea.KeyEnter))
	app = runCommands(t, app, cmd)
	if len(store.updates) != 1 || app.statusMsg != "Employee updated successfully" {
		t.Fatalf("retry updates=%v status=%q", store.updates, app.statusMsg)
	}
}

func TestCancelReturnsToCreateMode(t *testing.T) {
	app := newTestApp(t, seeded())
	app, _ = press(t, app, key(tea.KeyEnter), key(tea.KeyEsc))
	snap := app.coord.Snapshot()
	if snap.List.Selected != nil || snap.Form.Editing() || app.focus != focusList {
		t.Fatalf("cancel should clear the selection")
	}
	if app.inputs[employee.FieldName].Value() != "" {
		t.Fatalf("cancel should clear the form")
	}
}

func TestChangeNotificationsWakeTheProgram(t *testing.T) {
	app := newTestApp(t, seeded())
	app.coord.List().SetFilter("ann")
	msg := app.waitForChange()()
	if _, ok := msg.(changeMsg); !ok {
		t.Fatalf("msg = %T", msg)
	}
	model, _ := app.Update(msg)
	app = model.(*App)
	if len(app.records.Items()) != 1 {
		t.Fatalf("rows after change = %d", len(app.records.Items()))
	}
	app.Close()
	if msg := app.waitForChange()(); msg != nil {
		t.Fatalf("closed app should stop delivering changes, got %T", msg)
	}
}

func TestLogPanelShowsJourney(t *testing.T) {
	lb, err := logbook.New(filepath.Join(t.TempDir(), "journey.log"))
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	app := newTestApp(t, seeded(), WithLogbook(lb), WithTitle("Staff"))
	view := app.View()
	if !strings.Contains(view, "Loaded 2 employees") || !strings.Contains(view, "STAFF") {
		t.Fatalf("view:\n%s", view)
	}
}

func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			break
		}
		nextModel, nextCmd := app.Update(msg)
		var ok bool
		app, ok = nextModel.(*App)
		if !ok {
			t.Fatalf("unexpected model type: %T", nextModel)
		}
		cmd = nextCmd
	}
	return app
}
