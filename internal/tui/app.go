// internal/tui/app.go
//
// The roster's terminal UI. It follows The Elm Architecture like every
// bubbletea program, but owns no record state of its own: the coordinator
// holds the list, the selection and the draft, and this model only renders
// its snapshots and forwards key presses as intents.
//
// Store calls block, so they run inside tea.Cmds. Coordinator transitions
// (including the busy flag set while a call is in flight) arrive through a
// subscription that wakes the program via changeMsg.

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/roster/internal/coordinator"
	"github.com/kingrea/roster/internal/employee"
	"github.com/kingrea/roster/internal/logbook"
)

const defaultTitle = "Employee Details"

// paneFocus is the widget receiving key presses.
type paneFocus int

const (
	focusList paneFocus = iota
	focusSearch
	focusForm
)

type loadedMsg struct {
	err error
}

type confirmDoneMsg struct {
	action  coordinator.Confirmation
	editing bool
	err     error
}

type changeMsg struct{}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithLogbook attaches the journey log shown in the log panel.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

// WithTitle overrides the header title.
func WithTitle(title string) AppOption {
	return func(a *App) {
		if t := strings.TrimSpace(title); t != "" {
			a.title = t
		}
	}
}

// WithContext sets the context passed to store calls.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

// App is the bubbletea model for the roster screen.
type App struct {
	coord   *coordinator.Coordinator
	logbook *logbook.Logbook
	ctx     context.Context
	title   string

	records list.Model
	search  textinput.Model
	inputs  map[employee.Field]*textinput.Model
	job     textarea.Model
	spinner spinner.Model

	focus     paneFocus
	field     int
	statusMsg string
	ticking   bool

	changes     chan struct{}
	done        chan struct{}
	unsubscribe func()

	width  int
	height int
}

// recordItem implements list.Item for one row of the roster.
type recordItem struct {
	rec      employee.Record
	no       int
	selected bool
}

func (i recordItem) Title() string {
	marker := "  "
	if i.selected {
		marker = "● "
	}
	return fmt.Sprintf("%s%d. %s", marker, i.no, i.rec.Name)
}

func (i recordItem) Description() string {
	return fmt.Sprintf("%s · Hired On %s", employee.PlainText(i.rec.JobDescription), employee.DisplayDate(i.rec.HireDate))
}

func (i recordItem) FilterValue() string { return i.rec.Name }

// NewApp builds the UI over coord and subscribes to its transitions. Call
// Close when the program exits.
func NewApp(coord *coordinator.Coordinator, opts ...AppOption) *App {
	records := list.New(nil, list.NewDefaultDelegate(), 48, 20)
	records.Title = "Employees"
	records.SetShowStatusBar(false)
	records.SetFilteringEnabled(false)
	records.SetShowHelp(false)

	search := textinput.New()
	search.Placeholder = "Search by name"
	search.Prompt = "/ "

	name := textinput.New()
	name.Placeholder = "Full name"
	name.CharLimit = 255
	hired := textinput.New()
	hired.Placeholder = "YYYY-MM-DD"
	hired.CharLimit = 32

	job := textarea.New()
	job.Placeholder = "What do they do?"
	job.ShowLineNumbers = false
	job.CharLimit = 0
	job.SetHeight(4)
	job.SetWidth(48)

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	app := &App{
		coord:   coord,
		ctx:     context.Background(),
		title:   defaultTitle,
		records: records,
		search:  search,
		inputs: map[employee.Field]*textinput.Model{
			employee.FieldName:     &name,
			employee.FieldHireDate: &hired,
		},
		job:     job,
		spinner: spin,
		focus:   focusList,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.unsubscribe = coord.Subscribe(app.notify)
	app.syncRecords()
	return app
}

// Close drops the coordinator subscription and stops change delivery.
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
		close(a.done)
	}
}

func (a *App) notify() {
	select {
	case a.changes <- struct{}{}:
	default:
	}
}

// waitForChange blocks until the coordinator reports a transition or the
// app is closed.
func (a *App) waitForChange() tea.Cmd {
	changes, done := a.changes, a.done
	return func() tea.Msg {
		select {
		case <-done:
			return nil
		default:
		}
		select {
		case <-changes:
			return changeMsg{}
		case <-done:
			return nil
		}
	}
}

func (a *App) mountCmd() tea.Cmd {
	coord, ctx := a.coord, a.ctx
	return func() tea.Msg {
		return loadedMsg{err: coord.Mount(ctx)}
	}
}

func (a *App) refreshCmd() tea.Cmd {
	coord, ctx := a.coord, a.ctx
	return func() tea.Msg {
		return loadedMsg{err: coord.List().Refresh(ctx)}
	}
}

func (a *App) confirmCmd(state coordinator.FormState) tea.Cmd {
	form, ctx := a.coord.Form(), a.ctx
	action, editing := state.Pending, state.Editing()
	return func() tea.Msg {
		return confirmDoneMsg{action: action, editing: editing, err: form.Confirm(ctx)}
	}
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	a.logInfo("Session opened")
	return tea.Batch(a.mountCmd(), a.waitForChange())
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		listWidth, formWidth := a.paneWidths()
		a.records.SetSize(max(20, listWidth-4), max(6, msg.Height-16))
		a.job.SetWidth(max(20, formWidth-6))
		return a, nil

	case changeMsg:
		a.syncRecords()
		cmds := []tea.Cmd{a.waitForChange()}
		if a.busy() && !a.ticking {
			a.ticking = true
			cmds = append(cmds, a.spinner.Tick)
		}
		return a, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !a.busy() {
			a.ticking = false
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case loadedMsg:
		a.syncRecords()
		state := a.coord.List().State()
		if msg.err != nil {
			a.logWarn("Loading employees failed: %v", msg.err)
			return a, nil
		}
		a.logInfo("Loaded %d employees", len(state.Records))
		return a, nil

	case confirmDoneMsg:
		return a, a.handleConfirmDone(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.coord.Form().State().Pending != coordinator.ConfirmNone {
			return a, a.handleDialogKey(msg)
		}
		switch a.focus {
		case focusSearch:
			return a, a.handleSearchKey(msg)
		case focusForm:
			return a, a.handleFormKey(msg)
		default:
			return a.handleListKey(msg)
		}
	}
	return a, nil
}

func (a *App) busy() bool {
	snap := a.coord.Snapshot()
	return snap.Form.Saving || snap.List.Loading
}

func (a *App) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "/":
		a.focus = focusSearch
		return a, a.search.Focus()
	case "n":
		a.coord.NewRecord()
		a.statusMsg = ""
		return a, a.loadDraft()
	case "r":
		a.statusMsg = "Refreshing..."
		return a, a.refreshCmd()
	case "enter":
		item, ok := a.records.SelectedItem().(recordItem)
		if !ok {
			return a, nil
		}
		rec := item.rec
		if err := a.coord.List().Select(&rec); err != nil {
			a.statusMsg = err.Error()
			return a, nil
		}
		a.statusMsg = ""
		return a, a.loadDraft()
	}
	var cmd tea.Cmd
	a.records, cmd = a.records.Update(msg)
	return a, cmd
}

func (a *App) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "enter", "tab":
		a.search.Blur()
		a.focus = focusList
		return nil
	}
	var cmd tea.Cmd
	a.search, cmd = a.search.Update(msg)
	a.coord.List().SetFilter(a.search.Value())
	a.syncRecords()
	return cmd
}

func (a *App) handleFormKey(msg tea.KeyMsg) tea.Cmd {
	form := a.coord.Form()
	switch msg.String() {
	case "tab":
		return a.focusField(a.field + 1)
	case "shift+tab":
		return a.focusField(a.field - 1)
	case "esc":
		// Cancel: back to create mode with nothing selected.
		a.coord.NewRecord()
		a.loadDraft()
		a.blurForm()
		a.focus = focusList
		a.statusMsg = ""
		return nil
	case "ctrl+s":
		if form.State().Saving {
			return nil
		}
		if err := form.RequestSave(); err != nil {
			var verr *coordinator.ValidationError
			if errors.As(err, &verr) {
				a.statusMsg = "Please fix the highlighted fields."
			} else {
				a.statusMsg = err.Error()
			}
		}
		return nil
	case "ctrl+d":
		state := form.State()
		if !state.Editing() || state.Saving {
			return nil
		}
		if err := form.RequestDelete(); err != nil {
			a.statusMsg = err.Error()
		}
		return nil
	}

	field := employee.Fields[a.field]
	var (
		cmd   tea.Cmd
		value string
	)
	if field == employee.FieldJobDescription {
		a.job, cmd = a.job.Update(msg)
		value = a.job.Value()
	} else {
		input := a.inputs[field]
		*input, cmd = input.Update(msg)
		value = input.Value()
	}
	if err := form.SetField(field, value); err != nil {
		a.statusMsg = err.Error()
	}
	return cmd
}

func (a *App) handleDialogKey(msg tea.KeyMsg) tea.Cmd {
	form := a.coord.Form()
	state := form.State()
	if state.Saving {
		return nil
	}
	switch msg.String() {
	case "y", "enter":
		return a.confirmCmd(state)
	case "n", "esc":
		form.DismissConfirmation()
	}
	return nil
}

func (a *App) handleConfirmDone(msg confirmDoneMsg) tea.Cmd {
	a.syncRecords()
	if msg.err != nil {
		switch {
		case errors.Is(msg.err, coordinator.ErrMutationInFlight):
			a.statusMsg = "A change to this employee is already in progress."
		default:
			var verr *coordinator.ValidationError
			if errors.As(msg.err, &verr) {
				a.statusMsg = "Please fix the highlighted fields."
			} else {
				a.statusMsg = ""
			}
		}
		a.logWarn("%s failed: %v", titleCase(msg.action.String()), msg.err)
		return nil
	}

	switch {
	case msg.action == coordinator.ConfirmDelete:
		a.statusMsg = "Employee deleted"
	case msg.editing:
		a.statusMsg = "Employee updated successfully"
	default:
		a.statusMsg = "Employee added successfully"
	}
	a.logInfo(a.statusMsg)
	a.loadDraft()
	a.blurForm()
	a.focus = focusList
	return nil
}

// loadDraft copies the coordinator's draft into the form widgets and focuses
// the first field.
func (a *App) loadDraft() tea.Cmd {
	draft := a.coord.Form().State().Draft
	a.inputs[employee.FieldName].SetValue(draft.Name)
	a.inputs[employee.FieldHireDate].SetValue(employee.InputDate(draft.HireDate))
	a.job.SetValue(draft.JobDescription)
	a.syncRecords()
	a.focus = focusForm
	return a.focusField(0)
}

func (a *App) focusField(idx int) tea.Cmd {
	n := len(employee.Fields)
	a.field = ((idx % n) + n) % n
	a.blurForm()
	field := employee.Fields[a.field]
	if field == employee.FieldJobDescription {
		return a.job.Focus()
	}
	return a.inputs[field].Focus()
}

func (a *App) blurForm() {
	for _, input := range a.inputs {
		input.Blur()
	}
	a.job.Blur()
}

// syncRecords rebuilds the list rows from the filtered records.
func (a *App) syncRecords() {
	state := a.coord.List().State()
	selectedID := -1
	if state.Selected != nil {
		selectedID = state.Selected.ID
	}
	items := make([]list.Item, len(state.Filtered))
	for i, rec := range state.Filtered {
		items[i] = recordItem{rec: rec, no: i + 1, selected: rec.ID == selectedID}
	}
	idx := a.records.Index()
	a.records.SetItems(items)
	if idx >= len(items) {
		idx = len(items) - 1
	}
	if idx >= 0 {
		a.records.Select(idx)
	}
}

func titleCase(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
