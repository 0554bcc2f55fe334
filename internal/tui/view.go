package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/roster/internal/coordinator"
	"github.com/kingrea/roster/internal/employee"
)

var (
	borderColor = lipgloss.Color("#444444")
	accentColor = lipgloss.Color("#5B8DEF")
	errorColor  = lipgloss.Color("#FF6B6B")
	mutedColor  = lipgloss.Color("#888888")

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
)

func (a *App) paneWidths() (int, int) {
	width := a.width
	if width <= 0 {
		width = 100
	}
	formWidth := max(36, width*2/5)
	listWidth := width - formWidth - 4
	if listWidth < 30 {
		listWidth = width - 4
		formWidth = width - 4
	}
	return listWidth, formWidth
}

// View renders the header, the list and form panes, the log panel and the
// status line.
func (a *App) View() string {
	snap := a.coord.Snapshot()
	listWidth, formWidth := a.paneWidths()

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(errorColor).
		MarginBottom(1).
		Render("⬡ " + strings.ToUpper(a.title))

	left := paneStyle.Width(max(20, listWidth)).Render(a.renderListPane(snap.List))
	var right string
	if snap.Form.Pending != coordinator.ConfirmNone {
		right = a.renderDialog(snap.Form)
	} else {
		right = a.renderForm(snap.Form)
	}
	rightBox := paneStyle.Width(max(20, formWidth)).Render(right)

	var body string
	if listWidth+formWidth+4 <= max(a.width, 100) {
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, rightBox)
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, left, rightBox)
	}

	sections := []string{header, body}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(mutedColor).
		MarginTop(1).
		Render(a.renderFooter())
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

func (a *App) renderListPane(state coordinator.ListState) string {
	lines := []string{a.search.View(), ""}
	switch {
	case state.LoadError != "":
		lines = append(lines, errorStyle.Render("Error loading employees: "+state.LoadError))
	case state.Loading && len(state.Records) == 0:
		lines = append(lines, a.spinner.View()+" Loading employees...")
	case len(state.Filtered) == 0:
		lines = append(lines, mutedStyle.Render("No employees found."))
	default:
		if state.Loading {
			lines = append(lines, a.spinner.View()+" Refreshing...")
		}
		lines = append(lines, a.records.View())
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderForm(state coordinator.FormState) string {
	title := "New employee"
	if state.Editing() {
		title = "Edit employee"
	}
	lines := []string{headingStyle.Render(title), ""}
	for i, field := range employee.Fields {
		label := field.Label()
		if a.focus == focusForm && a.field == i {
			label = headingStyle.Render(label)
		}
		lines = append(lines, label)
		if field == employee.FieldJobDescription {
			lines = append(lines, a.job.View())
		} else {
			lines = append(lines, a.inputs[field].View())
		}
		if msg, ok := state.FieldErrors[field]; ok {
			lines = append(lines, errorStyle.Render(msg))
		}
		lines = append(lines, "")
	}
	lines = append(lines, renderButtons(state, a.spinner.View()))
	if state.LastError != "" {
		lines = append(lines, "", errorStyle.Render(state.LastError))
	}
	return strings.Join(lines, "\n")
}

// renderButtons shows the save action and, only while editing, delete and
// cancel.
func renderButtons(state coordinator.FormState, spin string) string {
	save := "Create"
	if state.Editing() {
		save = "Update"
	}
	if state.Saving {
		save = spin + " " + strings.TrimSuffix(save, "e") + "ing…"
	}
	buttons := []string{"[ctrl+s] " + save}
	if state.Editing() {
		buttons = append(buttons, "[ctrl+d] Delete", "[esc] Cancel")
	}
	return strings.Join(buttons, "   ")
}

func (a *App) renderDialog(state coordinator.FormState) string {
	title, text, yes := "Confirm Save", "Do you want to save the changes?", "Yes, save"
	if state.Pending == coordinator.ConfirmDelete {
		title, text, yes = "Confirm Delete", "Are you sure you want to delete this employee?", "Yes, delete"
	}
	lines := []string{headingStyle.Render(title), "", text, ""}
	if state.Saving {
		lines = append(lines, a.spinner.View()+" Working...")
	} else {
		lines = append(lines, fmt.Sprintf("[y] %s   [n] No", yes))
	}
	if state.LastError != "" {
		lines = append(lines, "", errorStyle.Render(state.LastError))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := headingStyle.Render(fmt.Sprintf("LOG · %s (%d)", fileName, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return paneStyle.Render(fmt.Sprintf("%s\n%s", head, body))
}

func (a *App) renderFooter() string {
	var hints string
	switch a.focus {
	case focusSearch:
		hints = "type to filter · enter/esc done"
	case focusForm:
		hints = "tab next field · ctrl+s save · esc cancel"
	default:
		hints = "enter edit · n new · / search · r refresh · q quit"
	}
	if a.statusMsg == "" {
		return hints
	}
	return a.statusMsg + " · " + hints
}
