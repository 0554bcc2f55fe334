// cmd/roster/main.go
//
// Entry point for the roster terminal UI. It opens the project in the
// current (or -C) directory, mounts the coordinator through the UI's Init
// and tears everything down when the user quits.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/roster/internal/app"
	"github.com/kingrea/roster/internal/tui"
)

func main() {
	dir := flag.String("C", "", "project directory (defaults to cwd)")
	flag.Parse()

	project, err := projectDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving project directory: %v\n", err)
		os.Exit(1)
	}

	rt, err := app.Open(project, app.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening project: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	ui := tui.NewApp(rt.Coordinator,
		tui.WithLogbook(rt.Logbook),
		tui.WithTitle(rt.Config.Title()),
		tui.WithContext(ctx),
	)
	p := tea.NewProgram(ui, tea.WithAltScreen(), tea.WithContext(ctx))

	_, runErr := p.Run()
	ui.Close()
	rt.Logbook.Info("Session closed")
	rt.Close()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", runErr)
		os.Exit(1)
	}
}

func projectDir(flagValue string) (string, error) {
	if flagValue == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return cwd, nil
	}
	return filepath.Abs(flagValue)
}
