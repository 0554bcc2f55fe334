package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/kingrea/roster/internal/app"
	"github.com/kingrea/roster/internal/prompt"
)

const usage = `usage: rosterctl <list|add|edit|delete> [flags]

  list               print the roster
  add                create an employee
  edit   [-id N]     update an employee (pick from the list without -id)
  delete [-id N]     delete an employee (pick from the list without -id)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	dir := fs.String("C", "", "project directory (defaults to cwd)")
	id := fs.Int("id", 0, "employee id for edit/delete")
	yes := fs.Bool("yes", false, "answer yes to confirmation prompts")
	verbose := fs.Bool("v", false, "also write log entries to stderr")
	sets := keyValueFlag{}
	fs.Var(&sets, "set", "field answer (name=..., hireDate=..., jobDescription=...; repeatable)")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])

	project := *dir
	if project == "" {
		var err error
		project, err = os.Getwd()
		if err != nil {
			die("determine working directory: %v", err)
		}
	}
	absoluteProject, err := filepath.Abs(project)
	if err != nil {
		die("resolve project dir: %v", err)
	}

	presets, err := sets.fields()
	if err != nil {
		die("%v", err)
	}

	rt, err := app.Open(absoluteProject, app.Options{Console: *verbose})
	if err != nil {
		die("open project: %v", err)
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	driver := newPresetDriver(prompt.NewSurveyDriver(os.Stdout), presets, *yes)
	session := prompt.NewSession(rt.Coordinator, driver)

	// A failed load is reported by the list command itself.
	if err := rt.Coordinator.Mount(ctx); err != nil && command != "list" {
		rt.Close()
		die("Error loading employees: %v", err)
	}

	switch strings.ToLower(command) {
	case "list", "ls":
		err = session.List(ctx)
	case "add", "new":
		err = session.Add(ctx)
	case "edit", "update":
		err = session.Edit(ctx, *id)
	case "delete", "rm":
		err = session.Delete(ctx, *id)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		if errors.Is(err, prompt.ErrAborted) {
			rt.Logbook.Warn("rosterctl %s aborted", command)
			rt.Close()
			os.Exit(130)
		}
		rt.Logbook.Error("rosterctl %s failed: %v", command, err)
		rt.Close()
		die("%s: %v", command, err)
	}
	rt.Logbook.Info("rosterctl %s done", command)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
