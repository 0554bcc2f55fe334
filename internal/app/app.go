// Package app assembles the pieces every roster binary needs: project
// config, the zap logger, the journey logbook, the store client and the
// coordinator on top of them.
package app

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kingrea/roster/internal/config"
	"github.com/kingrea/roster/internal/coordinator"
	"github.com/kingrea/roster/internal/logbook"
	"github.com/kingrea/roster/internal/logging"
	"github.com/kingrea/roster/internal/store"
)

// Options tune Open for the calling binary.
type Options struct {
	// Console tees log entries to Stderr. Off for the full-screen UI.
	Console bool
	Stderr  io.Writer
}

// Runtime is an opened project. Close it when done.
type Runtime struct {
	Config      *config.Config
	Logger      *zap.Logger
	Logbook     *logbook.Logbook
	Client      *store.Client
	Coordinator *coordinator.Coordinator

	closeLog func()
}

// Open initializes .roster under projectDir and builds a coordinator over
// the configured store. Nothing is fetched until the coordinator is mounted.
func Open(projectDir string, opts Options) (*Runtime, error) {
	if err := config.InitRosterDir(projectDir); err != nil {
		return nil, fmt.Errorf("app: init .roster: %w", err)
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}

	logOpts := logging.OptionsFromConfig(cfg)
	logOpts.Console = opts.Console
	logOpts.Stderr = opts.Stderr
	logger, closeLog, err := logging.NewAt(cfg.LogFilePath(), logOpts)
	if err != nil {
		return nil, err
	}

	lb, err := logbook.New(cfg.JourneyLogPath(), logbook.WithMirror(logger.Named("journey")))
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("app: open logbook: %w", err)
	}

	clientOpts := []store.Option{
		store.WithTimeout(cfg.Timeout()),
		store.WithLogger(logger.Named("store")),
	}
	if token := cfg.Token(); token != "" {
		clientOpts = append(clientOpts, store.WithAuthorizer(store.BearerToken(token)))
	}
	client, err := store.New(cfg.StoreConfig(), clientOpts...)
	if err != nil {
		closeLog()
		return nil, err
	}

	logger.Info("project opened",
		zap.String("dir", projectDir),
		zap.String("collection", cfg.Project.Store.Collection),
		zap.String("base_url", cfg.Project.Store.BaseURL),
		zap.Bool("authorized", cfg.Token() != ""),
	)
	return &Runtime{
		Config:      cfg,
		Logger:      logger,
		Logbook:     lb,
		Client:      client,
		Coordinator: coordinator.New(client, coordinator.WithLogger(logger.Named("coordinator"))),
		closeLog:    closeLog,
	}, nil
}

// Close flushes and closes the log file.
func (r *Runtime) Close() {
	if r == nil || r.closeLog == nil {
		return
	}
	r.Logger.Info("project closed")
	r.closeLog()
	r.closeLog = nil
}
