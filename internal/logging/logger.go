package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kingrea/roster/internal/config"
)

// Options controls encoding and rotation of the roster log.
type Options struct {
	Level      string
	JSON       bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Console tees entries to stderr. The TUI leaves it off since the
	// terminal belongs to the UI.
	Console bool
	// Stderr overrides the console sink, mostly for tests.
	Stderr io.Writer
}

// OptionsFromConfig reads the log section of the project config.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{Level: "info"}
	}
	raw := cfg.Project.Log
	return Options{
		Level:      raw.Level,
		JSON:       raw.JSON,
		MaxSizeMB:  raw.MaxSizeMB,
		MaxBackups: raw.MaxBackups,
		MaxAgeDays: raw.MaxAgeDays,
	}
}

// New builds a zap logger that appends to .roster/logs/roster.log under
// projectDir so users can inspect failures after the UI exits. The returned
// func flushes buffered entries and closes the file.
func New(projectDir string, opts Options) (*zap.Logger, func(), error) {
	logDir := filepath.Join(projectDir, config.RosterDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	return NewAt(filepath.Join(logDir, "roster.log"), opts)
}

// NewAt is New with an explicit file path.
func NewAt(path string, opts Options) (*zap.Logger, func(), error) {
	var lvl zapcore.Level
	if err := lvl.Set(opts.Level); err != nil {
		lvl = zapcore.InfoLevel
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    max(1, opts.MaxSizeMB),
		MaxBackups: max(0, opts.MaxBackups),
		MaxAge:     max(0, opts.MaxAgeDays),
		Compress:   opts.Compress,
	}
	cores := []zapcore.Core{
		zapcore.NewCore(fileEncoder(opts.JSON), zapcore.AddSync(rotWriter{rotator}), lvl),
	}
	if opts.Console {
		var out io.Writer = os.Stderr
		if opts.Stderr != nil {
			out = opts.Stderr
		}
		cores = append(cores, zapcore.NewCore(consoleEncoder(), zapcore.AddSync(out), lvl))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	cleanup := func() {
		_ = logger.Sync()
		_ = rotator.Close()
	}
	return logger, cleanup, nil
}

func fileEncoder(json bool) zapcore.Encoder {
	if json {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.TimeKey = "ts"
		cfg.EncodeCaller = zapcore.ShortCallerEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func consoleEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// rotWriter keeps zap's Sync from touching the rotated file handle.
type rotWriter struct{ *lumberjack.Logger }

func (w rotWriter) Write(p []byte) (int, error) { return w.Logger.Write(p) }
func (w rotWriter) Sync() error                 { return nil }
