// cmd/liststore/main.go
//
// Development list server. It serves the SharePoint-style list REST surface
// the roster client talks to, backed by an in-memory list, so the UI can be
// exercised without a tenant.
//
//	liststore [-addr 127.0.0.1:8787] [-list EmployeeDetails] [-seed seed.yaml]
//	          [-jwt-secret s] [-rate 20] [-site /sites/roster] [-log file]
//	liststore token -jwt-secret s [-sub roster] [-name Dev] [-ttl 24h]

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/roster/internal/liststore"
	"github.com/kingrea/roster/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:]); err != nil {
			die("token: %v", err)
		}
		return
	}
	if err := runServe(os.Args[1:]); err != nil {
		die("liststore: %v", err)
	}
}

func runServe(args []string) error {
	settings := liststore.DefaultSettings()
	fs := flag.NewFlagSet("liststore", flag.ExitOnError)
	addr := fs.String("addr", settings.Address(), "listen address (host:port)")
	fs.StringVar(&settings.List, "list", settings.List, "list title to serve")
	fs.StringVar(&settings.SeedPath, "seed", "", "YAML file with initial items")
	fs.StringVar(&settings.JWTSecret, "jwt-secret", settings.JWTSecret, "require HS256 bearer tokens signed with this secret")
	fs.Float64Var(&settings.Rate, "rate", settings.Rate, "requests per second across all callers (0 disables throttling)")
	fs.StringVar(&settings.SitePath, "site", settings.SitePath, "site path the list API is mounted under")
	logFile := fs.String("log", "", "also write JSON logs to this file")
	level := fs.String("level", "info", "log level")
	_ = fs.Parse(args)

	host, port, err := splitAddr(*addr)
	if err != nil {
		return err
	}
	settings.Host, settings.Port = host, port
	settings.Burst = 0
	settings.Normalize()

	logger, cleanup, err := newLogger(*logFile, *level)
	if err != nil {
		return err
	}
	defer cleanup()

	_, handler, err := liststore.FromSettings(settings, logger)
	if err != nil {
		return err
	}
	srv := liststore.NewServer(settings, handler, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("list store ready",
		zap.String("base_url", srv.SiteURL()),
		zap.String("health", "http://"+srv.Addr()+"/healthz"),
		zap.Bool("auth", settings.JWTSecret != ""),
		zap.Float64("rate", settings.Rate),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err, ok := <-srv.Errors():
			if ok && err != nil {
				return err
			}
			return nil
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("list store stopped gracefully")
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	secret := fs.String("jwt-secret", os.Getenv("LISTSTORE_JWT_SECRET"), "signing secret shared with the server")
	subject := fs.String("sub", "roster", "token subject")
	name := fs.String("name", "", "display name claim")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	_ = fs.Parse(args)

	tokens, err := liststore.NewTokens(*secret, *ttl)
	if err != nil {
		return err
	}
	token, err := tokens.Issue(*subject, *name)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func newLogger(path, level string) (*zap.Logger, func(), error) {
	if path == "" {
		cfg := zap.NewDevelopmentConfig()
		if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		logger, err := cfg.Build()
		if err != nil {
			return nil, nil, err
		}
		return logger, func() { _ = logger.Sync() }, nil
	}
	return logging.NewAt(path, logging.Options{Level: level, JSON: true, Console: true})
}

func splitAddr(addr string) (string, int, error) {
	host, portText, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("parse -addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("parse -addr %q: invalid port", addr)
	}
	return host, port, nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
