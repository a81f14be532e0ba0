// Package app wires an engine from a workspace and its config file.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"

	"siteline/internal/config"
	"siteline/internal/db"
	"siteline/internal/domain"
	"siteline/internal/engine"
	"siteline/internal/evidence"
	"siteline/internal/metrics"
	"siteline/internal/migrate"
	"siteline/internal/notify"
)

// Runtime is an open workspace. Close releases the database and any
// notification connection.
type Runtime struct {
	Workspace string
	Config    *config.Config
	Engine    engine.Engine
	Registry  *prometheus.Registry
	Logger    *slog.Logger

	conn    *sql.DB
	closers []func()
}

// Open opens and migrates the workspace database and builds an engine
// from cfg. A nil cfg loads siteline.yml, falling back to the defaults.
func Open(ctx context.Context, workspace string, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		var err error
		if cfg, err = config.LoadOptional(workspace); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		var err error
		if logger, err = NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
			return nil, err
		}
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Workspace: workspace, Config: cfg, Logger: logger, conn: conn}
	if err := rt.init(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) init(ctx context.Context) error {
	if err := migrate.Migrate(rt.conn); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	cfg := rt.Config
	store, err := evidence.NewOS(cfg.EvidenceDir(rt.Workspace), cfg.Evidence.MaxBytes)
	if err != nil {
		return fmt.Errorf("evidence store: %w", err)
	}
	rt.Registry = prometheus.NewRegistry()
	m, err := metrics.New(rt.Registry)
	if err != nil {
		return err
	}
	sink, closeSink, err := Sinks(cfg, rt.Logger)
	if err != nil {
		return err
	}
	rt.closers = append(rt.closers, closeSink)

	e := engine.New(rt.conn, cfg)
	e.Evidence = store
	e.Metrics = m
	e.Notify = sink
	e.Logger = rt.Logger
	rt.Engine = e

	if id := strings.TrimSpace(cfg.Bootstrap.AdminID); id != "" {
		if _, err := e.Bootstrap(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
	if rt.conn != nil {
		rt.conn.Close()
		rt.conn = nil
	}
}

// Sinks builds the notification sink described by cfg.Notify. The
// returned func closes any NATS connection.
func Sinks(cfg *config.Config, logger *slog.Logger) (notify.Sink, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	var sinks notify.Multi
	closeFn := func() {}
	if url := strings.TrimSpace(cfg.Notify.NATSURL); url != "" {
		s, nc, err := notify.DialNATS(url, cfg.Notify.SubjectPrefix, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats %s: %w", url, err)
		}
		sinks = append(sinks, s)
		closeFn = func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("drain nats connection", "error", err)
			}
		}
	}
	if cfg.Notify.Log {
		sinks = append(sinks, notify.Log{Logger: logger})
	}
	switch len(sinks) {
	case 0:
		return notify.Nop{}, closeFn, nil
	case 1:
		return sinks[0], closeFn, nil
	}
	return sinks, closeFn, nil
}

// NewLogger returns a slog logger writing to w. Format "auto" picks text
// for terminals and JSON otherwise.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "", "auto":
		if isTerminal(w) {
			return slog.New(slog.NewTextHandler(w, opts)), nil
		}
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("log format %q is not one of auto, text, json", format)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return isTerminal(os.Stdout)
}

// ResolveActor looks up the actor the CLI acts as.
func ResolveActor(ctx context.Context, e engine.Engine, id string) (domain.Actor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Actor{}, fmt.Errorf("actor not specified; use --actor")
	}
	a, err := e.GetActor(ctx, id)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("resolve actor: %w", err)
	}
	return a, nil
}
