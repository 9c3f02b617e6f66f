// Package logger owns the process-wide slog setup: one handler, a few
// component loggers and the update-scoped fields carried in context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/m3rciful/tarotbot/core/buildinfo"
	coreconfig "github.com/m3rciful/tarotbot/core/config"
)

var (
	mu      sync.Mutex
	started bool
	sink    io.Closer

	level slog.LevelVar
	debug = newEvery(1, 50)

	// L is the base logger.
	L *slog.Logger

	// DB logs ledger database events.
	DB *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// MIG logs ledger migration events.
	MIG *slog.Logger
	// TWire logs Telegram wiring steps.
	TWire *slog.Logger
)

func init() {
	// Until Init runs (tests, early startup) log calls are discarded.
	setBase(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func setBase(base *slog.Logger) {
	L = base
	DB = base.With("component", "db")
	TG = base.With("component", "tg")
	MIG = base.With("component", "db.migrate")
	TWire = base.With("component", "tg.wire")
}

// Init installs the configured handler as the global logger. Calls after the
// first are no-ops until Shutdown.
func Init(cfg coreconfig.LoggingConfig) error {
	mu.Lock()
	defer mu.Unlock()
	if started {
		return nil
	}

	lvl, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}
	level.Set(lvl)
	num, den, err := parseRatio(cfg.DebugSample)
	if err != nil {
		return err
	}
	debug = newEvery(num, den)

	out, closer, err := openOutput(cfg.Dir, cfg.BotFile)
	if err != nil {
		return err
	}
	sink = closer

	base := slog.New(newHandler(out, &level, useText(cfg)))
	setBase(base)
	slog.SetDefault(base)
	started = true

	L.Info("", slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("build", buildinfo.String()),
		slog.String("profile", profile(cfg)),
	)
	return nil
}

// Shutdown closes the log file, if any, and restores the discard logger.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	if !started {
		return nil
	}
	started = false
	setBase(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if sink == nil {
		return nil
	}
	err := sink.Close()
	sink = nil
	return err
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("logger: unknown level %q", raw)
}

func useText(cfg coreconfig.LoggingConfig) bool {
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "kv", "text":
		return true
	case "json":
		return false
	}
	p := profile(cfg)
	return p == "debug" || p == "dev"
}

func profile(cfg coreconfig.LoggingConfig) string {
	if p := strings.ToLower(strings.TrimSpace(cfg.Profile)); p != "" {
		return p
	}
	return "prod"
}

func openOutput(dir, file string) (io.Writer, io.Closer, error) {
	dir, file = strings.TrimSpace(dir), strings.TrimSpace(file)
	if dir == "" || file == "" {
		return os.Stdout, nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logger: create dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, file), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: open file: %w", err)
	}
	return io.MultiWriter(os.Stdout, f), f, nil
}

// Background returns the root context for work that is not tied to an update.
func Background() context.Context {
	return context.Background()
}

// Component returns L scoped to the named component.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// LogEvent writes one event line through logg, or through L when logg is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, lvl slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = L
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, lvl, "", attrs...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether this high-volume debug line should be written.
func ShouldSampleDebug() bool {
	return level.Level() <= slog.LevelDebug && debug.Allow()
}

var errRatio = errors.New("logger: debug_sample must look like N/M with 0 <= N <= M")

func parseRatio(raw string) (int, int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, 50, nil
	}
	var num, den int
	if _, err := fmt.Sscanf(raw, "%d/%d", &num, &den); err != nil {
		return 0, 0, errRatio
	}
	if num < 0 || den <= 0 || num > den {
		return 0, 0, errRatio
	}
	return num, den, nil
}
