// Package database opens the receipt ledger and keeps its schema current.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/m3rciful/tarotbot/core/logger"
)

//go:embed migrations
var migrationsFS embed.FS

// Connect opens the ledger and pings it. Postgres is retried until ctx is
// done, since the database container often starts after the bot.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	host, port, name := cfg.Describe()
	attrs := []any{
		slog.String("driver", cfg.Driver),
		slog.String("host", host),
		slog.String("port", port),
		slog.String("db", name),
	}

	start := time.Now()
	var (
		db  *sqlx.DB
		err error
	)
	for attempt := 1; ; attempt++ {
		db, err = sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN())
		if err == nil || cfg.Driver != DriverPostgres {
			break
		}
		logger.DB.Debug("", append(attrs, slog.String("event", "connect.wait"), slog.Int("attempt", attempt))...)
		select {
		case <-ctx.Done():
			err = fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-time.After(2 * time.Second):
			continue
		}
		break
	}
	if err != nil {
		logger.DB.Error("", append(attrs, slog.String("event", "connect"), slog.String("err", err.Error()))...)
		return nil, fmt.Errorf("ledger connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	logger.DB.Info("", append(attrs,
		slog.String("event", "connect"),
		slog.Int("pool", cfg.MaxConnections),
		slog.Duration("duration", logger.Took(start)),
	)...)
	return db, nil
}

// Migrate applies the embedded up migrations for cfg.Driver through db.
func Migrate(cfg Config) error {
	if err := cfg.Normalize(); err != nil {
		return err
	}
	dir := path.Join("migrations", cfg.Driver)
	files := upFiles(dir)
	preview, more := logger.SummarizeStrings(files, 6)
	logger.MIG.Debug("", slog.String("event", "resolve"),
		slog.String("path", dir),
		slog.String("files", preview),
		slog.Bool("truncated", more),
	)

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("ledger migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("ledger migrations: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	from, _, _ := m.Version()
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.MIG.Error("", slog.String("event", "apply"),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		return fmt.Errorf("ledger migrations: %w", err)
	}
	to, _, _ := m.Version()
	logger.MIG.Info("", slog.String("event", "apply"),
		slog.Uint64("from", uint64(from)),
		slog.Uint64("to", uint64(to)),
		slog.Int("applied", applied(files, uint64(from), uint64(to))),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// upFiles lists the embedded up migrations in dir, oldest first.
func upFiles(dir string) []string {
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func version(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// applied counts migrations with a version in (from, to].
func applied(files []string, from, to uint64) int {
	n := 0
	for _, f := range files {
		if v := version(f); v > from && v <= to {
			n++
		}
	}
	return n
}
