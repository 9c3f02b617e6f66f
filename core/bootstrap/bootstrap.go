// Package bootstrap brings up the process-wide infrastructure: logging
// first, then the receipt ledger when one is configured.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/tarotbot/core/config"
	"github.com/m3rciful/tarotbot/core/database"
	"github.com/m3rciful/tarotbot/core/logger"
)

// Steps overrides the default step implementations; tests swap them out.
type Steps struct {
	Logger  func(coreconfig.LoggingConfig) error
	Migrate func(database.Config) error
	Connect func(context.Context, database.Config) (*sqlx.DB, error)
}

func (s Steps) withDefaults() Steps {
	if s.Logger == nil {
		s.Logger = logger.Init
	}
	if s.Migrate == nil {
		s.Migrate = database.Migrate
	}
	if s.Connect == nil {
		s.Connect = database.Connect
	}
	return s
}

// Infra is the infrastructure that outlives a single update. DB is nil
// when the ledger is kept in memory.
type Infra struct {
	DB *sqlx.DB
}

// Open initializes logging, then migrates and connects the ledger.
func Open(ctx context.Context, logging coreconfig.LoggingConfig, ledger database.Config, steps Steps) (*Infra, error) {
	steps = steps.withDefaults()
	if err := steps.Logger(logging); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}
	if !ledger.Enabled() {
		return &Infra{}, nil
	}
	if err := steps.Migrate(ledger); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	db, err := steps.Connect(ctx, ledger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return &Infra{DB: db}, nil
}

// Close releases the ledger and flushes the logger.
func (i *Infra) Close() error {
	var errs []error
	if i != nil && i.DB != nil {
		errs = append(errs, i.DB.Close())
	}
	errs = append(errs, logger.Shutdown())
	return errors.Join(errs...)
}
