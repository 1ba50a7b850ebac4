package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"github.com/health-screening-server/migrations"
)

// MigrationStatus describes the schema state of the target database
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
	// Applied is false when no migration has ever run
	Applied bool `json:"applied"`
}

// MigrationRunner applies the submission and review log schema
type MigrationRunner struct {
	migrate *migrate.Migrate
	log     *logrus.Logger
}

// NewMigrationRunner creates a runner against databaseURL. An empty
// migrationsPath uses the migrations compiled into the binary.
func NewMigrationRunner(databaseURL, migrationsPath string, logger *logrus.Logger) (*MigrationRunner, error) {
	var (
		m   *migrate.Migrate
		err error
	)

	if migrationsPath == "" {
		source, srcErr := iofs.New(migrations.Files, ".")
		if srcErr != nil {
			return nil, fmt.Errorf("opening embedded migrations: %w", srcErr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", source, databaseURL)
	} else {
		m, err = migrate.New("file://"+migrationsPath, databaseURL)
	}
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}

	m.Log = migrateLogger{logger}

	return &MigrationRunner{
		migrate: m,
		log:     logger,
	}, nil
}

// Up applies all pending migrations. Cancelling ctx stops after the
// migration currently in flight.
func (mr *MigrationRunner) Up(ctx context.Context) error {
	mr.log.Info("Applying schema migrations")

	err := mr.withContext(ctx, mr.migrate.Up)
	if errors.Is(err, migrate.ErrNoChange) {
		mr.log.Info("Schema is up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("running migrations up: %w", err)
	}

	mr.logStatus("Schema migrations applied")
	return nil
}

// Down rolls back the most recent migration
func (mr *MigrationRunner) Down(ctx context.Context) error {
	mr.log.Info("Rolling back one schema migration")

	err := mr.withContext(ctx, func() error { return mr.migrate.Steps(-1) })
	if errors.Is(err, migrate.ErrNoChange) {
		mr.log.Info("No migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}

	mr.logStatus("Schema migration rolled back")
	return nil
}

// Version returns the current migration version
func (mr *MigrationRunner) Version() (uint, bool, error) {
	return mr.migrate.Version()
}

// Status reports the schema version without treating an empty database as an error
func (mr *MigrationRunner) Status() (MigrationStatus, error) {
	version, dirty, err := mr.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("reading schema version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty, Applied: true}, nil
}

// Force marks version as applied and clears the dirty flag left by a failed migration
func (mr *MigrationRunner) Force(version int) error {
	if err := mr.migrate.Force(version); err != nil {
		return fmt.Errorf("forcing schema version %d: %w", version, err)
	}
	mr.log.WithField("version", version).Warn("Schema version forced")
	return nil
}

// Close closes the migration runner
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}

func (mr *MigrationRunner) withContext(ctx context.Context, fn func() error) error {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			select {
			case mr.migrate.GracefulStop <- true:
			default:
			}
		case <-done:
		}
	}()

	err := fn()
	close(done)
	<-stopped

	// a stop request that arrived after fn finished must not leak into the next run
	select {
	case <-mr.migrate.GracefulStop:
	default:
	}

	if err != nil {
		return err
	}
	return ctx.Err()
}

func (mr *MigrationRunner) logStatus(msg string) {
	status, err := mr.Status()
	if err != nil {
		mr.log.WithError(err).Warn("Could not read schema version")
		return
	}
	mr.log.WithFields(logrus.Fields{
		"version": status.Version,
		"dirty":   status.Dirty,
	}).Info(msg)
}

// migrateLogger routes golang-migrate output through logrus at debug level
type migrateLogger struct {
	log *logrus.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debugf(format, v...)
}

func (l migrateLogger) Verbose() bool {
	return l.log.IsLevelEnabled(logrus.DebugLevel)
}
