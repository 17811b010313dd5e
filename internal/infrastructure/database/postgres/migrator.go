package postgres

import (
	"embed"
	stderrors "errors"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// newMigrator is a variable so tests can stub out the migrate instance.
var newMigrator = func(c *Connection) (migrator, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMigrationFailed, "failed to open embedded migrations")
	}
	driver, err := migratepg.WithInstance(c.db, &migratepg.Config{})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMigrationFailed, "failed to create migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMigrationFailed, "failed to create migrate instance")
	}
	return m, nil
}

// migrator is the subset of *migrate.Migrate used here.
type migrator interface {
	Up() error
	Steps(n int) error
	Version() (uint, bool, error)
}

// RunMigrations applies every pending embedded migration. A schema that is
// already current is not an error.
func (c *Connection) RunMigrations() error {
	m, err := newMigrator(c)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		version, _, _ := m.Version()
		return errors.Wrapf(err, errors.CodeMigrationFailed, "failed to run migrations (current version: %d)", version)
	}

	version, dirty, err := m.Version()
	if err != nil && !stderrors.Is(err, migrate.ErrNilVersion) {
		c.logger.Warn("Failed to get migration version", logging.Err(err))
	}
	c.logger.Info("Database migrations completed",
		logging.Int64("version", int64(version)),
		logging.Bool("dirty", dirty),
	)
	return nil
}

// RollbackMigration reverts the given number of migration steps.
func (c *Connection) RollbackMigration(steps int) error {
	if steps <= 0 {
		return errors.Newf(errors.ErrCodeValidation, "steps must be greater than 0, got %d", steps)
	}
	m, err := newMigrator(c)
	if err != nil {
		return err
	}
	if err := m.Steps(-steps); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			return errors.New(errors.CodeMigrationFailed, "no migrations to roll back")
		}
		return errors.Wrapf(err, errors.CodeMigrationFailed, "failed to rollback %d step(s)", steps)
	}
	return nil
}

// MigrationStatus reports the applied version and whether a previous run
// left the schema dirty. An unmigrated database reports version 0.
func (c *Connection) MigrationStatus() (version uint, dirty bool, err error) {
	m, err := newMigrator(c)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if err != nil {
		if stderrors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, errors.CodeMigrationFailed, "failed to get migration version")
	}
	return version, dirty, nil
}
