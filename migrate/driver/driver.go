package driver

import (
	"errors"

	"github.com/invito-app/invito/migrate/migration"
)

// Driver is the ledger plus the executor: Apply runs a migration script and
// the matching ledger write in a single transaction. Lock guards a whole run.
type Driver interface {
	ListAppliedMigrations() (*[]migration.Record, error)
	Apply(mig migration.Migration, direction migration.Direction, script string) error
	Lock() error
	Unlock() error
}

var (
	ErrInvalidLedgerTable = errors.New("an error has occurred when reading the migrations ledger table")
	ErrLockNotAcquired    = errors.New("schema lock is held by another migration run")
)
