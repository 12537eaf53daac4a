package source

import (
	"errors"
	"io"

	"github.com/invito-app/invito/migrate/migration"
)

type Source interface {
	GetAvailableMigrations() (*[]migration.Description, error)
	ReadMigration(migration migration.Migration, direction migration.Direction) (io.Reader, error)
}

var (
	ErrMigrationDuplicated = errors.New("migration version already exists with different name")
	ErrMigrationNotFound   = errors.New("no migration script exists for requested version and direction")
)
