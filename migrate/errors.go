package migrate

import (
	"errors"
	"fmt"

	"github.com/invito-app/invito/migrate/migration"
)

var ErrCannotUndo = errors.New("migration cannot be undone")

// ApplyError reports which migration a run halted on. Migrations committed
// before it stay applied.
type ApplyError struct {
	Version   migration.Version
	Direction migration.Direction
	Err       error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("migration %d (%s) failed: %s", e.Version, e.Direction, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}
