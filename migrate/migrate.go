// Package migrate computes and applies pending schema migrations: it diffs
// the migrations available in a Source against the ledger kept by a Driver
// and applies the difference in version order, one transaction each.
package migrate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/invito-app/invito/migrate/driver"
	"github.com/invito-app/invito/migrate/migration"
	"github.com/invito-app/invito/migrate/source"
)

// ---

type Migrator interface {
	// Plan reports the state of every known migration without applying anything.
	Plan() (*Plan, error)

	// Upgrade applies all pending migrations with version <= maxVersion
	// (0 means no limit) in ascending order and returns the number applied.
	// On failure the ledger reflects only the migrations that committed and
	// the returned error names the failing version.
	Upgrade(ctx context.Context, maxVersion migration.Version) (uint, error)

	// Downgrade rolls back all applied migrations with version > toVersion
	// in descending order. It refuses to start if any affected migration has
	// no down script.
	Downgrade(ctx context.Context, toVersion migration.Version) (uint, error)
}

type Plan struct {
	Migrations   []migration.State
	AppliedCount uint
	PendingCount uint
	MissingCount uint
}

// ---

type migratorImpl struct {
	source source.Source
	driver driver.Driver
}

// ---

func New(source source.Source, driver driver.Driver) Migrator {
	return &migratorImpl{
		source: source,
		driver: driver,
	}
}

// ---

func (m *migratorImpl) Plan() (*Plan, error) {
	availableMigrations, err := m.source.GetAvailableMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get the list of available migrations: %w", err)
	}

	appliedMigrations, err := m.loadAppliedMigrations()
	if err != nil {
		return nil, err
	}

	result := Plan{
		Migrations: make([]migration.State, 0, len(*availableMigrations)),
	}
	for _, availableMigration := range *availableMigrations {
		record, ok := appliedMigrations[availableMigration.Version]

		if ok {
			result.AppliedCount++
			result.Migrations = append(result.Migrations, migration.State{
				Description: availableMigration,
				Status:      migration.Applied,
				AppliedAt:   record.AppliedAt,
			})
		} else {
			result.PendingCount++
			result.Migrations = append(result.Migrations, migration.State{
				Description: availableMigration,
				Status:      migration.Pending,
			})
		}
	}

	for version, record := range appliedMigrations {
		found := false

		for _, available := range *availableMigrations {
			if version == available.Version {
				found = true
				break
			}
		}

		if !found {
			result.Migrations = append(result.Migrations, migration.State{
				Description: migration.Description{
					Migration: record.Migration,
					CanUndo:   false,
				},
				Status:    migration.Missing,
				AppliedAt: record.AppliedAt,
			})
			result.MissingCount++
		}
	}

	sort.Slice(result.Migrations, func(i, j int) bool {
		return result.Migrations[i].Version < result.Migrations[j].Version
	})

	return &result, nil
}

func (m *migratorImpl) Upgrade(ctx context.Context, maxVersion migration.Version) (uint, error) {
	availableMigrations, err := m.source.GetAvailableMigrations()
	if err != nil {
		return 0, fmt.Errorf("failed to get the list of available migrations: %w", err)
	}

	if err = m.driver.Lock(); err != nil {
		return 0, fmt.Errorf("failed to acquire the schema lock: %w", err)
	}
	defer m.unlock()

	appliedMigrations, err := m.loadAppliedMigrations()
	if err != nil {
		return 0, err
	}

	var applied uint
	for _, descr := range *availableMigrations {
		if maxVersion != 0 && descr.Version > maxVersion {
			break
		}

		if _, ok := appliedMigrations[descr.Version]; ok {
			continue
		}

		if err = ctx.Err(); err != nil {
			return applied, fmt.Errorf("migration run interrupted: %w", err)
		}

		if err = m.apply(ctx, descr.Migration, migration.Up); err != nil {
			return applied, err
		}
		applied++
	}

	return applied, nil
}

func (m *migratorImpl) Downgrade(ctx context.Context, toVersion migration.Version) (uint, error) {
	availableMigrations, err := m.source.GetAvailableMigrations()
	if err != nil {
		return 0, fmt.Errorf("failed to get the list of available migrations: %w", err)
	}

	if err = m.driver.Lock(); err != nil {
		return 0, fmt.Errorf("failed to acquire the schema lock: %w", err)
	}
	defer m.unlock()

	appliedMigrations, err := m.loadAppliedMigrations()
	if err != nil {
		return 0, err
	}

	targets, err := collectDowngradeTargets(appliedMigrations, *availableMigrations, toVersion)
	if err != nil {
		return 0, err
	}

	var applied uint
	for _, mig := range targets {
		if err = ctx.Err(); err != nil {
			return applied, fmt.Errorf("migration run interrupted: %w", err)
		}

		if err = m.apply(ctx, mig, migration.Down); err != nil {
			return applied, err
		}
		applied++
	}

	return applied, nil
}

// ---

// collectDowngradeTargets selects applied migrations above toVersion, newest
// first, and fails before anything runs if any of them cannot be undone.
func collectDowngradeTargets(
	applied map[migration.Version]migration.Record,
	available []migration.Description,
	toVersion migration.Version,
) ([]migration.Migration, error) {
	availableByVersion := make(map[migration.Version]migration.Description, len(available))
	for _, descr := range available {
		availableByVersion[descr.Version] = descr
	}

	targets := make([]migration.Migration, 0, len(applied))
	for version, record := range applied {
		if version <= toVersion {
			continue
		}

		descr, ok := availableByVersion[version]
		if !ok {
			return nil, fmt.Errorf("%w: migration %d is recorded in the ledger but is missing from the source",
				ErrCannotUndo, version)
		}
		if !descr.CanUndo {
			return nil, fmt.Errorf("%w: migration %d has no down script", ErrCannotUndo, version)
		}

		targets = append(targets, record.Migration)
	}

	sort.Slice(targets, func(i, j int) bool {
		return targets[i].Version > targets[j].Version
	})

	return targets, nil
}

func (m *migratorImpl) apply(ctx context.Context, mig migration.Migration, direction migration.Direction) error {
	reader, err := m.source.ReadMigration(mig, direction)
	if err != nil {
		return &ApplyError{Version: mig.Version, Direction: direction, Err: err}
	}

	script, err := io.ReadAll(reader)
	if err != nil {
		return &ApplyError{
			Version:   mig.Version,
			Direction: direction,
			Err:       fmt.Errorf("failed to read migration script: %w", err),
		}
	}

	slog.InfoContext(ctx, "applying migration",
		"version", uint64(mig.Version),
		"name", mig.Name,
		"direction", direction.String(),
	)

	if err = m.driver.Apply(mig, direction, string(script)); err != nil {
		slog.ErrorContext(ctx, "migration failed",
			"version", uint64(mig.Version),
			"name", mig.Name,
			"direction", direction.String(),
			"error", err,
		)
		return &ApplyError{Version: mig.Version, Direction: direction, Err: err}
	}

	return nil
}

func (m *migratorImpl) loadAppliedMigrations() (map[migration.Version]migration.Record, error) {
	records, err := m.driver.ListAppliedMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get the list of applied migrations: %w", err)
	}

	result := make(map[migration.Version]migration.Record, len(*records))
	for _, record := range *records {
		result[record.Version] = record
	}

	return result, nil
}

func (m *migratorImpl) unlock() {
	if err := m.driver.Unlock(); err != nil {
		slog.Warn("failed to release the schema lock", "error", err)
	}
}
