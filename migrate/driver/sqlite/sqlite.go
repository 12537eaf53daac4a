// Package sqlite implements the migrations ledger on a SQLite database
// (modernc.org/sqlite, CGo-free). SQLite has no advisory-lock call, so the
// run lock is a single-row lock table.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/invito-app/invito/migrate/driver"
	"github.com/invito-app/invito/migrate/migration"
)

type DriverConfig struct {
	LedgerTableName string // defaults to "schema_migrations"
	LockTableName   string // defaults to "schema_lock"
}

const (
	defaultLedgerTableName = "schema_migrations"
	defaultLockTableName   = "schema_lock"

	timeFormat = "2006-01-02 15:04:05"
)

type sqliteDriver struct {
	conn   *sql.DB
	config DriverConfig
}

func NewDriver(conn *sql.DB, config DriverConfig) driver.Driver {
	if config.LedgerTableName == "" {
		config.LedgerTableName = defaultLedgerTableName
	}
	if config.LockTableName == "" {
		config.LockTableName = defaultLockTableName
	}

	return &sqliteDriver{
		conn:   conn,
		config: config,
	}
}

func (drv *sqliteDriver) ListAppliedMigrations() (*[]migration.Record, error) {
	tableName := escapeSqliteIdent(drv.config.LedgerTableName)

	if err := drv.ensureLedgerTableExists(tableName); err != nil {
		return nil, fmt.Errorf("failed to list applied versions: %w", err)
	}

	rows, err := drv.conn.Query(fmt.Sprintf(
		"SELECT version, migration_name, applied_at FROM %s ORDER BY version",
		tableName,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to list applied versions: %w", err)
	}
	defer rows.Close()

	result := make([]migration.Record, 0)
	for rows.Next() {
		var record migration.Record
		var appliedAt string

		if err = rows.Scan(&record.Version, &record.Name, &appliedAt); err != nil {
			return nil, fmt.Errorf("%w: %s", driver.ErrInvalidLedgerTable, err)
		}

		record.AppliedAt, err = time.Parse(timeFormat, appliedAt)
		if err != nil {
			record.AppliedAt = time.Time{}
		}

		result = append(result, record)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query migrations ledger table: %w", err)
	}

	return &result, nil
}

func (drv *sqliteDriver) Apply(mig migration.Migration, direction migration.Direction, script string) error {
	tableName := escapeSqliteIdent(drv.config.LedgerTableName)

	if err := drv.ensureLedgerTableExists(tableName); err != nil {
		return fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
	}

	tx, err := drv.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", mig.Version, err)
	}

	if _, err = tx.Exec(script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to execute migration script: %w", err)
	}

	if direction == migration.Up {
		_, err = tx.Exec(
			fmt.Sprintf("INSERT INTO %s (version, migration_name, applied_at) VALUES (?, ?, ?)", tableName),
			uint64(mig.Version), mig.Name, time.Now().UTC().Format(timeFormat),
		)
	} else {
		_, err = tx.Exec(
			fmt.Sprintf("DELETE FROM %s WHERE version = ?", tableName),
			uint64(mig.Version),
		)
	}
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to update migrations ledger: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", mig.Version, err)
	}

	return nil
}

func (drv *sqliteDriver) Lock() error {
	tableName := escapeSqliteIdent(drv.config.LockTableName)

	_, err := drv.conn.Exec(fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s ("+
			"id        integer primary key check (id = 1), "+
			"locked_at text not null"+
			")",
		tableName,
	))
	if err != nil {
		return fmt.Errorf("failed to create schema lock table: %w", err)
	}

	_, err = drv.conn.Exec(
		fmt.Sprintf("INSERT INTO %s (id, locked_at) VALUES (1, ?)", tableName),
		time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "constraint") {
			return driver.ErrLockNotAcquired
		}
		return fmt.Errorf("failed to acquire schema lock: %w", err)
	}

	return nil
}

func (drv *sqliteDriver) Unlock() error {
	tableName := escapeSqliteIdent(drv.config.LockTableName)

	if _, err := drv.conn.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = 1", tableName)); err != nil {
		return fmt.Errorf("failed to release schema lock: %w", err)
	}

	return nil
}

// ---

func (drv *sqliteDriver) ensureLedgerTableExists(escapedTableName string) error {
	_, err := drv.conn.Exec(fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s ("+
			"version        integer not null primary key, "+
			"migration_name text null, "+
			"applied_at     text not null default CURRENT_TIMESTAMP"+
			")",
		escapedTableName,
	))

	if err != nil {
		return fmt.Errorf("failed to create migrations ledger table %s: %w", escapedTableName, err)
	}

	return nil
}

func escapeSqliteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
