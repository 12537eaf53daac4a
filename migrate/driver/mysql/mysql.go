// Package mysql implements the migrations ledger on a MySQL/MariaDB
// database. The run lock is a MySQL advisory lock (GET_LOCK).
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/invito-app/invito/migrate/driver"
	"github.com/invito-app/invito/migrate/migration"
)

type DriverConfig struct {
	DatabaseName    string
	LedgerTableName string // defaults to "schema_migrations"
	LockTimeoutSec  uint   // defaults to 10
}

const (
	defaultLedgerTableName = "schema_migrations"
	defaultLockTimeoutSec  = 10

	timeFormat = "2006-01-02 15:04:05"
)

type mysqlDriver struct {
	conn   *sql.DB
	config DriverConfig

	// GET_LOCK is session-scoped, so the lock must live on one connection
	lockConn *sql.Conn
}

func NewDriver(conn *sql.DB, config DriverConfig) driver.Driver {
	if config.LedgerTableName == "" {
		config.LedgerTableName = defaultLedgerTableName
	}
	if config.LockTimeoutSec == 0 {
		config.LockTimeoutSec = defaultLockTimeoutSec
	}

	return &mysqlDriver{
		conn:   conn,
		config: config,
	}
}

func (drv *mysqlDriver) ListAppliedMigrations() (*[]migration.Record, error) {
	tableName := drv.makeEscapedLedgerTableName()

	if err := drv.ensureLedgerTableExists(&tableName); err != nil {
		return nil, fmt.Errorf("failed to list applied versions: %w", err)
	}

	rows, err := drv.query(fmt.Sprintf(
		"SELECT version, migration_name, applied_at FROM %s ORDER BY version",
		tableName,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to list applied versions: %w", err)
	}
	defer rows.Close()

	result, err := fetchAppliedMigrations(rows)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (drv *mysqlDriver) Apply(mig migration.Migration, direction migration.Direction, script string) error {
	tableName := drv.makeEscapedLedgerTableName()

	if err := drv.ensureLedgerTableExists(&tableName); err != nil {
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

func (drv *mysqlDriver) Lock() error {
	ctx := context.Background()

	lockConn, err := drv.conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire schema lock: %w", err)
	}

	var acquired sql.NullInt64

	row := lockConn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", drv.lockName(), drv.config.LockTimeoutSec)
	if err = row.Scan(&acquired); err != nil {
		_ = lockConn.Close()
		return fmt.Errorf("failed to acquire schema lock: %w", err)
	}

	if !acquired.Valid || acquired.Int64 != 1 {
		_ = lockConn.Close()
		return driver.ErrLockNotAcquired
	}

	drv.lockConn = lockConn

	return nil
}

func (drv *mysqlDriver) Unlock() error {
	if drv.lockConn == nil {
		return nil
	}

	defer func() {
		_ = drv.lockConn.Close()
		drv.lockConn = nil
	}()

	var released sql.NullInt64

	row := drv.lockConn.QueryRowContext(context.Background(), "SELECT RELEASE_LOCK(?)", drv.lockName())
	if err := row.Scan(&released); err != nil {
		return fmt.Errorf("failed to release schema lock: %w", err)
	}

	return nil
}

func (drv *mysqlDriver) lockName() string {
	return fmt.Sprintf("invito.migrate.%s", drv.config.DatabaseName)
}

// ---

func fetchAppliedMigrations(rows *sql.Rows) ([]migration.Record, error) {
	result := make([]migration.Record, 0)
	for rows.Next() {
		var record migration.Record
		var appliedAt string

		err := rows.Scan(
			&record.Version,
			&record.Name,
			&appliedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", driver.ErrInvalidLedgerTable, err)
		}
		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query migrations ledger table: %w", err)
		}

		record.AppliedAt, err = time.Parse(timeFormat, appliedAt)
		if err != nil {
			record.AppliedAt = time.Time{}
		}

		result = append(result, record)
	}

	return result, nil
}

func (drv *mysqlDriver) query(query string, args ...any) (*sql.Rows, error) {
	rows, err := drv.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute a query: %w", err)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to execute a query: %w", err)
	}
	return rows, nil
}

func (drv *mysqlDriver) makeEscapedLedgerTableName() string {
	return fmt.Sprintf(
		"`%s`.`%s`",
		escapeMysqlString(drv.config.DatabaseName),
		escapeMysqlString(drv.config.LedgerTableName),
	)
}

func (drv *mysqlDriver) ensureLedgerTableExists(escapedTableName *string) error {
	_, err := drv.conn.Exec(fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s ("+
			"version        bigint not null, "+
			"migration_name varchar(100) null, "+
			"applied_at     datetime default CURRENT_TIMESTAMP not null, "+
			"primary key (version)"+
			") default charset utf8",
		*escapedTableName,
	))

	if err != nil {
		return fmt.Errorf("failed to create migrations ledger table %s: %w", *escapedTableName, err)
	}

	return nil
}

// originally from https://gist.github.com/siddontang/8875771
func escapeMysqlString(sql string) string { //nolint:cyclop
	const prealloc = 2
	dest := make([]rune, 0, prealloc*len(sql))

	for _, character := range sql {
		var escape rune

		switch character {
		case 0:
			escape = '0'
		case '\n':
			escape = 'n'
		case '\r':
			escape = 'r'
		case '\\':
			escape = '\\'
		case '\'':
			escape = '\''
		case '"':
			escape = '"'
		case '`':
			escape = '`'
		case '\032':
			escape = 'Z'
		}

		if escape != 0 {
			dest = append(dest, '\\', escape)
		} else {
			dest = append(dest, character)
		}
	}

	return string(dest)
}
