package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/invito-app/invito/internal/config"
	"github.com/invito-app/invito/migrate"
	"github.com/invito-app/invito/migrate/driver"
	mysqldriver "github.com/invito-app/invito/migrate/driver/mysql"
	sqlitedriver "github.com/invito-app/invito/migrate/driver/sqlite"
	"github.com/invito-app/invito/migrate/source/files"
)

const version = "1.0.0"

var cfg *config.Config

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "invito",
		Short:        "Invito referral service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}

			setupLogger(cfg.LogLevel)
			return nil
		},
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("invito version %s\n", version)
		},
	}
}

func setupLogger(level string) {
	var logLevel slog.Level

	switch strings.ToUpper(level) {
	case "DEBUG":
		logLevel = slog.LevelDebug
	case "WARN":
		logLevel = slog.LevelWarn
	case "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

// ---

func openDatabase() (*sql.DB, driver.Driver, error) {
	switch cfg.DBDriver {
	case "mysql":
		conn, err := sql.Open("mysql", cfg.DBDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open mysql database: %w", err)
		}

		return conn, mysqldriver.NewDriver(conn, mysqldriver.DriverConfig{
			DatabaseName: cfg.DBName,
		}), nil

	case "sqlite":
		conn, err := sql.Open("sqlite", cfg.DBDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}

		// sqlite tolerates a single writer only
		conn.SetMaxOpenConns(1)

		return conn, sqlitedriver.NewDriver(conn, sqlitedriver.DriverConfig{}), nil

	default:
		return nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

func newMigrator(drv driver.Driver) (migrate.Migrator, error) {
	src, err := files.NewFilesSource(os.DirFS(cfg.MigrationsDir), ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations directory %q: %w", cfg.MigrationsDir, err)
	}

	return migrate.New(src, drv), nil
}
