package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invito-app/invito/migrate/migration"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStatusCmd())

	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	var to uint64

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, drv, err := openDatabase()
			if err != nil {
				return err
			}
			defer conn.Close()

			migrator, err := newMigrator(drv)
			if err != nil {
				return err
			}

			applied, err := migrator.Upgrade(cmd.Context(), migration.Version(to))
			if err != nil {
				return err
			}

			if applied == 0 {
				fmt.Println("schema is up to date")
			} else {
				fmt.Printf("applied %d migration(s)\n", applied)
			}
			return nil
		},
	}

	cmd.Flags().Uint64Var(&to, "to", 0, "apply up to this version only (default: all)")

	return cmd
}

func newMigrateDownCmd() *cobra.Command {
	var to uint64

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations down to a version",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, drv, err := openDatabase()
			if err != nil {
				return err
			}
			defer conn.Close()

			migrator, err := newMigrator(drv)
			if err != nil {
				return err
			}

			rolledBack, err := migrator.Downgrade(cmd.Context(), migration.Version(to))
			if err != nil {
				return err
			}

			fmt.Printf("rolled back %d migration(s)\n", rolledBack)
			return nil
		},
	}

	cmd.Flags().Uint64Var(&to, "to", 0, "roll back everything above this version (0 rolls back all)")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of every known migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, drv, err := openDatabase()
			if err != nil {
				return err
			}
			defer conn.Close()

			migrator, err := newMigrator(drv)
			if err != nil {
				return err
			}

			plan, err := migrator.Plan()
			if err != nil {
				return err
			}

			fmt.Printf("%-16s %-32s %-8s %s\n", "VERSION", "NAME", "STATUS", "APPLIED_AT")
			for _, state := range plan.Migrations {
				appliedAt := ""
				if !state.AppliedAt.IsZero() {
					appliedAt = state.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%-16d %-32s %-8s %s\n", state.Version, state.Name, state.Status, appliedAt)
			}
			fmt.Printf("\n%d applied, %d pending, %d missing\n",
				plan.AppliedCount, plan.PendingCount, plan.MissingCount)

			return nil
		},
	}
}
