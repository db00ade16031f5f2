package main

import (
	"fmt"

	"github.com/AlexTsimba/traffboard-sub001/internal/db"

	"github.com/spf13/cobra"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	run := func(apply func(url string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.load()
			if err != nil {
				return err
			}
			return apply(cfg.Database.Connection().URL())
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(url string) error {
				return db.RunMigrations(url)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE: run(func(url string) error {
				return db.RollbackMigrations(url)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, _, err := root.load()
				if err != nil {
					return err
				}
				version, dirty, err := db.MigrationVersion(cfg.Database.Connection().URL())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", version, dirty)
				return nil
			},
		},
	)
	return cmd
}
