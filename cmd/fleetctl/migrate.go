package main

import (
	"context"
	"fmt"

	"github.com/EternisAI/fleet-monitor/internal/db"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	var (
		dbURL  string
		schema string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if dbURL == "" {
				return fmt.Errorf("--db-url or DATABASE_URL is required")
			}
			if err := db.RunMigrations(ctx, dbURL, schema); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied to schema %s\n", schema)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbURL, "db-url", envOr("DATABASE_URL", ""), "PostgreSQL connection URL")
	cmd.Flags().StringVar(&schema, "schema", db.DefaultSchema, "Schema holding the machine_status table")
	return cmd
}
