package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// RunMigrations creates the schema if needed and applies all pending
// migrations in it.
func RunMigrations(ctx context.Context, dbURL string, schema string) error {
	slog.Info("Running database migrations...")

	if schema == "" {
		schema = DefaultSchema
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return err
	}
	defer db.Close()

	// A single connection keeps the search_path set below in effect for
	// every statement goose runs.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := ensureSchemaExists(ctx, db, schema); err != nil {
		return err
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	slog.Info("Database migrations completed successfully", "schema", schema)
	return nil
}

func ensureSchemaExists(ctx context.Context, db *sql.DB, schema string) error {
	query := "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{schema}.Sanitize()
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create schema %q: %w", schema, err)
	}
	slog.Info("Schema is ready", "schema", schema)

	setPathQuery := "SET search_path TO " + pgx.Identifier{schema}.Sanitize()
	if _, err := db.ExecContext(ctx, setPathQuery); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}
	slog.Info("Set search_path", "schema", schema)

	return nil
}
