package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// runMigration drops (optionally) and creates every table of schema for the
// dialect, inside one transaction on the engine.
//
// The transaction makes the batch all-or-nothing only where the backend
// supports transactional DDL. SQLite does for CREATE/DROP TABLE but applies
// PRAGMA foreign_keys per connection and ignores it inside a transaction;
// the embedded DSNs set the pragma at connection time, so the statement
// here is a no-op on drivers that already enabled it. MySQL commits each DDL
// statement implicitly.
func runMigration(ctx context.Context, engine *sqlx.DB, d Dialect, schema *Schema, drop bool) error {
	tables, err := schema.Tables(d.Name)
	if err != nil {
		return err
	}

	conn, err := engine.Connx(ctx)
	if err != nil {
		return fmt.Errorf("acquiring migration connection: %w", err)
	}
	defer conn.Close() //nolint:errcheck // Returns the connection to the pool

	// Same reasoning as sessionFactory.open: a cancelled transaction context
	// would make database/sql drop the connection, and with it an in-memory database.
	tx, err := conn.BeginTxx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return fmt.Errorf("starting migration transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if drop {
		for i := len(tables) - 1; i >= 0; i-- {
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+tables[i].Name); err != nil {
				return fmt.Errorf("dropping table %s: %w", tables[i].Name, err)
			}
		}
	}

	for _, t := range tables {
		for _, stmt := range t.Statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("creating table %s: %w", t.Name, err)
			}
		}
	}

	if d.Embedded && d.ForeignKeysOn != "" {
		if _, err := tx.ExecContext(ctx, d.ForeignKeysOn); err != nil {
			return fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("migration cancelled: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}
