package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// RunSQLiteMigrations applies embedded SQLite files that have not been applied yet.
func RunSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	files, err := readMigrations(SQLiteFS, "sqlite")
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, file := range files {
		var applied int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, file.Version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", file.Version, err)
		}
		if applied > 0 {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file.Version, err)
		}
		if _, err := tx.ExecContext(ctx, file.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", file.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, file.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file.Version, err)
		}
	}

	return nil
}
