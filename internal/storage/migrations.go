package storage

import (
	"context"
	"database/sql"
)

// initializeSchema creates the accounts table when it is missing. The column
// layout matches stores written by earlier versions, so those open as is.
func initializeSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
			title VARCHAR(255),
			username VARCHAR(255),
			password VARCHAR(255)
		)
	`)
	return err
}
