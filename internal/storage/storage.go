// Package storage keeps account rows in a SQLite database. Rows carry the
// password field exactly as given; encryption is the caller's concern.
package storage

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNotFound is returned when no row has the requested id.
var ErrNotFound = errors.New("account not found")

// AccountRow is one row of the accounts table. Password holds the encrypted blob.
type AccountRow struct {
	ID       int64
	Title    string
	Username string
	Password string
}

// Accounts defines the row operations available both on the database and
// inside a transaction.
type Accounts interface {
	// InsertAccount adds a row and returns its new id
	InsertAccount(ctx context.Context, row AccountRow) (int64, error)

	// GetAccount returns the row with the given id, or ErrNotFound
	GetAccount(ctx context.Context, id int64) (AccountRow, error)

	// ListAccounts returns every row ordered by id
	ListAccounts(ctx context.Context) ([]AccountRow, error)

	// SearchAccounts returns rows whose title or username contains keyword
	SearchAccounts(ctx context.Context, keyword string) ([]AccountRow, error)

	// UpdateAccount rewrites title, username and password of an existing
	// row, returning ErrNotFound if there is none
	UpdateAccount(ctx context.Context, row AccountRow) error

	// UpdatePassword rewrites only the password column
	UpdatePassword(ctx context.Context, id int64, password string) error

	// DeleteAccount removes a row; a missing id is not an error
	DeleteAccount(ctx context.Context, id int64) error
}

// StorageService defines the interface for database operations
type StorageService interface {
	Accounts

	// Initialize opens the database and creates the schema if needed
	Initialize(ctx context.Context) error

	// WithTx runs fn inside a single transaction, committing when fn
	// returns nil and rolling back otherwise
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Accounts) error) error

	// Close closes the storage connection
	Close() error
}

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewStorageService creates a new instance of the default storage service
func NewStorageService(dbPath string, opts ...Option) StorageService {
	return newSQLiteStorage(dbPath, opts...)
}
