package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	// DriverCGO is the mattn/go-sqlite3 driver.
	DriverCGO = "sqlite3"
	// DriverPure is the modernc.org/sqlite driver, usable without cgo.
	DriverPure = "sqlite"
)

// ErrNotInitialized is returned by row operations before Initialize.
var ErrNotInitialized = errors.New("storage not initialized")

// Option configures SQLiteStorage.
type Option func(*SQLiteStorage)

// WithDriver selects the database/sql driver name, DriverCGO by default.
func WithDriver(name string) Option {
	return func(s *SQLiteStorage) {
		if name != "" {
			s.driver = name
		}
	}
}

// SQLiteStorage implements StorageService using SQLite
type SQLiteStorage struct {
	accountQueries

	db     *sql.DB
	dbPath string
	driver string
}

// newSQLiteStorage creates a new SQLite storage service
func newSQLiteStorage(dbPath string, opts ...Option) *SQLiteStorage {
	s := &SQLiteStorage{
		dbPath: dbPath,
		driver: DriverCGO,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize opens the database connection and creates the schema. It is a
// no-op for the schema when the accounts table already exists.
func (s *SQLiteStorage) Initialize(ctx context.Context) error {
	if s.dbPath == "" {
		return fmt.Errorf("open database: empty path")
	}
	if s.driver != DriverCGO && s.driver != DriverPure {
		return fmt.Errorf("open database: unknown driver %q", s.driver)
	}

	plainFile := isPlainFile(s.dbPath)
	if plainFile {
		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0o700); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open(s.driver, s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// One process, one writer. A single connection also keeps in-memory
	// databases alive and pragmas applied.
	db.SetMaxOpenConns(1)

	if err := configureSQLite(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	if err := initializeSchema(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("initialize schema: %w", err)
	}

	if plainFile {
		if err := os.Chmod(s.dbPath, 0o600); err != nil {
			_ = db.Close()
			return fmt.Errorf("set database permissions: %w", err)
		}
	}

	s.db = db
	s.q = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.q = nil
	return err
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error or panic.
func (s *SQLiteStorage) WithTx(ctx context.Context, fn func(ctx context.Context, tx Accounts) error) (err error) {
	if s.db == nil {
		return ErrNotInitialized
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit transaction: %w", cerr)
		}
	}()

	err = fn(ctx, &accountQueries{q: tx})
	return err
}

func configureSQLite(ctx context.Context, db *sql.DB) error {
	pragmas := []string{`PRAGMA busy_timeout = 5000`}
	for _, stmt := range pragmas {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("configure sqlite %q: %w", stmt, err)
		}
	}
	return nil
}

// isPlainFile reports whether path names a file on disk rather than an
// in-memory database or a file: URI.
func isPlainFile(path string) bool {
	return path != ":memory:" && !strings.HasPrefix(path, "file:")
}

// accountQueries implements Accounts over either the database or a transaction.
type accountQueries struct {
	q DBTX
}

// InsertAccount adds a new account row
func (a *accountQueries) InsertAccount(ctx context.Context, row AccountRow) (int64, error) {
	if a.q == nil {
		return 0, ErrNotInitialized
	}

	result, err := a.q.ExecContext(ctx, `
		INSERT INTO accounts (title, username, password)
		VALUES (?, ?, ?)
	`, row.Title, row.Username, row.Password)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert account: last insert id: %w", err)
	}
	return id, nil
}

// GetAccount retrieves an account row by ID
func (a *accountQueries) GetAccount(ctx context.Context, id int64) (AccountRow, error) {
	if a.q == nil {
		return AccountRow{}, ErrNotInitialized
	}

	row, err := scanAccount(a.q.QueryRowContext(ctx, `
		SELECT id, title, username, password
		FROM accounts WHERE id = ?
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AccountRow{}, ErrNotFound
		}
		return AccountRow{}, fmt.Errorf("get account %d: %w", id, err)
	}
	return row, nil
}

// ListAccounts retrieves all account rows in id order
func (a *accountQueries) ListAccounts(ctx context.Context) ([]AccountRow, error) {
	return a.query(ctx, "list accounts", `
		SELECT id, title, username, password
		FROM accounts ORDER BY id
	`)
}

// SearchAccounts matches keyword as a substring of title or username
func (a *accountQueries) SearchAccounts(ctx context.Context, keyword string) ([]AccountRow, error) {
	term := "%" + escapeLike(keyword) + "%"
	return a.query(ctx, "search accounts", `
		SELECT id, title, username, password
		FROM accounts
		WHERE title LIKE ? ESCAPE '\' OR username LIKE ? ESCAPE '\'
		ORDER BY id
	`, term, term)
}

// UpdateAccount updates an existing account row
func (a *accountQueries) UpdateAccount(ctx context.Context, row AccountRow) error {
	return a.exec(ctx, fmt.Sprintf("update account %d", row.ID), true, `
		UPDATE accounts
		SET title = ?, username = ?, password = ?
		WHERE id = ?
	`, row.Title, row.Username, row.Password, row.ID)
}

// UpdatePassword replaces the stored password blob of a row
func (a *accountQueries) UpdatePassword(ctx context.Context, id int64, password string) error {
	return a.exec(ctx, fmt.Sprintf("update password %d", id), true,
		`UPDATE accounts SET password = ? WHERE id = ?`, password, id)
}

// DeleteAccount deletes an account row
func (a *accountQueries) DeleteAccount(ctx context.Context, id int64) error {
	return a.exec(ctx, fmt.Sprintf("delete account %d", id), false,
		`DELETE FROM accounts WHERE id = ?`, id)
}

func (a *accountQueries) exec(ctx context.Context, op string, mustMatch bool, query string, args ...any) error {
	if a.q == nil {
		return ErrNotInitialized
	}

	res, err := a.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !mustMatch {
		return nil
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (a *accountQueries) query(ctx context.Context, op, query string, args ...any) ([]AccountRow, error) {
	if a.q == nil {
		return nil, ErrNotInitialized
	}

	rows, err := a.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []AccountRow
	for rows.Next() {
		row, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanAccount reads one row. Tables created by older versions allow NULL in
// every text column; NULL reads as the empty string.
func scanAccount(sc scanner) (AccountRow, error) {
	var (
		row                       AccountRow
		title, username, password sql.NullString
	)
	if err := sc.Scan(&row.ID, &title, &username, &password); err != nil {
		return AccountRow{}, err
	}
	row.Title = title.String
	row.Username = username.String
	row.Password = password.String
	return row, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
