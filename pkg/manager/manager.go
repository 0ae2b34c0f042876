// Package manager stores accounts with their passwords encrypted under a
// cipher derived from the master passphrase.
//
// An AccountManager owns one database file. It is safe for concurrent use
// within a process, but assumes no other process writes the same file.
package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/loganmanery/passvault/internal/storage"
	"github.com/loganmanery/passvault/pkg/models"
)

// Cipher encrypts and decrypts single password fields.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
}

// AccountManager handles all account operations
type AccountManager struct {
	mu      sync.RWMutex
	storage storage.StorageService
	cipher  Cipher
	closed  bool
}

// Option configures Open.
type Option func(*options)

type options struct {
	driver  string
	storage storage.StorageService
}

// WithDriver selects the SQLite driver, see storage.DriverCGO and
// storage.DriverPure.
func WithDriver(name string) Option {
	return func(o *options) {
		o.driver = name
	}
}

// WithStorage replaces the SQLite storage; location is ignored.
func WithStorage(s storage.StorageService) Option {
	return func(o *options) {
		o.storage = s
	}
}

// Open opens or creates the store at location and binds it to cipher. The
// accounts table is created on first use.
func Open(ctx context.Context, location string, cipher Cipher, opts ...Option) (*AccountManager, error) {
	if cipher == nil {
		return nil, fmt.Errorf("open %s: cipher is nil", location)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := o.storage
	if s == nil {
		s = storage.NewStorageService(location, storage.WithDriver(o.driver))
	}
	if err := s.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", location, ErrStorage, err)
	}

	return &AccountManager{
		storage: s,
		cipher:  cipher,
	}, nil
}

// LoadAll returns every account in ascending id order with passwords decrypted.
func (m *AccountManager) LoadAll(ctx context.Context) ([]models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	rows, err := m.storage.ListAccounts(ctx)
	if err != nil {
		return nil, storageError("load accounts", err)
	}
	return m.decryptRows(rows)
}

// Load returns the account with the given id.
func (m *AccountManager) Load(ctx context.Context, id int64) (models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return models.Account{}, ErrClosed
	}

	row, err := m.storage.GetAccount(ctx, id)
	if err != nil {
		return models.Account{}, storageError(fmt.Sprintf("load account %d", id), err)
	}
	return m.decryptRow(row)
}

// Search returns the accounts whose title or username contains keyword.
func (m *AccountManager) Search(ctx context.Context, keyword string) ([]models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	rows, err := m.storage.SearchAccounts(ctx, keyword)
	if err != nil {
		return nil, storageError("search accounts", err)
	}
	return m.decryptRows(rows)
}

// Save inserts account when it has no id yet and sets the assigned id, or
// updates the existing row otherwise. The id is only set once the insert
// has been committed, so a failed save can be retried as is.
func (m *AccountManager) Save(ctx context.Context, account *models.Account) error {
	if err := Validate(account); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	row, err := m.encryptAccount(account)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}

	if account.IsNew() {
		id, err := m.storage.InsertAccount(ctx, row)
		if err != nil {
			return storageError("save account", err)
		}
		account.ID = id
		return nil
	}

	if err := m.storage.UpdateAccount(ctx, row); err != nil {
		return storageError(fmt.Sprintf("save account %d", account.ID), err)
	}
	return nil
}

// Delete removes the account with the given id. Deleting an unknown id is
// not an error.
func (m *AccountManager) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	if err := m.storage.DeleteAccount(ctx, id); err != nil {
		return storageError(fmt.Sprintf("delete account %d", id), err)
	}
	return nil
}

// Rekey re-encrypts every stored password under newCipher and then makes it
// the active cipher. All rows are rewritten in one transaction; on any
// failure nothing is changed and the current cipher stays active.
func (m *AccountManager) Rekey(ctx context.Context, newCipher Cipher) error {
	if newCipher == nil {
		return fmt.Errorf("rekey: new cipher is nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	err := m.storage.WithTx(ctx, func(ctx context.Context, tx storage.Accounts) error {
		rows, err := tx.ListAccounts(ctx)
		if err != nil {
			return err
		}

		for _, row := range rows {
			plain, err := m.cipher.Decrypt(row.Password)
			if err != nil {
				return fmt.Errorf("account %d: %w", row.ID, err)
			}
			blob, err := newCipher.Encrypt(plain)
			if err != nil {
				return fmt.Errorf("account %d: %w: %w", row.ID, ErrEncryption, err)
			}
			if err := tx.UpdatePassword(ctx, row.ID, blob); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storageError("rekey", err)
	}

	m.cipher = newCipher
	return nil
}

// Close releases the database. The cipher is left to the caller.
func (m *AccountManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.storage.Close()
}

func (m *AccountManager) encryptAccount(account *models.Account) (storage.AccountRow, error) {
	blob, err := m.cipher.Encrypt(account.Password)
	if err != nil {
		return storage.AccountRow{}, fmt.Errorf("%w: %w", ErrEncryption, err)
	}
	return storage.AccountRow{
		ID:       account.ID,
		Title:    account.Title,
		Username: account.Username,
		Password: blob,
	}, nil
}

func (m *AccountManager) decryptRow(row storage.AccountRow) (models.Account, error) {
	password, err := m.cipher.Decrypt(row.Password)
	if err != nil {
		return models.Account{}, fmt.Errorf("account %d: %w", row.ID, err)
	}
	return models.Account{
		ID:       row.ID,
		Title:    row.Title,
		Username: row.Username,
		Password: password,
	}, nil
}

func (m *AccountManager) decryptRows(rows []storage.AccountRow) ([]models.Account, error) {
	accounts := make([]models.Account, 0, len(rows))
	for _, row := range rows {
		account, err := m.decryptRow(row)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}
