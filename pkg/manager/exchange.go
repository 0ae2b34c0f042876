package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/loganmanery/passvault/internal/storage"
	"github.com/loganmanery/passvault/pkg/models"
)

const exportVersion = 1

type exportFile struct {
	Version  int              `json:"version"`
	Accounts []models.Account `json:"accounts"`
}

// Export writes every account to w as a single blob encrypted with the
// active cipher.
func (m *AccountManager) Export(ctx context.Context, w io.Writer) error {
	accounts, err := m.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	data, err := json.Marshal(exportFile{Version: exportVersion, Accounts: accounts})
	if err != nil {
		return fmt.Errorf("export: marshal: %w", err)
	}

	m.mu.RLock()
	blob, err := m.cipher.Encrypt(string(data))
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("export: %w: %w", ErrEncryption, err)
	}

	if _, err := io.WriteString(w, blob+"\n"); err != nil {
		return fmt.Errorf("export: write: %w", err)
	}
	return nil
}

// Import reads an export produced under the same key and adds every account
// in it as a new record. Either all accounts are added or none.
func (m *AccountManager) Import(ctx context.Context, r io.Reader) (int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("import: read: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}

	data, err := m.cipher.Decrypt(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}

	var file exportFile
	if err := json.Unmarshal([]byte(data), &file); err != nil {
		return 0, fmt.Errorf("import: unmarshal: %w", err)
	}
	if file.Version != exportVersion {
		return 0, fmt.Errorf("import: unsupported export version %d", file.Version)
	}

	rows := make([]storage.AccountRow, 0, len(file.Accounts))
	for i := range file.Accounts {
		account := file.Accounts[i]
		account.ID = 0
		if err := Validate(&account); err != nil {
			return 0, fmt.Errorf("import: account %d: %w", i+1, err)
		}
		row, err := m.encryptAccount(&account)
		if err != nil {
			return 0, fmt.Errorf("import: %w", err)
		}
		rows = append(rows, row)
	}

	err = m.storage.WithTx(ctx, func(ctx context.Context, tx storage.Accounts) error {
		for _, row := range rows {
			if _, err := tx.InsertAccount(ctx, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, storageError("import", err)
	}
	return len(rows), nil
}
