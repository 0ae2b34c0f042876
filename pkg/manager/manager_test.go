package manager

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/loganmanery/passvault/internal/crypto"
	"github.com/loganmanery/passvault/internal/storage"
	"github.com/loganmanery/passvault/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestManager(t *testing.T, path string, c Cipher) *AccountManager {
	t.Helper()

	m, err := Open(context.Background(), path, c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func newTestManager(t *testing.T) (*AccountManager, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "accounts.db")
	return openTestManager(t, path, crypto.NewCipher([]byte("master"))), path
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _ := newTestManager(t)

	account := &models.Account{Title: "Bank", Username: "alice", Password: "s3cr3t"}
	require.NoError(t, m.Save(ctx, account))
	require.Equal(t, int64(1), account.ID)

	got, err := m.Load(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, *account, got)
	require.Equal(t, "s3cr3t", got.Password)
}

func TestPasswordIsEncryptedAtRest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, path := newTestManager(t)
	require.NoError(t, m.Save(ctx, &models.Account{Title: "Bank", Username: "alice", Password: "s3cr3t"}))

	db, err := sql.Open(storage.DriverCGO, path)
	require.NoError(t, err)
	defer db.Close()

	var title, blob string
	require.NoError(t, db.QueryRow(`SELECT title, password FROM accounts WHERE id = 1`).Scan(&title, &blob))
	require.Equal(t, "Bank", title)
	require.NotContains(t, blob, "s3cr3t")

	plain, err := crypto.NewCipher([]byte("master")).Decrypt(blob)
	require.NoError(t, err)
	require.Equal(t, "s3cr3t", plain)
}

func TestUpdateExistingAccount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _ := newTestManager(t)

	account := &models.Account{Title: "Bank", Username: "alice", Password: "one"}
	require.NoError(t, m.Save(ctx, account))

	account.Title = "Savings"
	account.Username = "alice2"
	account.Password = "two"
	require.NoError(t, m.Save(ctx, account))
	require.Equal(t, int64(1), account.ID)

	all, err := m.LoadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []models.Account{*account}, all)
}

func TestSaveUnknownIDIsNotFound(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	err := m.Save(context.Background(), &models.Account{ID: 7, Title: "a", Username: "b", Password: "c"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteThenLoadAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _ := newTestManager(t)

	first := &models.Account{Title: "Bank", Username: "alice", Password: "p1"}
	second := &models.Account{Title: "Mail", Username: "bob", Password: "p2"}
	require.NoError(t, m.Save(ctx, first))
	require.NoError(t, m.Save(ctx, second))
	require.Equal(t, int64(1), first.ID)
	require.Equal(t, int64(2), second.ID)

	require.NoError(t, m.Delete(ctx, 1))

	all, err := m.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, int64(2), all[0].ID)

	_, err = m.Load(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Delete(ctx, 1))
	require.NoError(t, m.Delete(ctx, 999))
}

func TestLoadAllFollowsInsertHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _ := newTestManager(t)

	seen := map[int64]bool{}
	var want []models.Account
	for i := 0; i < 10; i++ {
		a := &models.Account{Title: fmt.Sprintf("t%d", i), Username: "u", Password: fmt.Sprintf("p%d", i)}
		require.NoError(t, m.Save(ctx, a))
		require.False(t, seen[a.ID], "id %d reused", a.ID)
		seen[a.ID] = true
		want = append(want, *a)
	}

	for _, id := range []int64{2, 5, 9} {
		require.NoError(t, m.Delete(ctx, id))
	}
	var kept []models.Account
	for _, a := range want {
		if a.ID != 2 && a.ID != 5 && a.ID != 9 {
			kept = append(kept, a)
		}
	}

	all, err := m.LoadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, kept, all)
}

func TestSaveValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _ := newTestManager(t)

	invalid := []*models.Account{
		nil,
		{Title: "", Username: "a", Password: "p"},
		{Title: "t", Username: "", Password: "p"},
		{Title: "t", Username: "a", Password: ""},
		{ID: -1, Title: "t", Username: "a", Password: "p"},
	}
	for _, a := range invalid {
		err := m.Save(ctx, a)
		require.ErrorIs(t, err, ErrValidation)
		if a != nil {
			require.LessOrEqual(t, a.ID, int64(0))
		}
	}

	all, err := m.LoadAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestStorageFailureLeavesIDUnset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := storage.NewStorageService(filepath.Join(t.TempDir(), "accounts.db"))
	m, err := Open(ctx, "", crypto.NewCipher([]byte("master")), WithStorage(s))
	require.NoError(t, err)

	require.NoError(t, s.Close())

	account := &models.Account{Title: "Bank", Username: "alice", Password: "s3cr3t"}
	err = m.Save(ctx, account)
	require.ErrorIs(t, err, ErrStorage)
	require.Zero(t, account.ID)

	_, err = m.LoadAll(ctx)
	require.ErrorIs(t, err, ErrStorage)
}

func TestOpenWithWrongKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, path := newTestManager(t)
	require.NoError(t, m.Save(ctx, &models.Account{Title: "Bank", Username: "alice", Password: "s3cr3t"}))
	require.NoError(t, m.Close())

	wrong := openTestManager(t, path, crypto.NewCipher([]byte("other"), crypto.WithFormat(crypto.FormatAuthenticated)))
	_, err := wrong.Load(ctx, 1)
	if err == nil {
		t.Skip("wrong key produced a valid padding by chance")
	}
	require.ErrorIs(t, err, ErrDecryption)
}

func TestLoadAllFailsOnUndecryptableRow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _ := newTestManager(t)
	require.NoError(t, m.Save(ctx, &models.Account{Title: "Bank", Username: "alice", Password: "s3cr3t"}))
	corruptRow(t, m, "not-a-blob")

	_, err := m.LoadAll(ctx)
	require.ErrorIs(t, err, ErrDecryption)
	_, err = m.Load(ctx, 2)
	require.ErrorIs(t, err, ErrDecryption)
}

func TestSearch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _ := newTestManager(t)
	for _, a := range []models.Account{
		{Title: "GitHub", Username: "alice", Password: "p1"},
		{Title: "Bank", Username: "bob", Password: "p2"},
		{Title: "GitLab", Username: "carol", Password: "p3"},
	} {
		require.NoError(t, m.Save(ctx, &a))
	}

	found, err := m.Search(ctx, "Git")
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, "p1", found[0].Password)
	require.Equal(t, "p3", found[1].Password)
}

func TestRekeyKeepsPlaintext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _ := newTestManager(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Save(ctx, &models.Account{Title: "t", Username: "u", Password: fmt.Sprintf("secret-%d", i)}))
	}
	before, err := m.LoadAll(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Rekey(ctx, crypto.NewCipher([]byte("new master"))))

	after, err := m.LoadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)

	// Saves after the rotation use the new key.
	a := &models.Account{Title: "t", Username: "u", Password: "later"}
	require.NoError(t, m.Save(ctx, a))
	got, err := m.Load(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "later", got.Password)
}

func TestRekeyThenReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.db")

	m, err := Open(ctx, path, crypto.NewCipher([]byte("old")))
	require.NoError(t, err)
	want := []models.Account{
		{Title: "Bank", Username: "alice", Password: "one"},
		{Title: "Mail", Username: "bob", Password: "two"},
		{Title: "Shop", Username: "carol", Password: "three"},
	}
	for i := range want {
		require.NoError(t, m.Save(ctx, &want[i]))
	}
	require.NoError(t, m.Close())

	m, err = Open(ctx, path, crypto.NewCipher([]byte("old")))
	require.NoError(t, err)
	require.NoError(t, m.Rekey(ctx, crypto.NewCipher([]byte("new"))))
	require.NoError(t, m.Close())

	m = openTestManager(t, path, crypto.NewCipher([]byte("new")))
	all, err := m.LoadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, want, all)
}

func TestRekeyMigratesToAuthenticatedFormat(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _ := newTestManager(t)
	require.NoError(t, m.Save(ctx, &models.Account{Title: "Bank", Username: "alice", Password: "s3cr3t"}))

	next := crypto.NewCipher([]byte("master"), crypto.WithFormat(crypto.FormatAuthenticated))
	require.NoError(t, m.Rekey(ctx, next))

	require.Regexp(t, `^v1\$`, rawPassword(t, m, 1))
	got, err := m.Load(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "s3cr3t", got.Password)
}

func TestRekeyAbortsOnUndecryptableRow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _ := newTestManager(t)
	require.NoError(t, m.Save(ctx, &models.Account{Title: "Bank", Username: "alice", Password: "s3cr3t"}))
	corruptRow(t, m, "garbage")

	before := rawPassword(t, m, 1)

	err := m.Rekey(ctx, crypto.NewCipher([]byte("new")))
	require.ErrorIs(t, err, ErrDecryption)

	require.Equal(t, before, rawPassword(t, m, 1))
	got, err := m.Load(ctx, 1)
	require.NoError(t, err, "old cipher must stay active")
	require.Equal(t, "s3cr3t", got.Password)
}

func TestRekeyRollsBackPartialRewrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _ := newTestManager(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, m.Save(ctx, &models.Account{Title: "t", Username: "u", Password: fmt.Sprintf("p%d", i)}))
	}
	before := []string{rawPassword(t, m, 1), rawPassword(t, m, 2), rawPassword(t, m, 3)}

	next := &failingCipher{Cipher: crypto.NewCipher([]byte("new")), failAfter: 2}
	err := m.Rekey(ctx, next)
	require.ErrorIs(t, err, ErrEncryption)

	after := []string{rawPassword(t, m, 1), rawPassword(t, m, 2), rawPassword(t, m, 3)}
	require.Equal(t, before, after)

	all, err := m.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "p0", all[0].Password)
}

func TestRekeySerializesWithWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _ := newTestManager(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Save(ctx, &models.Account{Title: "t", Username: "u", Password: "p"}))
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, m.Rekey(ctx, crypto.NewCipher([]byte(fmt.Sprintf("key-%d", i)))))
		}(i)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Save(ctx, &models.Account{Title: "t", Username: "u", Password: "p"}))
		}()
	}
	wg.Wait()

	all, err := m.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 15)
	for _, a := range all {
		require.Equal(t, "p", a.Password)
	}
}

func TestExportImport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src, _ := newTestManager(t)
	for _, a := range []models.Account{
		{Title: "Bank", Username: "alice", Password: "one"},
		{Title: "Mail", Username: "bob", Password: "two"},
	} {
		require.NoError(t, src.Save(ctx, &a))
	}

	var buf bytes.Buffer
	require.NoError(t, src.Export(ctx, &buf))
	require.NotContains(t, buf.String(), "alice")

	dst, _ := newTestManager(t)
	require.NoError(t, dst.Save(ctx, &models.Account{Title: "Existing", Username: "x", Password: "y"}))

	n, err := dst.Import(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	all, err := dst.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, models.Account{ID: 2, Title: "Bank", Username: "alice", Password: "one"}, all[1])
	require.Equal(t, models.Account{ID: 3, Title: "Mail", Username: "bob", Password: "two"}, all[2])
}

func TestImportWithWrongKeyFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src, _ := newTestManager(t)
	require.NoError(t, src.Save(ctx, &models.Account{Title: "Bank", Username: "alice", Password: "one"}))

	var buf bytes.Buffer
	require.NoError(t, src.Export(ctx, &buf))

	dst := openTestManager(t, filepath.Join(t.TempDir(), "other.db"), crypto.NewCipher([]byte("other")))
	_, err := dst.Import(ctx, &buf)
	require.Error(t, err)

	all, err := dst.LoadAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestClosedManager(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _ := newTestManager(t)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err := m.LoadAll(ctx)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, m.Save(ctx, &models.Account{Title: "a", Username: "b", Password: "c"}), ErrClosed)
	require.ErrorIs(t, m.Delete(ctx, 1), ErrClosed)
	require.ErrorIs(t, m.Rekey(ctx, crypto.NewCipher(nil)), ErrClosed)
}

func TestOpenRequiresCipher(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "a.db"), nil)
	require.Error(t, err)
}

// failingCipher encrypts failAfter values and then fails.
type failingCipher struct {
	Cipher
	failAfter int32
	calls     atomic.Int32
}

func (c *failingCipher) Encrypt(plaintext string) (string, error) {
	if c.calls.Add(1) > c.failAfter {
		return "", errors.New("entropy exhausted")
	}
	return c.Cipher.Encrypt(plaintext)
}

// corruptRow appends a row holding blob as its password.
func corruptRow(t *testing.T, m *AccountManager, blob string) {
	t.Helper()

	_, err := m.storage.InsertAccount(context.Background(), storage.AccountRow{Title: "bad", Username: "bad", Password: blob})
	require.NoError(t, err)
}

func rawPassword(t *testing.T, m *AccountManager, id int64) string {
	t.Helper()

	row, err := m.storage.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return row.Password
}
