package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/loganmanery/passvault/internal/config"
	"github.com/loganmanery/passvault/internal/crypto"
	"github.com/loganmanery/passvault/internal/logging"
	"github.com/loganmanery/passvault/pkg/manager"
)

var errWrongPassphrase = errors.New("invalid master passphrase")

// loadSettings reads the settings file and sets up logging. The returned
// closer releases the log file.
func (rt *runtime) loadSettings() (*config.Settings, io.Closer, error) {
	settings, err := config.Load(rt.configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, closer, err := logging.New(logging.Config{
		Level:     settings.Log.Level,
		File:      settings.Log.File,
		MaxSizeMB: settings.Log.MaxSizeMB,
		MaxFiles:  settings.Log.MaxFiles,
	}, rt.opts.Err)
	if err != nil {
		return nil, nil, fmt.Errorf("set up logging: %w", err)
	}
	rt.logger = logger.With("config", settings.Path())
	return settings, closer, nil
}

func (rt *runtime) log() *slog.Logger {
	if rt.logger == nil {
		return logging.Discard()
	}
	return rt.logger
}

// unlock asks for the master passphrase when one is set and checks it
// against the stored digest. Without one the empty passphrase is used.
func (rt *runtime) unlock(settings *config.Settings) (string, error) {
	if !settings.HasMasterPassphrase() {
		return "", nil
	}

	pass, err := rt.opts.Prompt("Master passphrase: ")
	if err != nil {
		return "", err
	}
	if !settings.VerifyMasterPassphrase([]byte(pass)) {
		rt.log().Warn("master passphrase rejected")
		return "", errWrongPassphrase
	}
	return pass, nil
}

// newCipher builds the cipher the settings describe for passphrase.
func newCipher(settings *config.Settings, passphrase string) (*crypto.Cipher, error) {
	format, err := crypto.ParseFormat(settings.BlobFormat)
	if err != nil {
		return nil, err
	}

	if !settings.KDF.Enabled {
		return crypto.NewCipher([]byte(passphrase), crypto.WithFormat(format)), nil
	}

	salt, err := settings.KDFSalt()
	if err != nil {
		return nil, err
	}
	return crypto.NewKDFCipher([]byte(passphrase), salt, crypto.DefaultKDFParams(), crypto.WithFormat(format))
}

// vault is an unlocked store for the duration of one command.
type vault struct {
	settings *config.Settings
	cipher   *crypto.Cipher
	accounts *manager.AccountManager
	logClose io.Closer
}

func (rt *runtime) openVault(ctx context.Context) (*vault, error) {
	settings, logClose, err := rt.loadSettings()
	if err != nil {
		return nil, err
	}

	pass, err := rt.unlock(settings)
	if err != nil {
		_ = logClose.Close()
		return nil, err
	}

	c, err := newCipher(settings, pass)
	if err != nil {
		_ = logClose.Close()
		return nil, err
	}

	accounts, err := manager.Open(ctx, settings.DBPath, c, manager.WithDriver(settings.Storage.Driver))
	if err != nil {
		c.Destroy()
		_ = logClose.Close()
		return nil, err
	}
	rt.log().Debug("vault opened", "db", settings.DBPath, "driver", settings.Storage.Driver)

	return &vault{settings: settings, cipher: c, accounts: accounts, logClose: logClose}, nil
}

func (v *vault) Close() error {
	err := v.accounts.Close()
	v.cipher.Destroy()
	if cerr := v.logClose.Close(); err == nil {
		err = cerr
	}
	return err
}

// withVault runs fn against an unlocked vault and logs its failure.
func (rt *runtime) withVault(ctx context.Context, op string, fn func(v *vault) error) error {
	v, err := rt.openVault(ctx)
	if err != nil {
		rt.log().Error("open vault failed", "op", op, "err", err)
		return err
	}
	defer v.Close()

	if err := fn(v); err != nil {
		rt.log().Error("command failed", "op", op, "err", err)
		return err
	}
	return nil
}
