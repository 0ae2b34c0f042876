package cli

import (
	"errors"
	"fmt"

	"github.com/loganmanery/passvault/internal/crypto"
	"github.com/loganmanery/passvault/pkg/manager"
	"github.com/spf13/cobra"
)

var (
	errAlreadyInitialized = errors.New("settings file already exists, use --force to overwrite")
	errStoreKeyMismatch   = errors.New("existing store holds accounts the new passphrase can not decrypt")
)

func newInitCommand(rt *runtime) *cobra.Command {
	var (
		dbPath   string
		driver   string
		format   string
		kdf      bool
		noMaster bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the settings file and an empty store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, logClose, err := rt.loadSettings()
			if err != nil {
				return err
			}
			defer logClose.Close()

			if settings.Exists() && !force {
				return errAlreadyInitialized
			}

			if dbPath != "" {
				settings.DBPath = dbPath
			}
			if driver != "" {
				settings.Storage.Driver = driver
			}
			if format != "" {
				f, err := crypto.ParseFormat(format)
				if err != nil {
					return err
				}
				settings.BlobFormat = f.String()
			}
			if kdf {
				salt, err := crypto.GenerateSalt()
				if err != nil {
					return err
				}
				settings.KDF.Enabled = true
				settings.SetKDFSalt(salt)
			}

			var pass string
			if !noMaster {
				if pass, err = rt.promptNew("master passphrase"); err != nil {
					return err
				}
			}
			settings.SetMasterPassphrase([]byte(pass))

			c, err := newCipher(settings, pass)
			if err != nil {
				return err
			}
			defer c.Destroy()

			accounts, err := manager.Open(cmd.Context(), settings.DBPath, c, manager.WithDriver(settings.Storage.Driver))
			if err != nil {
				rt.log().Error("create store failed", "db", settings.DBPath, "err", err)
				return err
			}
			// An existing store must stay readable under the new settings.
			_, err = accounts.LoadAll(cmd.Context())
			if cerr := accounts.Close(); err == nil {
				err = cerr
			}
			if errors.Is(err, manager.ErrDecryption) {
				rt.log().Error("init refused", "db", settings.DBPath, "err", err)
				return fmt.Errorf("%w: %w", errStoreKeyMismatch, err)
			}
			if err != nil {
				return err
			}

			if err := settings.Save(); err != nil {
				return err
			}
			rt.log().Info("vault initialized", "db", settings.DBPath, "format", settings.BlobFormat, "kdf", settings.KDF.Enabled)

			fmt.Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", settings.Path())
			fmt.Fprintf(cmd.OutOrStdout(), "Store at %s\n", settings.DBPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Store location (default next to the settings file)")
	cmd.Flags().StringVar(&driver, "driver", "", "SQLite driver: sqlite3 or sqlite")
	cmd.Flags().StringVar(&format, "format", "", "Blob format: legacy or authenticated")
	cmd.Flags().BoolVar(&kdf, "kdf", false, "Derive the key with Argon2id")
	cmd.Flags().BoolVar(&noMaster, "no-master", false, "Do not set a master passphrase")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing settings file")
	return cmd
}
