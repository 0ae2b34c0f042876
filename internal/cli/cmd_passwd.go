package cli

import (
	"fmt"

	"github.com/loganmanery/passvault/internal/crypto"
	"github.com/spf13/cobra"
)

func newPasswdCommand(rt *runtime) *cobra.Command {
	var (
		format string
		kdf    bool
	)

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the master passphrase and re-encrypt every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withVault(cmd.Context(), "passwd", func(v *vault) error {
				pass, err := rt.promptNew("master passphrase")
				if err != nil {
					return err
				}

				settings := v.settings
				prev := settings.Config

				if format != "" {
					f, err := crypto.ParseFormat(format)
					if err != nil {
						return err
					}
					settings.BlobFormat = f.String()
				}
				if kdf || settings.KDF.Enabled {
					salt, err := crypto.GenerateSalt()
					if err != nil {
						return err
					}
					settings.KDF.Enabled = true
					settings.SetKDFSalt(salt)
				}

				next, err := newCipher(settings, pass)
				if err != nil {
					settings.Config = prev
					return err
				}

				if err := v.accounts.Rekey(cmd.Context(), next); err != nil {
					next.Destroy()
					settings.Config = prev
					return err
				}

				settings.SetMasterPassphrase([]byte(pass))
				if err := settings.Save(); err != nil {
					// The store is under the new key; put it back under the
					// one the settings file still describes.
					if rerr := v.accounts.Rekey(cmd.Context(), v.cipher); rerr != nil {
						rt.log().Error("restore previous key failed", "err", rerr)
						return fmt.Errorf("%w (restoring the previous key also failed: %w)", err, rerr)
					}
					next.Destroy()
					settings.Config = prev
					return err
				}

				v.cipher.Destroy()
				v.cipher = next
				rt.log().Info("master passphrase changed", "format", settings.BlobFormat, "kdf", settings.KDF.Enabled)
				fmt.Fprintln(cmd.OutOrStdout(), "Master passphrase changed.")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Re-encrypt into this blob format: legacy or authenticated")
	cmd.Flags().BoolVar(&kdf, "kdf", false, "Switch to the Argon2id key path")
	return cmd
}
