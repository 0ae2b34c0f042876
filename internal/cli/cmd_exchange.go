package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newExportCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write every account to an encrypted export file (- for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withVault(cmd.Context(), "export", func(v *vault) error {
				if args[0] == "-" {
					return v.accounts.Export(cmd.Context(), cmd.OutOrStdout())
				}

				f, err := os.OpenFile(args[0], os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := v.accounts.Export(cmd.Context(), f); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close export file: %w", err)
				}

				rt.log().Info("accounts exported", "file", args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "Accounts exported to %s\n", args[0])
				return nil
			})
		},
	}
}

func newImportCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Add every account of an export file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withVault(cmd.Context(), "import", func(v *vault) error {
				var r io.Reader = rt.lines
				if args[0] != "-" {
					f, err := os.Open(args[0])
					if err != nil {
						return fmt.Errorf("open export file: %w", err)
					}
					defer f.Close()
					r = f
				}

				n, err := v.accounts.Import(cmd.Context(), r)
				if err != nil {
					return err
				}
				rt.log().Info("accounts imported", "file", args[0], "count", n)
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts.\n", n)
				return nil
			})
		},
	}
}
