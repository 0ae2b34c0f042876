package cli

import (
	"fmt"

	"github.com/loganmanery/passvault/pkg/generator"
	"github.com/spf13/cobra"
)

func newGenerateCommand(rt *runtime) *cobra.Command {
	var (
		opts         = generator.DefaultOptions()
		noLower      bool
		noUpper      bool
		noNumbers    bool
		noSymbols    bool
		allowSimilar bool
		copyOut      bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a random password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.IncludeLowercase = !noLower
			opts.IncludeUppercase = !noUpper
			opts.IncludeNumbers = !noNumbers
			opts.IncludeSymbols = !noSymbols
			opts.ExcludeSimilar = !allowSimilar

			p, err := generator.Generate(opts)
			if err != nil {
				return err
			}
			if copyOut {
				if err := rt.opts.Clipboard(p); err != nil {
					return fmt.Errorf("copy to clipboard: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Password copied to clipboard.")
				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), p)
			return err
		},
	}

	cmd.Flags().IntVarP(&opts.Length, "length", "l", opts.Length, "Password length")
	cmd.Flags().BoolVar(&noLower, "no-lower", false, "Leave out lowercase letters")
	cmd.Flags().BoolVar(&noUpper, "no-upper", false, "Leave out uppercase letters")
	cmd.Flags().BoolVar(&noNumbers, "no-numbers", false, "Leave out digits")
	cmd.Flags().BoolVar(&noSymbols, "no-symbols", false, "Leave out symbols")
	cmd.Flags().BoolVar(&allowSimilar, "allow-similar", false, "Allow look-alike characters such as l, 1 and O")
	cmd.Flags().BoolVarP(&opts.ExcludeAmbiguous, "no-ambiguous", "a", false, "Leave out brackets, quotes and punctuation")
	cmd.Flags().BoolVarP(&copyOut, "copy", "c", false, "Copy to the clipboard instead of printing")
	return cmd
}
