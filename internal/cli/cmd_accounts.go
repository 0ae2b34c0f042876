package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/loganmanery/passvault/pkg/generator"
	"github.com/loganmanery/passvault/pkg/models"
	"github.com/spf13/cobra"
)

func newListCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withVault(cmd.Context(), "list", func(v *vault) error {
				accounts, err := v.accounts.LoadAll(cmd.Context())
				if err != nil {
					return err
				}
				return printAccounts(cmd.OutOrStdout(), accounts)
			})
		},
	}
}

func newSearchCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "search <keyword>",
		Short: "List accounts whose title or username contains keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withVault(cmd.Context(), "search", func(v *vault) error {
				accounts, err := v.accounts.Search(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printAccounts(cmd.OutOrStdout(), accounts)
			})
		},
	}
}

func newShowCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one account including its password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return rt.withVault(cmd.Context(), "show", func(v *vault) error {
				a, err := v.accounts.Load(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:       %d\n", a.ID)
				fmt.Fprintf(out, "Title:    %s\n", a.Title)
				fmt.Fprintf(out, "Username: %s\n", a.Username)
				fmt.Fprintf(out, "Password: %s\n", a.Password)
				return nil
			})
		},
	}
}

// accountFlags are the flags shared by add and edit.
type accountFlags struct {
	title    string
	username string
	password string
	generate bool
	length   int
}

func (f *accountFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "Account title")
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "Account username")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "Account password (prompted when omitted)")
	cmd.Flags().BoolVarP(&f.generate, "generate", "g", false, "Generate a random password")
	cmd.Flags().IntVar(&f.length, "length", generator.DefaultOptions().Length, "Length of a generated password")
	cmd.MarkFlagsMutuallyExclusive("password", "generate")
}

// newPassword returns the password for add or edit: generated, from the
// flag, or prompted for.
func (rt *runtime) newPassword(cmd *cobra.Command, f *accountFlags) (string, bool, error) {
	switch {
	case f.generate:
		opts := generator.DefaultOptions()
		opts.Length = f.length
		p, err := generator.Generate(opts)
		return p, true, err
	case cmd.Flags().Changed("password"):
		return f.password, false, nil
	default:
		p, err := rt.promptNew("account password")
		return p, false, err
	}
}

func newAddCommand(rt *runtime) *cobra.Command {
	var f accountFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withVault(cmd.Context(), "add", func(v *vault) error {
				password, generated, err := rt.newPassword(cmd, &f)
				if err != nil {
					return err
				}

				a := &models.Account{Title: f.title, Username: f.username, Password: password}
				if err := v.accounts.Save(cmd.Context(), a); err != nil {
					return err
				}
				rt.log().Info("account added", "id", a.ID)

				fmt.Fprintf(cmd.OutOrStdout(), "Account added with ID: %d\n", a.ID)
				if generated {
					fmt.Fprintf(cmd.OutOrStdout(), "Generated password: %s\n", password)
				}
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newEditCommand(rt *runtime) *cobra.Command {
	var f accountFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change title, username or password of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return rt.withVault(cmd.Context(), "edit", func(v *vault) error {
				a, err := v.accounts.Load(cmd.Context(), id)
				if err != nil {
					return err
				}

				if cmd.Flags().Changed("title") {
					a.Title = f.title
				}
				if cmd.Flags().Changed("username") {
					a.Username = f.username
				}
				if f.generate || cmd.Flags().Changed("password") {
					a.Password, _, err = rt.newPassword(cmd, &f)
					if err != nil {
						return err
					}
				}

				if err := v.accounts.Save(cmd.Context(), &a); err != nil {
					return err
				}
				rt.log().Info("account updated", "id", a.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "Account %d updated.\n", a.ID)
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newDeleteCommand(rt *runtime) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !yes && !confirm(rt.lines, cmd.OutOrStdout(), fmt.Sprintf("Delete account %d? (y/n): ", id)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Deletion cancelled.")
				return nil
			}
			return rt.withVault(cmd.Context(), "delete", func(v *vault) error {
				if err := v.accounts.Delete(cmd.Context(), id); err != nil {
					return err
				}
				rt.log().Info("account deleted", "id", id)
				fmt.Fprintf(cmd.OutOrStdout(), "Account %d deleted.\n", id)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newCopyCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <id>",
		Short: "Copy the password of an account to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return rt.withVault(cmd.Context(), "copy", func(v *vault) error {
				a, err := v.accounts.Load(cmd.Context(), id)
				if err != nil {
					return err
				}
				if err := rt.opts.Clipboard(a.Password); err != nil {
					return fmt.Errorf("copy to clipboard: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Password of %q copied to clipboard.\n", a.Title)
				return nil
			})
		},
	}
}

func printAccounts(out io.Writer, accounts []models.Account) error {
	if len(accounts) == 0 {
		_, err := fmt.Fprintln(out, "No accounts found.")
		return err
	}

	fmt.Fprintln(out, "ID   | Title                 | Username")
	fmt.Fprintln(out, "-----+-----------------------+-----------------------")
	for _, a := range accounts {
		if _, err := fmt.Fprintf(out, "%-4d | %-21s | %s\n", a.ID, truncateString(a.Title, 21), truncateString(a.Username, 22)); err != nil {
			return err
		}
	}
	return nil
}

// truncateString shortens s to at most n runes, marking the cut with "...".
func truncateString(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid account id %q", s)
	}
	return id, nil
}

func confirm(lines *bufio.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, _ := lines.ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(line), "y")
}
