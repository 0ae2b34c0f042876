// Package cli implements the passvault command line.
package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

// BuildInfo identifies the binary, set at link time.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Options holds the process-level collaborators of the command tree.
type Options struct {
	In    io.Reader
	Out   io.Writer
	Err   io.Writer
	Build BuildInfo

	// Prompt reads a secret without echo. Defaults to the terminal.
	Prompt func(prompt string) (string, error)

	// Clipboard receives copied passwords. Defaults to the system clipboard.
	Clipboard func(text string) error
}

// setDefaults fills in the process streams. lines is the single buffered
// reader over In shared by prompts, confirmations and imports.
func (o *Options) setDefaults() *bufio.Reader {
	if o.In == nil {
		o.In = os.Stdin
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Err == nil {
		o.Err = os.Stderr
	}

	lines := bufio.NewReader(o.In)
	if o.Prompt == nil {
		o.Prompt = terminalPrompt(o.In, lines, o.Err)
	}
	if o.Clipboard == nil {
		o.Clipboard = clipboard.WriteAll
	}
	return lines
}

// runtime is the state shared by the commands of one invocation.
type runtime struct {
	opts       Options
	lines      *bufio.Reader
	configPath string
	logger     *slog.Logger
}

// NewRootCommand builds the passvault command tree.
func NewRootCommand(opts Options) *cobra.Command {
	lines := opts.setDefaults()
	rt := &runtime{opts: opts, lines: lines}

	cmd := &cobra.Command{
		Use:           "passvault",
		Short:         "Local encrypted account store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(lines)
	cmd.SetOut(opts.Out)
	cmd.SetErr(opts.Err)
	cmd.PersistentFlags().StringVar(&rt.configPath, "config", "", "Settings file (default is the user config dir)")

	cmd.AddCommand(newVersionCommand(rt))
	cmd.AddCommand(newInitCommand(rt))
	cmd.AddCommand(newListCommand(rt))
	cmd.AddCommand(newSearchCommand(rt))
	cmd.AddCommand(newShowCommand(rt))
	cmd.AddCommand(newAddCommand(rt))
	cmd.AddCommand(newEditCommand(rt))
	cmd.AddCommand(newDeleteCommand(rt))
	cmd.AddCommand(newCopyCommand(rt))
	cmd.AddCommand(newGenerateCommand(rt))
	cmd.AddCommand(newPasswdCommand(rt))
	cmd.AddCommand(newExportCommand(rt))
	cmd.AddCommand(newImportCommand(rt))
	return cmd
}

func newVersionCommand(rt *runtime) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rt.opts.Build)
			}

			b := rt.opts.Build
			_, err := fmt.Fprintf(out, "version=%s commit=%s build_time=%s\n", b.Version, b.Commit, b.BuildTime)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version as JSON")
	return cmd
}
