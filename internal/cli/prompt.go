package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var errPassphraseMismatch = errors.New("passphrases do not match")

// terminalPrompt reads without echo when in is a terminal and falls back to
// reading a line from lines otherwise.
func terminalPrompt(in io.Reader, lines *bufio.Reader, out io.Writer) func(string) (string, error) {
	return func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)

		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(out)
			if err != nil {
				return "", err
			}
			return string(b), nil
		}

		line, err := lines.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}

// promptNew asks twice for a new passphrase.
func (rt *runtime) promptNew(what string) (string, error) {
	first, err := rt.opts.Prompt(fmt.Sprintf("New %s: ", what))
	if err != nil {
		return "", err
	}
	second, err := rt.opts.Prompt(fmt.Sprintf("Confirm %s: ", what))
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errPassphraseMismatch
	}
	return first, nil
}
