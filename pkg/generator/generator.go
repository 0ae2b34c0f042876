// Package generator creates random passwords for new accounts.
package generator

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// Options configures password generation
type Options struct {
	Length           int
	IncludeLowercase bool
	IncludeUppercase bool
	IncludeNumbers   bool
	IncludeSymbols   bool
	ExcludeSimilar   bool
	ExcludeAmbiguous bool
}

// DefaultOptions returns sensible default password options
func DefaultOptions() Options {
	return Options{
		Length:           16,
		IncludeLowercase: true,
		IncludeUppercase: true,
		IncludeNumbers:   true,
		IncludeSymbols:   true,
		ExcludeSimilar:   true,
	}
}

// Character sets
const (
	lowercase = "abcdefghijklmnopqrstuvwxyz"
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numbers   = "0123456789"
	symbols   = "!@#$%^&*()-_=+[]{}|;:,./<>?~"
	similar   = "il1Lo0O"
	ambiguous = "{}[]()|\\/'\"`~,;:.<>"
)

var (
	ErrInvalidLength = errors.New("password length must be positive")
	ErrNoCharset     = errors.New("no character set selected")
)

// Generate returns a random password with at least one character of every
// selected class.
func Generate(opts Options) (string, error) {
	classes := opts.classes()
	if len(classes) == 0 {
		return "", ErrNoCharset
	}
	if opts.Length < len(classes) {
		if opts.Length <= 0 {
			return "", ErrInvalidLength
		}
		return "", errors.New("password length is shorter than the number of character classes")
	}

	var all []rune
	for _, c := range classes {
		all = append(all, c...)
	}

	// One character from each class, the rest from the union, then shuffle so
	// the guaranteed characters are not always in front.
	result := make([]rune, 0, opts.Length)
	for _, c := range classes {
		r, err := pick(c)
		if err != nil {
			return "", err
		}
		result = append(result, r)
	}
	for len(result) < opts.Length {
		r, err := pick(all)
		if err != nil {
			return "", err
		}
		result = append(result, r)
	}
	if err := shuffle(result); err != nil {
		return "", err
	}
	return string(result), nil
}

func (o Options) classes() [][]rune {
	var classes [][]rune
	add := func(include bool, set string) {
		if !include {
			return
		}
		var runes []rune
		for _, r := range set {
			if o.ExcludeSimilar && strings.ContainsRune(similar, r) {
				continue
			}
			if o.ExcludeAmbiguous && strings.ContainsRune(ambiguous, r) {
				continue
			}
			runes = append(runes, r)
		}
		if len(runes) > 0 {
			classes = append(classes, runes)
		}
	}

	add(o.IncludeLowercase, lowercase)
	add(o.IncludeUppercase, uppercase)
	add(o.IncludeNumbers, numbers)
	add(o.IncludeSymbols, symbols)
	return classes
}

func pick(set []rune) (rune, error) {
	i, err := randomInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

// shuffle is a Fisher-Yates shuffle driven by crypto/rand.
func shuffle(r []rune) error {
	for i := len(r) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return err
		}
		r[i], r[j] = r[j], r[i]
	}
	return nil
}

// randomInt generates a cryptographically secure random integer between 0 and max-1
func randomInt(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
