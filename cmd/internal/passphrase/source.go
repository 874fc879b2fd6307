package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

var (
	ErrEmpty    = errors.New("passphrase: empty passphrase")
	ErrMismatch = errors.New("passphrase: confirmation does not match")
	ErrNoInput  = errors.New("passphrase: no terminal available")
)

// Option customises a Source.
type Option func(*Source)

// WithConfirmation makes an interactive prompt ask twice, for commands that
// create a new keystore.
func WithConfirmation() Option {
	return func(s *Source) { s.confirm = true }
}

// WithLabel names the secret in prompts, e.g. "fulfiller keystore".
func WithLabel(label string) Option {
	return func(s *Source) {
		if label = strings.TrimSpace(label); label != "" {
			s.label = label
		}
	}
}

// Source resolves a keystore passphrase once, from an environment variable
// or the terminal, and caches the result.
type Source struct {
	envVar  string
	label   string
	confirm bool
	prompt  func(label string) (string, error)

	once  sync.Once
	value string
	err   error
}

func NewSource(envVar string, opts ...Option) *Source {
	s := &Source{envVar: strings.TrimSpace(envVar), label: "keystore", prompt: terminalPrompt}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the passphrase. A set environment variable wins and is used
// verbatim; whitespace-only values are rejected either way.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
	})
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := os.LookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%w: %s is set but blank", ErrEmpty, s.envVar)
			}
			return value, nil
		}
	}
	value, err := s.prompt(fmt.Sprintf("Enter %s passphrase: ", s.label))
	if err != nil {
		if errors.Is(err, ErrNoInput) && s.envVar != "" {
			return "", fmt.Errorf("%w; set %s", err, s.envVar)
		}
		return "", err
	}
	if strings.TrimSpace(value) == "" {
		return "", ErrEmpty
	}
	if s.confirm {
		again, err := s.prompt(fmt.Sprintf("Repeat %s passphrase: ", s.label))
		if err != nil {
			return "", err
		}
		if again != value {
			return "", ErrMismatch
		}
	}
	return value, nil
}

func terminalPrompt(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNoInput
	}
	fmt.Fprint(os.Stderr, label)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("passphrase: read: %w", err)
	}
	return string(raw), nil
}
