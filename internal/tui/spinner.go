// Package tui holds the small amount of terminal interaction linops does:
// spinners around long waits and TTY detection.
package tui

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/huh/spinner"
	"golang.org/x/term"
)

// ErrNotTerminal is returned by ReadSecret when stdin cannot prompt.
var ErrNotTerminal = errors.New("stdin is not a terminal")

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Run calls action, showing a spinner titled title on w while it runs. When
// w is not a terminal the action runs without any output.
func Run(ctx context.Context, w io.Writer, title string, action func(context.Context) error) error {
	if !IsTerminal(w) {
		return action(ctx)
	}

	var actionErr error
	spinErr := spinner.New().
		Title(title).
		Accessible(os.Getenv("ACCESSIBLE") != "").
		Output(w).
		Context(ctx).
		Action(func() {
			actionErr = action(ctx)
		}).
		Run()
	if actionErr != nil {
		return actionErr
	}
	return spinErr
}

// ReadSecret prompts on w and reads a line from the terminal without
// echoing it. It fails when stdin is not a terminal.
func ReadSecret(w io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNotTerminal
	}
	io.WriteString(w, prompt)
	b, err := term.ReadPassword(fd)
	io.WriteString(w, "\n")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
