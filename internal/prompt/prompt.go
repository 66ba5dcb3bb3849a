// Package prompt asks the operator for confirmation before destructive steps.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrNoChoice is returned by Select when the operator picks nothing valid.
var ErrNoChoice = errors.New("no selection made")

// Prompter suspends until the operator answers.
type Prompter interface {
	// Confirm asks a yes/no question. def is returned for an empty answer.
	Confirm(question string, def bool) (bool, error)
	// Select presents items numbered from 1 and returns the chosen index.
	Select(question string, items []string) (int, error)
}

// Terminal reads answers line by line from in and writes questions to out.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal returns a Prompter on in/out. Nil values mean stdin/stdout.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Terminal{in: bufio.NewReader(in), out: out}
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (t *Terminal) Confirm(question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	fmt.Fprintf(t.out, "%s %s: ", question, hint)

	answer, err := t.readLine()
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(answer) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (t *Terminal) Select(question string, items []string) (int, error) {
	if len(items) == 0 {
		return -1, ErrNoChoice
	}

	fmt.Fprintln(t.out, question)
	for i, item := range items {
		fmt.Fprintf(t.out, "  %d) %s\n", i+1, item)
	}
	fmt.Fprintf(t.out, "Select [1-%d]: ", len(items))

	answer, err := t.readLine()
	if err == io.EOF {
		return -1, ErrNoChoice
	}
	if err != nil {
		return -1, fmt.Errorf("failed to read selection: %w", err)
	}

	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(items) {
		return -1, fmt.Errorf("%w: %q", ErrNoChoice, answer)
	}
	return n - 1, nil
}

// Yes answers every confirmation affirmatively and selects the first item.
// It backs --yes.
type Yes struct{}

func (Yes) Confirm(string, bool) (bool, error) { return true, nil }

func (Yes) Select(_ string, items []string) (int, error) {
	if len(items) == 0 {
		return -1, ErrNoChoice
	}
	return 0, nil
}
