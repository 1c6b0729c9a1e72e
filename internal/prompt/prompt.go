// Package prompt reads command lines, yes/no answers and secrets from the
// user. Decisions are made through a Policy so callers can run unattended.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Policy answers yes/no questions.
type Policy interface {
	Confirm(question string) bool
}

// AlwaysYes accepts every question without asking.
type AlwaysYes struct{}

func (AlwaysYes) Confirm(string) bool { return true }

// AlwaysNo declines every question without asking.
type AlwaysNo struct{}

func (AlwaysNo) Confirm(string) bool { return false }

// Prompter asks on out and reads from in. Command lines and answers share
// one buffered reader so a pasted block of input is consumed in order.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

// New returns a prompter. Secrets are read without echo when in is a
// terminal.
func New(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
	}
	return p
}

// ReadLine prints prompt and returns the next line without its line ending.
// A final line without a newline is returned before io.EOF.
func (p *Prompter) ReadLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) || line == "" {
			return "", err
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Confirm asks question and reports whether the answer starts with y.
func (p *Prompter) Confirm(question string) bool {
	answer, err := p.ReadLine(question + " [y/n] ")
	if err != nil {
		fmt.Fprintln(p.out)
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y")
}

// ReadSecret reads a line without echoing it when possible.
func (p *Prompter) ReadSecret(prompt string) ([]byte, error) {
	if p.fd < 0 {
		line, err := p.ReadLine(prompt)
		return []byte(line), err
	}
	fmt.Fprint(p.out, prompt)
	secret, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return nil, fmt.Errorf("read secret: %w", err)
	}
	return secret, nil
}
