package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/Hussein-Mazeh/credvault/internal/secret"
)

// prompter reads answers and secrets from the command's input. On a
// terminal secrets are read without echo; otherwise one line per answer.
type prompter struct {
	r   *bufio.Reader
	fd  int
	tty bool
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{r: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
	}
	return p
}

// Secret prompts and returns the entered bytes. The caller wipes them.
func (p *prompter) Secret(prompt string) ([]byte, error) {
	fmt.Fprint(p.out, prompt)
	if p.tty {
		pw, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return nil, err
		}
		return pw, nil
	}
	line, err := p.readLine()
	if err != nil {
		return nil, err
	}
	return line, nil
}

// SecretConfirmed prompts twice and fails when the answers differ.
func (p *prompter) SecretConfirmed(prompt, confirm string) ([]byte, error) {
	pw, err := p.Secret(prompt)
	if err != nil {
		return nil, err
	}
	again, err := p.Secret(confirm)
	if err != nil {
		secret.Wipe(pw)
		return nil, err
	}
	defer secret.Wipe(again)

	if !bytes.Equal(pw, again) {
		secret.Wipe(pw)
		return nil, userError{msg: "entries do not match"}
	}
	return pw, nil
}

// Line prompts and returns one line of input, without the newline.
func (p *prompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	return string(line), nil
}

func (p *prompter) readLine() ([]byte, error) {
	line, err := p.r.ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read input: %w", err)
	}
	line = bytes.TrimRight(line, "\r\n")
	return line, nil
}
