package core

import (
	"bufio"
	"io"
	"os"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"
	"golang.org/x/term"
)

const DefaultPrompt = "rsh> "

var (
	ColorPrompt = color.New(color.FgGreen, color.Bold)
	ColorError  = color.New(color.FgRed)
)

// LineReader reads command lines from a user.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// NewLineReader reads lines from stdin. Terminals get an interactive prompt
// with line editing and history, anything else is read line by line.
func NewLineReader(stdin io.Reader, stdout, stderr io.Writer, prompt string) (LineReader, error) {
	if !IsTerminal(stdin) {
		return &scannerLineReader{scanner: bufio.NewScanner(stdin)}, nil
	}

	cfg := &readline.Config{
		Prompt: ColorPrompt.Sprint(prompt),
		Stdin:  readline.NewCancelableStdin(stdin),
		Stdout: stdout,
		Stderr: stderr,
		FuncIsTerminal: func() bool {
			return true
		},
	}

	if err := cfg.Init(); err != nil {
		return nil, err
	}

	instance, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// IsTerminal is true if r is a terminal.
func IsTerminal(r io.Reader) bool {
	fd, ok := r.(*os.File)
	return ok && term.IsTerminal(int(fd.Fd()))
}

type scannerLineReader struct {
	scanner *bufio.Scanner
}

var _ LineReader = (*scannerLineReader)(nil)

func (s *scannerLineReader) Readline() (string, error) {
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *scannerLineReader) Close() error {
	return nil
}
