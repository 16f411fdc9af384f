package core

import (
	"errors"
	"io"

	"github.com/abiosoft/readline"
)

// LocalShell runs command lines from a local user without a server.
type LocalShell struct {
	session *Session
	lines   LineReader
}

// NewLocalShell creates a shell that reads from lines and writes command
// output to stdout. Errors from commands before the last one in a pipeline
// go to stderr.
func NewLocalShell(lines LineReader, stdout, stderr io.Writer, opts ...SessionOpt) *LocalShell {
	opts = append([]SessionOpt{WithStderr(stderr)}, opts...)
	opts = append(opts, Local())

	return &LocalShell{
		session: NewSession(nil, stdout, opts...),
		lines:   lines,
	}
}

// Run reads and runs lines until exit or end of input, it returns the exit
// status of the last command.
func (l *LocalShell) Run() (int, error) {
	defer l.lines.Close()

	for {
		line, err := l.lines.Readline()
		switch {
		case errors.Is(err, io.EOF):
			return l.session.LastStatus(), nil

		case errors.Is(err, readline.ErrInterrupt):
			continue

		case err != nil:
			return l.session.LastStatus(), err

		case line == "":
			continue // empty line
		}

		result, err := l.session.Handle(line)
		if err != nil {
			return l.session.LastStatus(), err
		}
		if result.IsControl() {
			return l.session.LastStatus(), nil
		}
	}
}
