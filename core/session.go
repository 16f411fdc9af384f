package core

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/josephlewis42/rsh/core/shell"
	"github.com/josephlewis42/rsh/core/wire"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ErrCommunication is returned when a client connection fails.
var ErrCommunication = errors.New("communication error")

// SessionOpt configures a Session.
type SessionOpt func(*Session)

// WithLogger sets the session's logger.
func WithLogger(logger zerolog.Logger) SessionOpt {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithDir sets the starting directory.
func WithDir(dir string) SessionOpt {
	return func(s *Session) {
		s.executor.Dir = dir
	}
}

// WithFs sets the filesystem used for redirection and cd.
func WithFs(fs afero.Fs) SessionOpt {
	return func(s *Session) {
		s.executor.Fs = fs
	}
}

// WithMaxPipeline limits the number of piped commands per line.
func WithMaxPipeline(max int) SessionOpt {
	return func(s *Session) {
		s.commands.Max = max
	}
}

// WithMaxRequest limits the size of a single request.
func WithMaxRequest(max int) SessionOpt {
	return func(s *Session) {
		s.maxRequest = max
	}
}

// WithStderr sets where the error output of commands before the last one in
// a pipeline goes.
func WithStderr(w io.Writer) SessionOpt {
	return func(s *Session) {
		s.executor.Stderr = w
	}
}

// WithStdin sets the input of the first command in each pipeline, nil gives
// it no input.
func WithStdin(r io.Reader) SessionOpt {
	return func(s *Session) {
		s.stdin = r
	}
}

// WithSpawner overrides how processes are started.
func WithSpawner(spawner shell.Spawner) SessionOpt {
	return func(s *Session) {
		s.executor.Spawner = spawner
	}
}

// Local configures the session for a local terminal, responses aren't
// followed by the end of response marker.
func Local() SessionOpt {
	return func(s *Session) {
		s.local = true
	}
}

// Session serves command lines from a single client. The working directory
// and last exit status belong to the session.
type Session struct {
	in    io.Reader
	out   *trackingWriter
	stdin io.Reader

	executor   shell.Executor
	commands   shell.CommandList
	lastStatus int
	maxRequest int
	local      bool

	logger zerolog.Logger
}

// NewSession creates a session reading requests from in and writing
// responses to out.
func NewSession(in io.Reader, out io.Writer, opts ...SessionOpt) *Session {
	s := &Session{
		in:     in,
		out:    &trackingWriter{w: out},
		logger: zerolog.Nop(),
	}
	s.commands.Max = shell.DefaultMaxPipeline
	s.executor.Dir, _ = os.Getwd()

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Stdout is where builtins write their output.
func (s *Session) Stdout() io.Writer {
	return s.out
}

// IsLocal is true for sessions attached to a local terminal.
func (s *Session) IsLocal() bool {
	return s.local
}

// LastStatus returns the exit status of the last command.
func (s *Session) LastStatus() int {
	return s.lastStatus
}

// SetLastStatus records the exit status of a command.
func (s *Session) SetLastStatus(status int) {
	s.lastStatus = status
}

// Dir returns the session's working directory.
func (s *Session) Dir() string {
	return s.executor.Dir
}

func (s *Session) fs() afero.Fs {
	if s.executor.Fs == nil {
		return afero.NewOsFs()
	}
	return s.executor.Fs
}

// Chdir changes the session's working directory, relative paths are resolved
// against the current one.
func (s *Session) Chdir(dir string) error {
	target := dir
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.executor.Dir, target)
	}
	target = filepath.Clean(target)

	info, err := s.fs().Stat(target)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: no such file or directory", dir)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s: permission denied", dir)
	case err != nil:
		return err
	case !info.IsDir():
		return fmt.Errorf("%s: not a directory", dir)
	}

	s.executor.Dir = target
	return nil
}

// Run serves requests until the client exits, hangs up, asks the server to
// stop or the connection fails.
func (s *Session) Run() (Result, error) {
	scanner := wire.NewRequestScanner(s.in, s.maxRequest)
	for scanner.Scan() {
		result, err := s.Handle(scanner.Text())
		if err != nil {
			return Exit, err
		}
		if result.IsControl() {
			return result, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return Exit, fmt.Errorf("%w: %v", ErrCommunication, err)
	}

	// Client hung up.
	return Exit, nil
}

// Handle runs a single command line and writes the response. A non-nil error
// means the response couldn't be delivered.
func (s *Session) Handle(line string) (Result, error) {
	defer s.commands.Reset()

	if err := s.commands.Parse(line); err != nil {
		s.logger.Debug().Str("line", line).Err(err).Msg("parse failed")
		fmt.Fprintln(s.out, err)
		return s.finish(Executed)
	}

	cmd := &s.commands.Commands[0]
	switch result := Dispatch(s, cmd); result {
	case NotBuiltin:
		// Run below.
	case Exit, StopServer:
		s.logger.Info().Str("line", line).Stringer("result", result).Msg("control command")
		return result, s.err()
	default:
		s.logger.Debug().Str("line", line).Int("status", s.lastStatus).Msg("builtin")
		return s.finish(result)
	}

	// The connection is never handed to children as stdin, they'd consume
	// the requests that follow.
	status, err := s.executor.Execute(&s.commands, s.stdin, s.out)
	s.lastStatus = status
	if err != nil {
		s.logger.Warn().Str("line", line).Err(err).Msg("pipeline failed")
		if s.out.err == nil {
			fmt.Fprintln(s.out, err)
		}
	}
	s.logger.Debug().Str("line", line).Int("status", status).Msg("pipeline finished")

	return s.finish(NotBuiltin)
}

func (s *Session) finish(result Result) (Result, error) {
	if !s.local {
		wire.WriteEOF(s.out)
	}
	return result, s.err()
}

func (s *Session) err() error {
	if s.out.err != nil {
		return fmt.Errorf("%w: %v", ErrCommunication, s.out.err)
	}
	return nil
}

// trackingWriter remembers the first write error so a broken connection can
// be detected after output was handed off to child processes.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	if t.w == nil {
		return len(p), nil
	}
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}
