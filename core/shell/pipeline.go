package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

var (
	// ErrPipe is returned if the pipes connecting a pipeline couldn't be
	// created, no commands are run.
	ErrPipe = errors.New("pipe creation failed")
	// ErrOutput is returned if a command's output couldn't be delivered.
	ErrOutput = errors.New("command output failed")
)

// Executor runs parsed pipelines.
type Executor struct {
	// Dir resolves relative redirection targets in Fs. When Fs is the OS
	// filesystem it's also the working directory for commands, otherwise
	// commands inherit the process's. Empty uses the process's working
	// directory.
	Dir string
	// Env is the environment for commands, nil inherits the process's.
	Env []string
	// Fs opens redirection targets, nil uses the OS filesystem.
	Fs afero.Fs
	// Stderr receives the error output of every command except the last,
	// nil discards it.
	Stderr io.Writer
	// Spawner starts processes, nil uses OSSpawner.
	Spawner Spawner
}

type pipe struct {
	r *os.File
	w *os.File
}

func closePipes(pipes []pipe) {
	for _, p := range pipes {
		if p.r != nil {
			p.r.Close()
		}
		if p.w != nil {
			p.w.Close()
		}
	}
}

type listCloser []io.Closer

func (lc listCloser) Close() error {
	var lastErr error
	for _, v := range lc {
		if err := v.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

func (e *Executor) fs() afero.Fs {
	if e.Fs == nil {
		return afero.NewOsFs()
	}
	return e.Fs
}

func (e *Executor) childDir() string {
	if _, ok := e.fs().(*afero.OsFs); ok {
		return e.Dir
	}
	return ""
}

func (e *Executor) spawner() Spawner {
	if e.Spawner == nil {
		return OSSpawner{}
	}
	return e.Spawner
}

func (e *Executor) resolve(path string) string {
	if filepath.IsAbs(path) || e.Dir == "" {
		return path
	}
	return filepath.Join(e.Dir, path)
}

// Execute runs every command in the list connected by pipes and returns the
// exit status of the last one.
//
// The first command reads from in and the last command writes stdout and
// stderr to out; redirections take precedence over both. Commands that fail
// to start report why on their stderr and get a shell-style exit status
// without affecting the rest of the pipeline.
func (e *Executor) Execute(list *CommandList, in io.Reader, out io.Writer) (int, error) {
	n := list.Len()
	if n == 0 {
		return 0, nil
	}

	pipes := make([]pipe, n-1)
	for i := range pipes {
		r, w, err := os.Pipe()
		if err != nil {
			closePipes(pipes[:i])
			return StatusFailure, fmt.Errorf("%w: %v", ErrPipe, err)
		}
		pipes[i] = pipe{r: r, w: w}
	}

	var files listCloser
	procs := make([]Process, n)
	statuses := make([]int, n)

	for i := range list.Commands {
		cmd := &list.Commands[i]
		spec := Spec{
			Argv: cmd.Argv(),
			Dir:  e.childDir(),
			Env:  e.Env,
		}

		if i > 0 {
			spec.Stdin = pipes[i-1].r
		} else {
			spec.Stdin = in
		}

		if i < n-1 {
			spec.Stdout = pipes[i].w
			spec.Stderr = e.Stderr
		} else {
			spec.Stdout = out
			spec.Stderr = out
		}

		opened, err := e.redirect(cmd, &spec)
		files = append(files, opened...)
		if err == nil {
			procs[i], err = e.spawner().Spawn(spec)
		}
		if err != nil {
			statuses[i] = reportLaunchFailure(cmd, spec.Stderr, err)
		}
	}

	// Children hold their own copies, these must all be closed so readers
	// see EOF once the writers exit.
	closePipes(pipes)

	var waitErr error
	for i, proc := range procs {
		if proc == nil {
			continue
		}
		status, err := proc.Wait()
		statuses[i] = status
		if err != nil && waitErr == nil {
			waitErr = err
		}
	}
	files.Close()

	if waitErr != nil {
		return statuses[n-1], fmt.Errorf("%w: %v", ErrOutput, waitErr)
	}
	return statuses[n-1], nil
}

func (e *Executor) redirect(cmd *Command, spec *Spec) ([]io.Closer, error) {
	var opened []io.Closer

	if cmd.Input != "" {
		fd, err := e.fs().Open(e.resolve(cmd.Input))
		if err != nil {
			return opened, err
		}
		opened = append(opened, fd)
		spec.Stdin = fd
	}

	if cmd.Output != "" {
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if cmd.Append {
			flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		}
		fd, err := e.fs().OpenFile(e.resolve(cmd.Output), flags, 0644)
		if err != nil {
			return opened, err
		}
		opened = append(opened, fd)
		spec.Stdout = fd
	}

	return opened, nil
}

// reportLaunchFailure writes the reason a command couldn't start to w and
// returns the command's exit status.
func reportLaunchFailure(cmd *Command, w io.Writer, err error) int {
	status := StatusFailure
	msg := fmt.Sprintf("%s: %v", cmd.Name, err)

	var launchErr *LaunchError
	if errors.As(err, &launchErr) {
		status = launchErr.Status()
		msg = launchErr.Error()
	}

	if w != nil {
		fmt.Fprintln(w, msg)
	}
	return status
}
