package shell

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
)

const (
	// StatusNotFound is the exit status of a command that couldn't be found.
	StatusNotFound = 127
	// StatusPermission is the exit status of a command that couldn't be run.
	StatusPermission = 126
	// StatusFailure is the generic failure exit status.
	StatusFailure = 1
	// StatusSignaled is reported for processes killed by a signal.
	StatusSignaled = -1
)

// Spec describes a process to spawn with explicit stdio bindings.
type Spec struct {
	// Argv holds the executable name followed by its arguments.
	Argv []string
	// Dir is the working directory, empty inherits the parent's.
	Dir string
	// Env is the environment, nil inherits the parent's.
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Process is a started child.
type Process interface {
	// Wait blocks until the process exits and returns its exit status. A
	// non-nil error indicates a failure collecting the process output, the
	// status is still valid.
	Wait() (int, error)
}

// Spawner starts processes, decoupling pipeline wiring from the platform's
// process creation primitives.
type Spawner interface {
	Spawn(spec Spec) (Process, error)
}

// SpawnerFunc adapts a function to a Spawner.
type SpawnerFunc func(spec Spec) (Process, error)

// Spawn implements Spawner.
func (f SpawnerFunc) Spawn(spec Spec) (Process, error) {
	return f(spec)
}

var _ Spawner = (SpawnerFunc)(nil)

// OSSpawner spawns real processes using os/exec.
type OSSpawner struct{}

var _ Spawner = (*OSSpawner)(nil)

// Spawn implements Spawner.
func (OSSpawner) Spawn(spec Spec) (Process, error) {
	if len(spec.Argv) == 0 {
		return nil, &LaunchError{Err: exec.ErrNotFound}
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdin = spec.Stdin
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Name: spec.Argv[0], Path: cmd.Path, Err: err}
	}

	return &osProcess{cmd: cmd}, nil
}

type osProcess struct {
	cmd *exec.Cmd
}

func (p *osProcess) Wait() (int, error) {
	err := p.cmd.Wait()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		// ExitCode is -1 if the process was terminated by a signal.
		return exitErr.ExitCode(), nil
	case p.cmd.ProcessState != nil:
		return p.cmd.ProcessState.ExitCode(), err
	default:
		return StatusFailure, err
	}
}

// LaunchError is returned when a process couldn't be started.
type LaunchError struct {
	Name string
	// Path is the resolved executable, empty if it wasn't found.
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	if dir := e.chdirError(); dir != nil {
		return fmt.Sprintf("%s: %s: %v", e.Name, dir.Path, dir.Err)
	}

	switch {
	case e.NotFound():
		return fmt.Sprintf("%s: command not found", e.Name)
	case e.PermissionDenied():
		return fmt.Sprintf("%s: permission denied", e.Name)
	default:
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// chdirError returns the error if the working directory was unusable.
func (e *LaunchError) chdirError() *fs.PathError {
	var pathErr *fs.PathError
	if errors.As(e.Err, &pathErr) && pathErr.Op == "chdir" {
		return pathErr
	}
	return nil
}

// executableError returns the error if it's about the executable itself.
func (e *LaunchError) executableError() *fs.PathError {
	var pathErr *fs.PathError
	if !errors.As(e.Err, &pathErr) || pathErr.Op == "chdir" {
		return nil
	}
	if pathErr.Path == e.Name || (e.Path != "" && pathErr.Path == e.Path) {
		return pathErr
	}
	return nil
}

// NotFound is true if the executable doesn't exist.
func (e *LaunchError) NotFound() bool {
	if errors.Is(e.Err, exec.ErrNotFound) {
		return true
	}
	pathErr := e.executableError()
	return pathErr != nil && errors.Is(pathErr.Err, fs.ErrNotExist)
}

// PermissionDenied is true if the executable exists but can't be run.
func (e *LaunchError) PermissionDenied() bool {
	pathErr := e.executableError()
	return pathErr != nil && errors.Is(pathErr.Err, fs.ErrPermission)
}

// Status is the exit status a shell reports for the failure.
func (e *LaunchError) Status() int {
	switch {
	case e.NotFound():
		return StatusNotFound
	case e.PermissionDenied():
		return StatusPermission
	default:
		return StatusFailure
	}
}
