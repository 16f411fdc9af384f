package shell

import (
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, line string) *CommandList {
	t.Helper()
	list, err := Parse(line, 0)
	require.NoError(t, err)
	return list
}

func TestExecutor_Execute(t *testing.T) {
	cases := map[string]struct {
		line       string
		stdin      string
		wantOut    string
		wantStatus int
	}{
		"echo": {
			line:    "echo hi",
			wantOut: "hi\n",
		},
		"three stage": {
			line:    `printf 'b\na\n' | sort | head -1`,
			wantOut: "a\n",
		},
		"word count": {
			line:    "echo hello world | wc -w",
			wantOut: "2\n",
		},
		"stdin feeds first command": {
			line:    "cat | tr a-z A-Z",
			stdin:   "shout\n",
			wantOut: "SHOUT\n",
		},
		"terminal status": {
			line:       "echo ignored | sh -c 'exit 3'",
			wantStatus: 3,
		},
		"terminal status wins over earlier failures": {
			line:    "sh -c 'exit 4' | echo ok",
			wantOut: "ok\n",
		},
		"stderr of last command": {
			line:       "sh -c 'echo oops >&2; exit 2'",
			wantOut:    "oops\n",
			wantStatus: 2,
		},
		"not found": {
			line:       "definitely-not-a-real-command-rsh",
			wantOut:    "definitely-not-a-real-command-rsh: command not found\n",
			wantStatus: StatusNotFound,
		},
		"not found mid pipeline": {
			line:    "echo a | definitely-not-a-real-command-rsh | echo b",
			wantOut: "b\n",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			out := &bytes.Buffer{}
			executor := &Executor{}

			var in io.Reader
			if tc.stdin != "" {
				in = strings.NewReader(tc.stdin)
			}

			status, err := executor.Execute(mustParse(t, tc.line), in, out)
			assert.NoError(t, err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantOut, out.String())
		})
	}
}

func TestExecutor_Execute_empty(t *testing.T) {
	status, err := (&Executor{}).Execute(&CommandList{}, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, status)
}

func TestExecutor_Execute_permissionDenied(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "script.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho nope\n"), 0644))

	out := &bytes.Buffer{}
	status, err := (&Executor{}).Execute(mustParse(t, script), nil, out)
	assert.NoError(t, err)
	assert.Equal(t, StatusPermission, status)
	assert.Equal(t, script+": permission denied\n", out.String())
}

func TestExecutor_Execute_redirection(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in.txt"), []byte("pear\napple\n"), 0644))

	executor := &Executor{Dir: dir}
	out := &bytes.Buffer{}

	status, err := executor.Execute(mustParse(t, "sort < in.txt > out.txt"), nil, out)
	assert.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Empty(t, out.String(), "redirected output shouldn't reach the stream")

	sorted, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	assert.NoError(t, err)
	assert.Equal(t, "apple\npear\n", string(sorted))

	t.Run("truncate", func(t *testing.T) {
		_, err := executor.Execute(mustParse(t, "echo fresh > out.txt"), nil, out)
		assert.NoError(t, err)
		got, _ := os.ReadFile(filepath.Join(dir, "out.txt"))
		assert.Equal(t, "fresh\n", string(got))
	})

	t.Run("append", func(t *testing.T) {
		_, err := executor.Execute(mustParse(t, "echo again >> out.txt"), nil, out)
		assert.NoError(t, err)
		got, _ := os.ReadFile(filepath.Join(dir, "out.txt"))
		assert.Equal(t, "fresh\nagain\n", string(got))
	})

	t.Run("missing input", func(t *testing.T) {
		out := &bytes.Buffer{}
		status, err := executor.Execute(mustParse(t, "cat < missing.txt"), nil, out)
		assert.NoError(t, err)
		assert.Equal(t, StatusFailure, status)
		assert.Contains(t, out.String(), "cat: ")
		assert.Contains(t, out.String(), "missing.txt")
	})

	t.Run("stderr still reaches stream", func(t *testing.T) {
		out := &bytes.Buffer{}
		_, err := executor.Execute(mustParse(t, "sh -c 'echo err >&2; echo out' > quiet.txt"), nil, out)
		assert.NoError(t, err)
		assert.Equal(t, "err\n", out.String())
	})
}

func TestExecutor_Execute_memFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/words.txt", []byte("one two three\n"), 0644))

	executor := &Executor{Dir: "/data", Fs: fs}
	status, err := executor.Execute(mustParse(t, "wc -w < words.txt > count.txt"), nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, status)

	got, err := afero.ReadFile(fs, "/data/count.txt")
	assert.NoError(t, err)
	assert.Equal(t, "3", strings.TrimSpace(string(got)))
}

func TestExecutor_Execute_memFsDir(t *testing.T) {
	spawner := &recordingSpawner{}
	executor := &Executor{Spawner: spawner, Dir: "/data", Fs: afero.NewMemMapFs()}

	_, err := executor.Execute(mustParse(t, "a | b"), nil, &bytes.Buffer{})
	assert.NoError(t, err)
	require.Len(t, spawner.specs, 2)
	for _, spec := range spawner.specs {
		assert.Empty(t, spec.Dir, "memory filesystem paths aren't OS directories")
	}
}

func TestExecutor_Execute_middleStderr(t *testing.T) {
	stderr := &bytes.Buffer{}
	out := &bytes.Buffer{}
	executor := &Executor{Stderr: stderr}

	_, err := executor.Execute(mustParse(t, "sh -c 'echo hidden >&2' | cat"), nil, out)
	assert.NoError(t, err)
	assert.Equal(t, "hidden\n", stderr.String())
	assert.Empty(t, out.String())
}

type fakeProcess struct {
	status int
}

func (p *fakeProcess) Wait() (int, error) {
	return p.status, nil
}

type recordingSpawner struct {
	specs []Spec
	fail  map[string]error
}

func (r *recordingSpawner) Spawn(spec Spec) (Process, error) {
	r.specs = append(r.specs, spec)
	if err, ok := r.fail[spec.Argv[0]]; ok {
		return nil, err
	}
	return &fakeProcess{status: len(r.specs)}, nil
}

func TestExecutor_Execute_wiring(t *testing.T) {
	in := strings.NewReader("input")
	out := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	spawner := &recordingSpawner{}
	executor := &Executor{Spawner: spawner, Stderr: stderr, Dir: "/work", Env: []string{"A=B"}}

	status, err := executor.Execute(mustParse(t, "a 1 | b 2 | c 3"), in, out)
	assert.NoError(t, err)
	assert.Equal(t, 3, status, "status should come from the last command")

	specs := spawner.specs
	require.Len(t, specs, 3)

	assert.Equal(t, []string{"a", "1"}, specs[0].Argv)
	assert.Equal(t, io.Reader(in), specs[0].Stdin)
	assert.Equal(t, io.Writer(stderr), specs[0].Stderr)

	for i := 1; i < len(specs); i++ {
		prevOut, ok := specs[i-1].Stdout.(*os.File)
		require.True(t, ok, "command %d should write to a pipe", i-1)
		nextIn, ok := specs[i].Stdin.(*os.File)
		require.True(t, ok, "command %d should read from a pipe", i)
		assert.NotEqual(t, prevOut, nextIn)
	}

	assert.Equal(t, io.Writer(out), specs[2].Stdout)
	assert.Equal(t, io.Writer(out), specs[2].Stderr)

	for _, spec := range specs {
		assert.Equal(t, "/work", spec.Dir)
		assert.Equal(t, []string{"A=B"}, spec.Env)
	}
}

func TestExecutor_Execute_wiringRedirects(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in.txt", nil, 0644))

	spawner := &recordingSpawner{}
	executor := &Executor{Spawner: spawner, Fs: fs}
	out := &bytes.Buffer{}

	_, err := executor.Execute(mustParse(t, "a | b < /in.txt > /out.txt"), strings.NewReader(""), out)
	assert.NoError(t, err)
	require.Len(t, spawner.specs, 2)

	inFile, ok := spawner.specs[1].Stdin.(afero.File)
	require.True(t, ok)
	assert.Equal(t, "/in.txt", filepath.ToSlash(inFile.Name()))

	outFile, ok := spawner.specs[1].Stdout.(afero.File)
	require.True(t, ok)
	assert.Equal(t, "/out.txt", filepath.ToSlash(outFile.Name()))

	assert.Equal(t, io.Writer(out), spawner.specs[1].Stderr)
}

func TestExecutor_Execute_launchFailure(t *testing.T) {
	spawner := &recordingSpawner{fail: map[string]error{
		"b": &LaunchError{Name: "b", Err: errors.New("boom")},
		"c": &LaunchError{Name: "c", Err: &os.PathError{Op: "fork/exec", Path: "c", Err: os.ErrPermission}},
	}}
	stderr := &bytes.Buffer{}
	out := &bytes.Buffer{}
	executor := &Executor{Spawner: spawner, Stderr: stderr}

	status, err := executor.Execute(mustParse(t, "a | b | c"), nil, out)
	assert.NoError(t, err)
	assert.Len(t, spawner.specs, 3, "every command should still be attempted")
	assert.Equal(t, StatusPermission, status)
	assert.Equal(t, "b: boom\n", stderr.String())
	assert.Equal(t, "c: permission denied\n", out.String())
}

func TestLaunchError(t *testing.T) {
	cases := map[string]struct {
		err        error
		wantStatus int
		wantMsg    string
	}{
		"not in path": {
			err:        &exec.Error{Name: "x", Err: exec.ErrNotFound},
			wantStatus: StatusNotFound,
			wantMsg:    "x: command not found",
		},
		"missing path": {
			err:        &os.PathError{Op: "fork/exec", Path: "x", Err: syscall.ENOENT},
			wantStatus: StatusNotFound,
			wantMsg:    "x: command not found",
		},
		"resolved path": {
			err:        &os.PathError{Op: "fork/exec", Path: "/bin/x", Err: syscall.ENOENT},
			wantStatus: StatusNotFound,
			wantMsg:    "x: command not found",
		},
		"permission": {
			err:        &os.PathError{Op: "fork/exec", Path: "x", Err: syscall.EACCES},
			wantStatus: StatusPermission,
			wantMsg:    "x: permission denied",
		},
		"missing working directory": {
			err:        &os.PathError{Op: "chdir", Path: "/gone", Err: syscall.ENOENT},
			wantStatus: StatusFailure,
			wantMsg:    "x: /gone: no such file or directory",
		},
		"unreadable working directory": {
			err:        &os.PathError{Op: "chdir", Path: "/locked", Err: syscall.EACCES},
			wantStatus: StatusFailure,
			wantMsg:    "x: /locked: permission denied",
		},
		"missing interpreter file": {
			err:        &os.PathError{Op: "open", Path: "/lib/other", Err: syscall.ENOENT},
			wantStatus: StatusFailure,
			wantMsg:    "x: open /lib/other: no such file or directory",
		},
		"other": {
			err:        errors.New("exec format error"),
			wantStatus: StatusFailure,
			wantMsg:    "x: exec format error",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			err := &LaunchError{Name: "x", Path: "/bin/x", Err: tc.err}
			assert.Equal(t, tc.wantStatus, err.Status())
			assert.Equal(t, tc.wantMsg, err.Error())
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestExecutor_Execute_missingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "removed")
	require.NoError(t, os.Mkdir(dir, 0755))
	require.NoError(t, os.Remove(dir))

	out := &bytes.Buffer{}
	executor := &Executor{Dir: dir}
	status, err := executor.Execute(mustParse(t, "echo hi"), nil, out)
	assert.NoError(t, err)
	assert.Equal(t, StatusFailure, status)
	assert.Equal(t, "echo: "+dir+": no such file or directory\n", out.String())
	assert.NotContains(t, out.String(), "command not found")
}
