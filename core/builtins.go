package core

import (
	_ "embed"
	"fmt"
	"io"
	"sort"

	"github.com/josephlewis42/rsh/core/shell"
)

var (
	//go:embed dragon.txt
	dragonBanner string
)

// Result is the outcome of handling a command line.
type Result int

const (
	// NotBuiltin means the command must be run as a pipeline.
	NotBuiltin Result = iota
	// Executed means the command was handled by the session.
	Executed
	// Exit closes the connection.
	Exit
	// StopServer closes the connection and stops the server.
	StopServer
)

func (r Result) String() string {
	switch r {
	case NotBuiltin:
		return "not-builtin"
	case Executed:
		return "executed"
	case Exit:
		return "exit"
	case StopServer:
		return "stop-server"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// IsControl is true if the result ends the session.
func (r Result) IsControl() bool {
	return r == Exit || r == StopServer
}

const (
	farewellExit     = "client exited: getting next connection...\n"
	farewellStop     = "client requested server to stop, stopping...\n"
	farewellLocal    = "exiting...\n"
	stopServerNoServ = "stop-server: not connected to a server, exiting...\n"
)

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]Builtin)

type Builtin interface {
	Main(s *Session, cmd *shell.Command) Result
}

type BuiltinFunc func(s *Session, cmd *shell.Command) Result

func (f BuiltinFunc) Main(s *Session, cmd *shell.Command) Result {
	return f(s, cmd)
}

var _ Builtin = (BuiltinFunc)(nil)

// BuiltinNames returns the sorted names of all builtins.
func BuiltinNames() []string {
	var names []string
	for name := range AllBuiltins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs cmd if it's a builtin.
func Dispatch(s *Session, cmd *shell.Command) Result {
	builtin, ok := AllBuiltins[cmd.Name]
	if !ok {
		return NotBuiltin
	}
	return builtin.Main(s, cmd)
}

// Cd is the cd shell builtin, it changes the session's directory.
func Cd(s *Session, cmd *shell.Command) Result {
	switch len(cmd.Args) {
	case 0:
		// Sessions have no home directory to return to.
	case 1:
		if err := s.Chdir(cmd.Args[0]); err != nil {
			fmt.Fprintf(s.Stdout(), "%s: %v\n", cmd.Name, err)
			s.SetLastStatus(shell.StatusFailure)
			return Executed
		}
	default:
		fmt.Fprintf(s.Stdout(), "%s: too many arguments\n", cmd.Name)
		s.SetLastStatus(shell.StatusFailure)
		return Executed
	}

	s.SetLastStatus(0)
	return Executed
}

// Rc prints the exit status of the last command.
func Rc(s *Session, cmd *shell.Command) Result {
	fmt.Fprintf(s.Stdout(), "%d\n", s.LastStatus())
	return Executed
}

// Dragon prints the banner.
func Dragon(s *Session, cmd *shell.Command) Result {
	io.WriteString(s.Stdout(), dragonBanner)
	return Executed
}

// ExitCmd ends the session.
func ExitCmd(s *Session, cmd *shell.Command) Result {
	if s.IsLocal() {
		io.WriteString(s.Stdout(), farewellLocal)
	} else {
		io.WriteString(s.Stdout(), farewellExit)
	}
	return Exit
}

// StopServerCmd ends the session and asks the server to stop.
func StopServerCmd(s *Session, cmd *shell.Command) Result {
	if s.IsLocal() {
		io.WriteString(s.Stdout(), stopServerNoServ)
		return Exit
	}
	io.WriteString(s.Stdout(), farewellStop)
	return StopServer
}

func init() {
	AllBuiltins["cd"] = BuiltinFunc(Cd)
	AllBuiltins["rc"] = BuiltinFunc(Rc)
	AllBuiltins["dragon"] = BuiltinFunc(Dragon)
	AllBuiltins["exit"] = BuiltinFunc(ExitCmd)
	AllBuiltins["stop-server"] = BuiltinFunc(StopServerCmd)
}
