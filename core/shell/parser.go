package shell

// Loosely follows the token and redirection rules defined by
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html
//
// Supported: pipelines, simple commands, quoting, and the <, > and >>
// redirections. Not supported: expansions, globbing, compound commands.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anmitsu/go-shlex"
)

const (
	// DefaultMaxPipeline is the maximum number of piped commands on a line.
	DefaultMaxPipeline = 8

	pipeChar = "|"
	blanks   = " \t\r\n"

	opInput  = "<"
	opOutput = ">"
	opAppend = ">>"
)

var (
	// ErrNoCommands is returned for blank lines, it's a warning rather than a
	// hard failure.
	ErrNoCommands            = errors.New("warning: no commands provided")
	ErrTooManyCommands       = errors.New("error: too many piped commands")
	ErrEmptyCommand          = errors.New("error: empty command in pipeline")
	ErrMissingRedirectTarget = errors.New("error: missing redirection target")
)

// Command is a single simple command in a pipeline.
type Command struct {
	// Name of the executable, argv[0].
	Name string
	// Args holds the arguments, excluding the name.
	Args []string
	// Input is the file to read stdin from, empty if stdin isn't redirected.
	Input string
	// Output is the file to write stdout to, empty if stdout isn't redirected.
	Output string
	// Append opens Output for appending rather than truncating.
	Append bool
}

// Argv returns the name followed by the arguments.
func (c *Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String implements fmt.Stringer.
func (c *Command) String() string {
	var sb strings.Builder
	sb.WriteString(strings.Join(c.Argv(), " "))
	if c.Input != "" {
		fmt.Fprintf(&sb, " < %s", c.Input)
	}
	if c.Output != "" {
		op := opOutput
		if c.Append {
			op = opAppend
		}
		fmt.Fprintf(&sb, " %s %s", op, c.Output)
	}
	return sb.String()
}

// CommandList is a parsed pipeline. The zero value is ready to use with
// DefaultMaxPipeline as the depth limit.
type CommandList struct {
	Commands []Command
	// Max is the maximum number of commands, values < 1 use
	// DefaultMaxPipeline.
	Max int
}

// Parse parses line into a new CommandList.
func Parse(line string, max int) (*CommandList, error) {
	list := &CommandList{Max: max}
	if err := list.Parse(line); err != nil {
		return nil, err
	}
	return list, nil
}

// Len returns the number of commands in the list.
func (l *CommandList) Len() int {
	return len(l.Commands)
}

// Reset drops every command the list holds so the list can be reused.
func (l *CommandList) Reset() {
	for i := range l.Commands {
		l.Commands[i] = Command{}
	}
	l.Commands = l.Commands[:0]
}

func (l *CommandList) limit() int {
	if l.Max < 1 {
		return DefaultMaxPipeline
	}
	return l.Max
}

// Parse replaces the contents of the list with the commands in line.
// The list is left empty if an error is returned.
func (l *CommandList) Parse(line string) error {
	l.Reset()

	line = strings.Trim(line, blanks)
	if line == "" {
		return ErrNoCommands
	}

	segments := strings.Split(line, pipeChar)
	if len(segments) > l.limit() {
		return fmt.Errorf("%w: piping limited to %d commands", ErrTooManyCommands, l.limit())
	}

	for _, segment := range segments {
		cmd, err := parseSegment(segment)
		if err != nil {
			l.Reset()
			return err
		}
		l.Commands = append(l.Commands, cmd)
	}

	return nil
}

func parseSegment(segment string) (Command, error) {
	segment = strings.Trim(segment, blanks)
	if segment == "" {
		return Command{}, ErrEmptyCommand
	}

	var cmd Command
	var words []string
	pending := ""
	for _, p := range splitOperators(segment) {
		if p.op != "" {
			if pending != "" {
				return Command{}, fmt.Errorf("%w after %q", ErrMissingRedirectTarget, pending)
			}
			pending = p.op
			continue
		}

		fields, err := shlex.Split(p.text, true)
		if err != nil {
			return Command{}, fmt.Errorf("error: %v", err)
		}

		if pending != "" {
			if len(fields) == 0 {
				return Command{}, fmt.Errorf("%w after %q", ErrMissingRedirectTarget, pending)
			}
			cmd.redirect(pending, fields[0])
			fields = fields[1:]
			pending = ""
		}
		words = append(words, fields...)
	}
	if pending != "" {
		return Command{}, fmt.Errorf("%w after %q", ErrMissingRedirectTarget, pending)
	}

	if len(words) == 0 {
		return Command{}, ErrEmptyCommand
	}

	cmd.Name = words[0]
	cmd.Args = words[1:]
	return cmd, nil
}

func (c *Command) redirect(op, target string) {
	switch op {
	case opInput:
		c.Input = target
	case opOutput:
		c.Output = target
		c.Append = false
	case opAppend:
		c.Output = target
		c.Append = true
	}
}

// piece is either a redirection operator or the text between operators.
type piece struct {
	op   string
	text string
}

// splitOperators splits segment around the redirection operators that aren't
// quoted or escaped, so `echo '>' x` has none.
func splitOperators(segment string) []piece {
	var pieces []piece
	var text strings.Builder
	var quote rune
	escaped := false

	runes := []rune(segment)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case escaped:
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '<' || r == '>':
			pieces = append(pieces, piece{text: text.String()})
			text.Reset()

			op := string(r)
			if r == '>' && i+1 < len(runes) && runes[i+1] == '>' {
				op = opAppend
				i++
			}
			pieces = append(pieces, piece{op: op})
			continue
		}
		text.WriteRune(r)
	}

	return append(pieces, piece{text: text.String()})
}
