package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/josephlewis42/rsh/core/wire"
)

// Client talks to an rsh server.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects to the server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommunication, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an existing connection.
func NewClient(conn net.Conn) *Client {
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// Exec sends a command line and copies the response to w. If the server
// closes the connection, as it does after exit and stop-server,
// wire.ErrConnectionClosed is returned after the output is copied.
func (c *Client) Exec(line string, w io.Writer) error {
	if err := wire.WriteRequest(c.conn, line); err != nil {
		return fmt.Errorf("%w: %v", ErrCommunication, err)
	}
	return wire.CopyResponse(w, c.reader)
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Interact reads lines from the user and runs them on the server until the
// user or server ends the session.
func (c *Client) Interact(lines LineReader, stdout, stderr io.Writer) error {
	defer lines.Close()

	for {
		line, err := lines.Readline()
		switch {
		case errors.Is(err, io.EOF):
			// Be polite so a single-threaded server moves to the next client.
			return ignoreClosed(c.Exec("exit", io.Discard))

		case errors.Is(err, readline.ErrInterrupt):
			continue

		case err != nil:
			return err
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		if err := c.Exec(line, stdout); err != nil {
			if errors.Is(err, wire.ErrConnectionClosed) {
				return nil
			}
			ColorError.Fprintln(stderr, err)
			return err
		}
	}
}

func ignoreClosed(err error) error {
	if errors.Is(err, wire.ErrConnectionClosed) {
		return nil
	}
	return err
}
