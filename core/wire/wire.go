// Package wire holds the framing used between rsh clients and servers.
//
// Requests are command lines terminated by a newline or NUL byte. Responses
// are free-form output terminated by a single EOF byte.
package wire

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

const (
	// EOF marks the end of a response.
	EOF byte = 0x04

	// DefaultMaxRequest is the largest request accepted by default.
	DefaultMaxRequest = 64 * 1024
)

// ErrConnectionClosed is returned if the peer hangs up mid-response.
var ErrConnectionClosed = errors.New("connection closed by server")

// WriteEOF writes the end of response marker.
func WriteEOF(w io.Writer) error {
	_, err := w.Write([]byte{EOF})
	return err
}

// WriteRequest writes a single request line.
func WriteRequest(w io.Writer, line string) error {
	_, err := io.WriteString(w, line+"\n")
	return err
}

// ScanRequests is a bufio.SplitFunc that yields requests terminated by '\n'
// or NUL with any trailing '\r' removed. Unterminated data is returned at EOF.
func ScanRequests(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\n\x00"); i >= 0 {
		return i + 1, bytes.TrimSuffix(data[:i], []byte{'\r'}), nil
	}
	if atEOF {
		return len(data), bytes.TrimSuffix(data, []byte{'\r'}), nil
	}
	return 0, nil, nil
}

// NewRequestScanner reads requests up to max bytes long from r.
func NewRequestScanner(r io.Reader, max int) *bufio.Scanner {
	if max <= 0 {
		max = DefaultMaxRequest
	}
	initial := 4096
	if max < initial {
		initial = max
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), max)
	scanner.Split(ScanRequests)
	return scanner
}

// CopyResponse copies a single response from r to w, consuming but not
// writing the EOF marker. If the stream ends before the marker
// ErrConnectionClosed is returned after copying whatever was received.
func CopyResponse(w io.Writer, r *bufio.Reader) error {
	for {
		chunk, err := r.ReadSlice(EOF)
		switch {
		case err == nil:
			_, werr := w.Write(chunk[:len(chunk)-1])
			return werr
		case errors.Is(err, bufio.ErrBufferFull):
			if _, werr := w.Write(chunk); werr != nil {
				return werr
			}
		case errors.Is(err, io.EOF):
			if _, werr := w.Write(chunk); werr != nil {
				return werr
			}
			return ErrConnectionClosed
		default:
			return err
		}
	}
}
