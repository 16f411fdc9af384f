package wire

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ExampleScanRequests() {
	scanner := NewRequestScanner(strings.NewReader("ls -l\r\necho hi\x00rc"), 0)
	for scanner.Scan() {
		fmt.Printf("%q\n", scanner.Text())
	}

	// Output: "ls -l"
	// "echo hi"
	// "rc"
}

func TestNewRequestScanner_tooLong(t *testing.T) {
	scanner := NewRequestScanner(strings.NewReader(strings.Repeat("a", 100)+"\n"), 64)
	assert.False(t, scanner.Scan())
	assert.ErrorIs(t, scanner.Err(), bufio.ErrTooLong)
}

func TestNewRequestScanner_emptyLines(t *testing.T) {
	scanner := NewRequestScanner(strings.NewReader("\n\nls\n"), 0)

	var got []string
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	assert.NoError(t, scanner.Err())
	assert.Equal(t, []string{"", "", "ls"}, got)
}

func TestCopyResponse(t *testing.T) {
	stream := "first\n" + string(EOF) + "second" + string(EOF) + string(EOF) + "partial"
	r := bufio.NewReader(strings.NewReader(stream))

	expected := []string{"first\n", "second", ""}
	for _, want := range expected {
		out := &bytes.Buffer{}
		assert.NoError(t, CopyResponse(out, r))
		assert.Equal(t, want, out.String())
	}

	out := &bytes.Buffer{}
	assert.ErrorIs(t, CopyResponse(out, r), ErrConnectionClosed)
	assert.Equal(t, "partial", out.String())
}

func TestCopyResponse_large(t *testing.T) {
	payload := strings.Repeat("x", 3*4096+17)
	r := bufio.NewReaderSize(strings.NewReader(payload+string(EOF)), 16)

	out := &bytes.Buffer{}
	assert.NoError(t, CopyResponse(out, r))
	assert.Equal(t, payload, out.String())
}

func TestWriteRequestAndEOF(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.NoError(t, WriteRequest(buf, "echo hi"))
	assert.NoError(t, WriteEOF(buf))
	assert.Equal(t, "echo hi\n\x04", buf.String())
}
