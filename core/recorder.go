package core

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/josephlewis42/rsh/core/wire"
)

type MockFd int

const (
	fdStdin  MockFd = 0
	fdStdout MockFd = 1
)

type MockFdOp int

const (
	opOpen  MockFdOp = 1
	opClose MockFdOp = 2
	opWrite MockFdOp = 3
)

type MockFdDir int

const (
	dirRead  MockFdDir = 1
	dirWrite MockFdDir = 2
)

type event struct {
	Operation    int32  // Operation, maps into MockFdOp.
	Tty          uint32 // Should always be 0.
	Size         int32  // Number of bytes following this event that represent the data.
	Direction    int32  // Data direction, maps into MockFdDir.
	Seconds      uint32 // UNIX timestamp of the event.
	Microseconds uint32 // Microseconds after the timestamp of the event.
}

// According to Kippo, the format matches User Mode Linux recording.
func logEvent(out io.Writer, timestamp time.Time, mockFd MockFd, op MockFdOp, data []byte) error {
	sec := timestamp.UnixNano() / int64(time.Second)
	usec := (timestamp.UnixNano() % int64(time.Second)) / int64(time.Microsecond)

	direction := dirWrite
	if mockFd == fdStdin {
		direction = dirRead
	}

	header := event{
		Operation:    int32(op),
		Size:         int32(len(data)),
		Direction:    int32(direction),
		Seconds:      uint32(sec),
		Microseconds: uint32(usec),
	}
	if err := binary.Write(out, binary.LittleEndian, &header); err != nil {
		return err
	}

	if len(data) > 0 {
		if _, err := out.Write(data); err != nil {
			return err
		}
	}

	return nil
}

// Recorder tees a client connection into a session transcript. Recording
// failures are logged and never interrupt the connection.
type Recorder struct {
	mutex  sync.Mutex
	in     io.Reader
	out    io.Writer
	output io.Writer
	now    func() time.Time
	failed bool
}

var _ io.ReadWriteCloser = (*Recorder)(nil)

// Record logs all traffic read from in and written to out to output.
func Record(in io.Reader, out io.Writer, output io.Writer) *Recorder {
	r := &Recorder{
		in:     in,
		out:    out,
		output: output,
		now:    time.Now,
	}
	r.log(fdStdin, opOpen, nil)
	return r
}

func (r *Recorder) log(mockFd MockFd, op MockFdOp, data []byte) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.failed {
		return
	}
	if err := logEvent(r.output, r.now(), mockFd, op, data); err != nil {
		// A partial event would corrupt everything after it.
		r.failed = true
	}
}

func (r *Recorder) Read(p []byte) (int, error) {
	amount, err := r.in.Read(p)
	if amount > 0 {
		r.log(fdStdin, opWrite, p[:amount])
	}
	return amount, err
}

func (r *Recorder) Write(p []byte) (int, error) {
	amount, err := r.out.Write(p)
	if amount > 0 {
		r.log(fdStdout, opWrite, p[:amount])
	}
	return amount, err
}

// Close records the end of the session, it doesn't close the connection.
func (r *Recorder) Close() error {
	r.log(fdStdout, opClose, nil)
	return nil
}

// Failed is true if the transcript couldn't be written.
func (r *Recorder) Failed() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.failed
}

type replayOpts struct {
	maxSleep time.Duration
}

// ReplayOpt changes options for playback
type ReplayOpt func(*replayOpts)

// MaxSleep sets the maximum duration that Replay will sleep when playing
// events.
func MaxSleep(duration time.Duration) ReplayOpt {
	return func(r *replayOpts) {
		r.maxSleep = duration
	}
}

// Replay plays the server output of a transcript to destination in real time.
// End of response markers are dropped.
func Replay(recording io.Reader, destination io.Writer, opts ...ReplayOpt) error {
	options := &replayOpts{
		maxSleep: 3 * time.Second,
	}

	for _, o := range opts {
		o(options)
	}

	var prevTime time.Time
	return ReplayCallback(recording, func(le *LogEvent) error {
		if !prevTime.IsZero() {
			sleepDuration := le.Time.Sub(prevTime)
			if sleepDuration > options.maxSleep {
				sleepDuration = options.maxSleep
			}
			if sleepDuration > 0 {
				time.Sleep(sleepDuration)
			}
		}
		prevTime = le.Time

		if le.EventType != EventTypeOutput {
			return nil
		}
		_, err := destination.Write(bytes.ReplaceAll(le.Data, []byte{wire.EOF}, nil))
		return err
	})
}

// EventType is the type of event that the LogEvent represents.
type EventType int

const (
	EventTypeClose EventType = iota
	EventTypeInput
	EventTypeOutput
	EventTypeOpen
)

type LogEvent struct {
	// Timestamp of this event.
	Time time.Time
	// Type of the event.
	EventType EventType
	// Data associated with the event.
	Data []byte
}

// ReplayCallback reads a stream of events to a callback.
func ReplayCallback(recording io.Reader, callback func(*LogEvent) error) (err error) {
	eventPtr := &event{}
	buf := &bytes.Buffer{}

	for {
		if err := binary.Read(recording, binary.LittleEndian, eventPtr); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		buf.Reset()

		currTime := time.Unix(int64(eventPtr.Seconds), int64(eventPtr.Microseconds)*int64(time.Microsecond))
		if _, err := io.CopyN(buf, recording, int64(eventPtr.Size)); err != nil {
			return err
		}

		outputEvent := &LogEvent{
			Time: currTime,
			Data: buf.Bytes(),
		}

		switch MockFdOp(eventPtr.Operation) {
		case opOpen:
			outputEvent.EventType = EventTypeOpen
		case opClose:
			outputEvent.EventType = EventTypeClose
		case opWrite:
			if MockFdDir(eventPtr.Direction) == dirWrite {
				outputEvent.EventType = EventTypeOutput
			} else {
				outputEvent.EventType = EventTypeInput
			}
		default:
			continue
		}

		if err := callback(outputEvent); err != nil {
			return err
		}
	}
}
