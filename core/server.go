package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/josephlewis42/rsh/core/config"
	"github.com/juju/ratelimit"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("rsh: server closed")

var logNameReplacer = strings.NewReplacer(":", "_", "[", "", "]", "", "/", "_")

// Server accepts rsh clients.
type Server struct {
	configuration *config.Configuration
	logger        zerolog.Logger
	workers       *semaphore.Weighted

	// CommandStderr receives the error output of commands before the last one
	// in a pipeline.
	CommandStderr io.Writer

	mutex    sync.Mutex
	listener net.Listener
	closed   bool
	stopped  chan struct{}
	stopOnce sync.Once
	sessions sync.WaitGroup
}

// NewServer creates a server, call Serve or ListenAndServe to start it.
func NewServer(configuration *config.Configuration, logger zerolog.Logger) (*Server, error) {
	if err := configuration.Validate(); err != nil {
		return nil, err
	}

	server := &Server{
		configuration: configuration,
		logger:        logger,
		CommandStderr: os.Stderr,
		stopped:       make(chan struct{}),
	}

	if configuration.Threaded && configuration.MaxConnections > 0 {
		server.workers = semaphore.NewWeighted(int64(configuration.MaxConnections))
	}

	return server, nil
}

// ListenAndServe listens on the configured address and serves clients.
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", s.configuration.Addr())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommunication, err)
	}
	return s.Serve(listener)
}

// Serve accepts clients on listener until a client sends stop-server, in
// which case nil is returned, or Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		listener.Close()
		return ErrServerClosed
	}
	s.listener = listener
	s.mutex.Unlock()
	defer listener.Close()

	mode := "single-threaded"
	if s.configuration.Threaded {
		mode = "multi-threaded"
	}
	s.logger.Info().Str("addr", listener.Addr().String()).Str("mode", mode).Msg("listening")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopped:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if s.workers != nil {
			if err := s.workers.Acquire(ctx, 1); err != nil {
				return s.stopErr()
			}
		}

		conn, err := listener.Accept()
		if err != nil {
			s.release()
			select {
			case <-s.stopped:
				return s.stopErr()
			default:
			}
			return fmt.Errorf("%w: accept: %v", ErrCommunication, err)
		}

		if !s.track() {
			conn.Close()
			s.release()
			return ErrServerClosed
		}

		if !s.configuration.Threaded {
			result := s.HandleConnection(conn)
			s.sessions.Done()
			if result == StopServer {
				s.Stop()
				return s.stopErr()
			}
			continue
		}

		go func() {
			defer s.sessions.Done()
			defer s.release()

			if s.HandleConnection(conn) == StopServer {
				s.Stop()
			}
		}()
	}
}

// track counts a new session unless Shutdown has started waiting.
func (s *Server) track() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return false
	}
	s.sessions.Add(1)
	return true
}

func (s *Server) release() {
	if s.workers != nil {
		s.workers.Release(1)
	}
}

func (s *Server) stopErr() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	return nil
}

// Addr returns the address the server is listening on, or nil.
func (s *Server) Addr() net.Addr {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stopped is closed once the server stops accepting clients.
func (s *Server) Stopped() <-chan struct{} {
	return s.stopped
}

// Stop stops accepting new clients, sessions in progress continue.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info().Msg("stopping server")
		close(s.stopped)

		s.mutex.Lock()
		defer s.mutex.Unlock()
		if s.listener != nil {
			s.listener.Close()
		}
	})
}

// Shutdown stops the server and waits for sessions in progress to end or
// ctx to be done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mutex.Lock()
	s.closed = true
	s.mutex.Unlock()
	s.Stop()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleConnection serves a single client and closes the connection.
func (s *Server) HandleConnection(conn net.Conn) Result {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	sessionLogger := s.logger.With().Str("remote", remote).Logger()
	sessionLogger.Info().Msg("client connected")

	var in io.Reader = conn
	var out io.Writer = conn

	if s.configuration.RecordSessions {
		logName := fmt.Sprintf("%s-%s.log", time.Now().UTC().Format("20060102T150405.000000"), logNameReplacer.Replace(remote))
		logFd, err := s.configuration.CreateSessionLog(logName)
		if err != nil {
			sessionLogger.Warn().Err(err).Msg("couldn't create session log")
		} else {
			defer logFd.Close()
			recorder := Record(conn, conn, logFd)
			defer recorder.Close()
			in, out = recorder, recorder
			sessionLogger.Info().Str("session_log", logName).Msg("recording session")
		}
	}

	if rate := s.configuration.OutputBytesPerSecond; rate > 0 {
		out = ratelimit.Writer(out, ratelimit.NewBucketWithRate(float64(rate), rate))
	}

	session := NewSession(in, out,
		WithLogger(sessionLogger),
		WithMaxPipeline(s.configuration.MaxPipeline),
		WithMaxRequest(s.configuration.MaxRequestBytes),
		WithStderr(s.CommandStderr),
	)

	result, err := session.Run()
	if err != nil {
		sessionLogger.Warn().Err(err).Msg("connection failed")
	}
	sessionLogger.Info().Stringer("result", result).Msg("client disconnected")

	return result
}
