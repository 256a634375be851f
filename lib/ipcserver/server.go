// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package ipcserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rpcready/rpcready/lib/audit"
	"github.com/rpcready/rpcready/lib/clock"
	"github.com/rpcready/rpcready/lib/handshake"
	"github.com/rpcready/rpcready/lib/metrics"
	"github.com/rpcready/rpcready/lib/transport"
)

// DefaultRetryDelay is the pause between a failed accept cycle and the
// next one.
const DefaultRetryDelay = 500 * time.Millisecond

// Options configures a Server.
type Options struct {
	// Transport binds the endpoint. Required.
	Transport transport.Transport

	// Identity supplies the identity announced in each READY event. It
	// is read once per connection, so a swappable provider changes the
	// identity for subsequent clients only. Required.
	Identity handshake.Provider

	// Audit receives one record per message sent or received. Nil
	// disables auditing.
	Audit audit.Sink

	// Logger receives server and session logs. Nil discards them.
	Logger *slog.Logger

	// Clock stamps audit records and times transport retries. Nil
	// uses the real clock.
	Clock clock.Clock

	// Metrics records server activity. Nil records nothing.
	Metrics *metrics.Metrics

	// Concurrent serves each session on its own goroutine instead of
	// on the accept loop.
	Concurrent bool

	// MaxSessions bounds the number of concurrent sessions. The accept
	// loop does not bind the endpoint while the bound is reached. Zero
	// is unbounded. Ignored unless Concurrent is set.
	MaxSessions int

	// ReadTimeout is the deadline for each inbound frame. Expiry ends
	// the session with a framing error. Zero waits forever.
	ReadTimeout time.Duration

	// RetryDelay is the pause after a transport error before the next
	// accept cycle. Zero retries immediately.
	RetryDelay time.Duration
}

// Server is the accept loop plus its sessions. Create with New.
type Server struct {
	options Options
	logger  *slog.Logger
	clock   clock.Clock

	running atomic.Bool
	started atomic.Bool

	// mu guards listener, the instance currently blocked in Accept, so
	// Stop can close it.
	mu       sync.Mutex
	listener net.Listener

	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}

	sessions sync.WaitGroup
	active   atomic.Int64
	slots    chan struct{}
}

// New validates options and returns a Server that has not started.
func New(options Options) (*Server, error) {
	if options.Transport == nil {
		return nil, errors.New("ipcserver: transport is required")
	}
	if options.Identity == nil {
		return nil, errors.New("ipcserver: identity provider is required")
	}
	if options.MaxSessions < 0 {
		return nil, fmt.Errorf("ipcserver: max sessions must not be negative, got %d", options.MaxSessions)
	}
	if options.ReadTimeout < 0 {
		return nil, fmt.Errorf("ipcserver: read timeout must not be negative, got %s", options.ReadTimeout)
	}
	if options.RetryDelay < 0 {
		return nil, fmt.Errorf("ipcserver: retry delay must not be negative, got %s", options.RetryDelay)
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	serverClock := options.Clock
	if serverClock == nil {
		serverClock = clock.Real()
	}

	server := &Server{
		options: options,
		logger:  logger,
		clock:   serverClock,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	if options.Concurrent && options.MaxSessions > 0 {
		server.slots = make(chan struct{}, options.MaxSessions)
	}
	return server, nil
}

// Run serves until Stop is called or ctx is cancelled, then waits for
// concurrent sessions to finish. A Server runs at most once.
func (s *Server) Run(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	s.serve(ctx)
	return nil
}

// Start runs the server on its own goroutine and returns once the run
// state is set, without waiting for the first client. Use Wait to
// block until the loop exits.
func (s *Server) Start(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	go s.serve(ctx)
	return nil
}

func (s *Server) begin() error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("ipcserver: server already started")
	}
	s.running.Store(true)
	return nil
}

// Stop clears the run state and closes the listening instance blocked
// in Accept, if any. Sessions in progress end at their next read
// checkpoint. Safe to call more than once and from any goroutine.
func (s *Server) Stop() {
	s.mu.Lock()
	s.running.Store(false)
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	s.stopOnce.Do(func() { close(s.stopped) })
}

// Wait blocks until the accept loop has exited and every session has
// finished. Only meaningful after Run or Start.
func (s *Server) Wait() {
	<-s.done
}

// Running reports whether the server is accepting clients.
func (s *Server) Running() bool {
	return s.running.Load()
}

// ActiveSessions is the number of sessions currently being served.
func (s *Server) ActiveSessions() int {
	return int(s.active.Load())
}

// Status summarises the server for health reporting.
func (s *Server) Status() metrics.Status {
	return metrics.Status{
		Running:        s.Running(),
		Endpoint:       s.options.Transport.Address(),
		ActiveSessions: s.ActiveSessions(),
	}
}

// serve is the accept loop.
func (s *Server) serve(ctx context.Context) {
	defer close(s.done)
	defer s.sessions.Wait()

	// Cancellation is a stop request.
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopped:
		}
	}()

	address := s.options.Transport.Address()
	s.logger.Info("rpc server started",
		"endpoint", address,
		"concurrent", s.options.Concurrent,
	)

	for s.running.Load() {
		if !s.acquireSlot() {
			break
		}

		connection, err := s.accept()
		if err != nil {
			s.releaseSlot()
			if !s.running.Load() {
				break
			}
			s.options.Metrics.TransportError()
			s.logger.Warn("accept cycle failed", "endpoint", address, "error", err)
			if !s.waitRetry() {
				break
			}
			continue
		}

		// A client that raced with Stop is not served.
		if !s.running.Load() {
			connection.Close()
			s.releaseSlot()
			break
		}

		if !s.options.Concurrent {
			s.serveSession(connection)
			continue
		}
		s.sessions.Add(1)
		go func() {
			defer s.sessions.Done()
			defer s.releaseSlot()
			s.serveSession(connection)
		}()
	}

	s.logger.Info("rpc server stopped", "endpoint", address)
}

// errStopped reports an accept cycle abandoned because the server
// stopped while the endpoint was being bound.
var errStopped = errors.New("server stopped")

// accept binds a fresh listening instance, accepts one client, and
// closes the instance.
func (s *Server) accept() (net.Conn, error) {
	listener, err := s.options.Transport.Listen()
	if err != nil {
		return nil, asTransportError("listen", s.options.Transport.Address(), err)
	}

	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		listener.Close()
		return nil, errStopped
	}
	s.listener = listener
	s.mu.Unlock()

	connection, err := listener.Accept()

	s.mu.Lock()
	if s.listener == listener {
		s.listener = nil
	}
	s.mu.Unlock()
	listener.Close()

	if err != nil {
		return nil, asTransportError("accept", s.options.Transport.Address(), err)
	}
	return connection, nil
}

func asTransportError(op, address string, err error) error {
	var transportError *transport.TransportError
	if errors.As(err, &transportError) {
		return err
	}
	return &transport.TransportError{Op: op, Address: address, Err: err}
}

// waitRetry pauses for RetryDelay. Returns false if the server stopped
// during the pause.
func (s *Server) waitRetry() bool {
	if s.options.RetryDelay == 0 {
		return s.running.Load()
	}
	select {
	case <-s.clock.After(s.options.RetryDelay):
		return s.running.Load()
	case <-s.stopped:
		return false
	}
}

// acquireSlot blocks until a concurrent session slot is free. Returns
// false if the server stopped while waiting.
func (s *Server) acquireSlot() bool {
	if s.slots == nil {
		return true
	}
	select {
	case s.slots <- struct{}{}:
		return true
	case <-s.stopped:
		return false
	}
}

func (s *Server) releaseSlot() {
	if s.slots == nil {
		return
	}
	<-s.slots
}
