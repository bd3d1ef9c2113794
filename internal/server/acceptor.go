package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cassieroh/bulkcalc/internal/config"
	"github.com/cassieroh/bulkcalc/internal/worker"
)

// Acceptor listens on a TCP port and dispatches each connection to a job
// session speaking the newline-delimited JSON protocol. It satisfies
// Service.
type Acceptor struct {
	cfg     config.ServerConfig
	manager *worker.Manager
	logger  *zap.Logger

	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewAcceptor creates an acceptor over the given job manager.
//
// Precondition: cfg must have a valid port; manager and logger must be non-nil.
func NewAcceptor(cfg config.ServerConfig, manager *worker.Manager, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:     cfg,
		manager: manager,
		logger:  logger,
		quit:    make(chan struct{}),
	}
}

// Start opens the TCP listener and accepts connections until Stop is called.
// Blocks until the acceptor is stopped.
//
// Postcondition: the listener is closed when Start returns.
func (a *Acceptor) Start() error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	a.mu.Lock()
	a.listener = listener
	a.running = true
	a.mu.Unlock()

	a.logger.Info("job acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-a.quit:
				return nil
			default:
				a.logger.Error("accepting connection", zap.Error(err))
				continue
			}
		}

		a.wg.Add(1)
		go a.handleConn(conn)
	}
}

// handleConn runs one client session to completion.
func (a *Acceptor) handleConn(conn net.Conn) {
	defer a.wg.Done()
	defer conn.Close()

	start := time.Now()
	addr := conn.RemoteAddr().String()
	a.logger.Info("client connected", zap.String("remote_addr", addr))

	s := newSession(conn, a.manager, a.logger, a.cfg.ReadTimeout, a.cfg.WriteTimeout)

	// Unblock the session's reader on shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-a.quit:
			conn.Close()
		case <-done:
		}
	}()

	if err := s.run(); err != nil {
		a.logger.Debug("session ended",
			zap.String("remote_addr", addr),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return
	}
	a.logger.Info("session ended cleanly",
		zap.String("remote_addr", addr),
		zap.Duration("duration", time.Since(start)),
	)
}

// Stop closes the listener and waits for active sessions to drain.
//
// Postcondition: all connections are closed and session goroutines exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	a.running = false

	close(a.quit)
	if a.listener != nil {
		a.listener.Close()
	}
	a.wg.Wait()

	a.logger.Info("job acceptor stopped")
}

// Addr returns the actual listening address, empty until listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}
