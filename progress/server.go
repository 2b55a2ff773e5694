// Package progress implements the progress aggregation server module.
//
// The module's trigger is a small network listener: external reporter
// processes connect and send line-framed JSON messages, one per update:
//
//	{"task_id": "cp-42", "label": "copy", "fraction": 0.37}
//	{"task_id": "cp-42", "done": true}
//
// The module folds all currently reporting tasks into one combined segment.
// A malformed message closes that reporter's connection only; other
// connections and already registered tasks are unaffected. A reporter that
// crashes without sending done is swept out after an idle timeout.
package progress

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nomis52/barline/module"
)

// Message is one wire update from a reporter.
type Message struct {
	TaskID   string   `json:"task_id"`
	Label    string   `json:"label,omitempty"`
	Fraction *float64 `json:"fraction,omitempty"`
	Done     bool     `json:"done,omitempty"`
}

// Config holds the progress server module settings.
type Config struct {
	// Network is "unix" or "tcp".
	Network string `yaml:"network"`
	// Address is the socket path (unix) or host:port (tcp).
	Address string `yaml:"address"`
	// IdleTimeout removes tasks with no message for this long.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	// HousekeepTick bounds how long a stale task can outlive its timeout.
	HousekeepTick time.Duration `yaml:"housekeep_tick"`
	// Policy selects how simultaneous tasks are combined: "list" renders one
	// bar per task, "sum" renders one aggregate bar.
	Policy string `yaml:"policy"`
	// MaxLen is the target segment width in cells.
	MaxLen int `yaml:"max_len"`
}

const (
	defaultIdleTimeout   = 2 * time.Minute
	defaultHousekeepTick = 10 * time.Second
	defaultMaxLen        = 20

	// PolicyList renders each task's bar individually.
	PolicyList = "list"
	// PolicySum renders the task count and one aggregate (average) bar.
	PolicySum = "sum"

	maxMessageSize = 64 * 1024
)

func (c *Config) setDefaults() {
	if c.Network == "" {
		c.Network = "unix"
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.HousekeepTick <= 0 {
		c.HousekeepTick = defaultHousekeepTick
	}
	if c.Policy == "" {
		c.Policy = PolicyList
	}
	if c.MaxLen <= 0 {
		c.MaxLen = defaultMaxLen
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("progress server address is required")
	}
	if c.Network != "" && c.Network != "unix" && c.Network != "tcp" {
		return fmt.Errorf("progress server network must be unix or tcp, got %q", c.Network)
	}
	if c.Policy != "" && c.Policy != PolicyList && c.Policy != PolicySum {
		return fmt.Errorf("progress policy must be %s or %s, got %q", PolicyList, PolicySum, c.Policy)
	}
	return nil
}

// Server is a status module whose wait step is "accept and absorb reporter
// messages". It implements module.Module and io.Closer.
type Server struct {
	cfg    Config
	logger *slog.Logger
	reg    *registry

	// notify is poked by connection handlers whenever the registry changed.
	notify chan struct{}

	startOnce sync.Once
	startErr  error
	closed    atomic.Bool

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	handlers sync.WaitGroup

	// state is the snapshot rendered by Render, written only by Update.
	state []Task
}

// New creates the server module. The listener is bound lazily on the first
// WaitTrigger call; a bind failure is reported as a terminal module failure.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Server{
		cfg:    cfg,
		logger: logger.With("module", "progress"),
		reg:    newRegistry(),
		notify: make(chan struct{}, 1),
		conns:  make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the listener address, or nil before the listener is bound.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// WaitTrigger blocks until the registry changed, a housekeeping tick is due,
// or ctx is cancelled.
func (s *Server) WaitTrigger(ctx context.Context) error {
	s.startOnce.Do(func() { s.startErr = s.start() })
	if s.startErr != nil {
		return module.Terminal(fmt.Errorf("starting progress listener: %w", s.startErr))
	}

	timer := time.NewTimer(s.cfg.HousekeepTick)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.notify:
		return nil
	case <-timer.C:
		return nil
	}
}

// Update sweeps stale tasks and snapshots the registry for rendering.
func (s *Server) Update(ctx context.Context) error {
	if removed := s.reg.sweep(time.Now().Add(-s.cfg.IdleTimeout)); removed > 0 {
		s.logger.Info("removed stale progress tasks", "count", removed)
	}
	s.state = s.reg.snapshot()
	return nil
}

// Render folds the snapshot into the combined progress segment. An empty
// registry contributes an empty segment.
func (s *Server) Render() string {
	return renderTasks(s.state, s.cfg.Policy, s.cfg.MaxLen)
}

// start binds the listener and launches the accept loop.
func (s *Server) start() error {
	if s.cfg.Network == "unix" {
		// A stale socket file from a previous run would fail the bind.
		if err := os.Remove(s.cfg.Address); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing stale socket: %w", err)
		}
	}

	listener, err := net.Listen(s.cfg.Network, s.cfg.Address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("progress listener started",
		"network", s.cfg.Network,
		"address", listener.Addr().String(),
	)

	s.handlers.Add(1)
	go s.acceptLoop(listener)
	return nil
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.handlers.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.handlers.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn reads messages from one reporter until it disconnects or sends
// a malformed message.
func (s *Server) handleConn(conn net.Conn) {
	defer s.handlers.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxMessageSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := s.applyMessage(line); err != nil {
			s.logger.Warn("rejecting reporter connection", "error", err)
			return
		}
		s.poke()
	}
}

// applyMessage decodes and applies one wire message to the registry.
func (s *Server) applyMessage(line []byte) error {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return fmt.Errorf("malformed message: %w", err)
	}
	if msg.TaskID == "" {
		return fmt.Errorf("malformed message: missing task_id")
	}
	if msg.Done {
		s.reg.done(msg.TaskID)
		return nil
	}
	if msg.Fraction == nil {
		return fmt.Errorf("malformed message: missing fraction")
	}
	s.reg.upsert(msg.TaskID, msg.Label, *msg.Fraction, time.Now())
	return nil
}

func (s *Server) poke() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Close shuts the listener and all reporter connections and waits for the
// handlers to exit. Called by the worker when the module stops.
func (s *Server) Close() error {
	s.closed.Store(true)

	s.mu.Lock()
	listener := s.listener
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	for _, conn := range conns {
		conn.Close()
	}
	s.handlers.Wait()

	if s.cfg.Network == "unix" && listener != nil {
		os.Remove(s.cfg.Address)
	}
	return nil
}
