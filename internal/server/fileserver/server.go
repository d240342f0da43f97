package fileserver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"

	"github.com/yndnr/filevault-go/internal/core/domain"
	"github.com/yndnr/filevault-go/internal/telemetry/logger"
	"github.com/yndnr/filevault-go/internal/telemetry/metric"
	"github.com/yndnr/filevault-go/pkg/cmap"
)

var errNotServing = errors.New("file server is not serving")

// Config holds the file server configuration.
type Config struct {
	// Addr is the TCP listen address.
	Addr string
	// Framing is the message framing (default: auto).
	Framing Framing
	// ReadTimeout bounds reading one message once its first byte arrived (default: 5m).
	ReadTimeout time.Duration
	// WriteTimeout bounds writing one response (default: 5m).
	WriteTimeout time.Duration
	// IdleTimeout bounds the wait for the next message (default: 5m).
	IdleTimeout time.Duration
	// MaxConnections caps concurrent connections; 0 means unlimited.
	MaxConnections int
	// MaxFrameBytes caps one message (default: 200 MiB).
	MaxFrameBytes int
	// CommandsPerSecond limits commands per connection; 0 disables the limit.
	CommandsPerSecond float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:          "127.0.0.1:8888",
		Framing:       FramingAuto,
		ReadTimeout:   5 * time.Minute,
		WriteTimeout:  5 * time.Minute,
		IdleTimeout:   5 * time.Minute,
		MaxFrameBytes: DefaultMaxFrameBytes,
	}
}

// Handler executes decoded commands for a connection.
type Handler interface {
	Dispatch(ctx context.Context, c *Conn, cmd Command) *Response
}

// Server accepts client connections and runs one session loop per connection.
type Server struct {
	cfg        *Config
	dispatcher Handler
	metrics    *metric.Registry
	logger     *slog.Logger

	mu      sync.Mutex
	ln      net.Listener
	running atomic.Bool
	wg      sync.WaitGroup
	conns   *cmap.Map[*Conn]
}

// Conn is one client connection and its session.
type Conn struct {
	id        string
	netConn   net.Conn
	br        *bufio.Reader
	bw        *bufio.Writer
	framer    Framer
	limiter   *rate.Limiter
	logger    *slog.Logger
	createdAt time.Time

	session Session

	// mode mirrors framer.Mode() for readers outside the connection goroutine.
	mode   atomic.Value
	closed atomic.Bool
}

// ConnInfo describes a live connection for admin listings.
type ConnInfo struct {
	ID        string
	Remote    string
	User      string
	Framing   Framing
	CreatedAt time.Time
}

// New creates a new file server.
func New(cfg *Config, dispatcher Handler, metrics *metric.Registry, log *slog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     log,
		conns:      cmap.New[*Conn](),
	}
}

func (s *Server) newConn(nc net.Conn) *Conn {
	id := ulid.Make().String()
	c := &Conn{
		id:        id,
		netConn:   nc,
		br:        bufio.NewReaderSize(nc, legacyChunk),
		bw:        bufio.NewWriterSize(nc, legacyChunk),
		logger:    s.logger.With("conn_id", id, "remote", nc.RemoteAddr().String()),
		createdAt: time.Now(),
	}
	c.framer = NewFramer(s.cfg.Framing, c.br, c.bw, s.cfg.MaxFrameBytes)
	c.mode.Store(c.framer.Mode())
	if s.cfg.CommandsPerSecond > 0 {
		burst := int(s.cfg.CommandsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(s.cfg.CommandsPerSecond), burst)
	}
	return c
}

// Close closes the underlying connection once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

// ID returns the connection ID.
func (c *Conn) ID() string {
	return c.id
}

// Session returns the connection's session.
func (c *Conn) Session() *Session {
	return &c.session
}

func (c *Conn) info() ConnInfo {
	return ConnInfo{
		ID:        c.id,
		Remote:    c.netConn.RemoteAddr().String(),
		User:      c.session.Username(),
		Framing:   c.mode.Load().(Framing),
		CreatedAt: c.createdAt,
	}
}

// Start binds the listener and serves connections in the background.
// Bind errors are returned directly.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("fileserver: listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves connections accepted by ln in the background.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.running.Store(true)

	s.logger.Info("file server listening",
		"addr", ln.Addr().String(),
		"framing", s.cfg.Framing,
		"max_connections", s.cfg.MaxConnections)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
			s.logger.Error("file server accept loop stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Ready returns nil while the server is accepting connections.
func (s *Server) Ready() error {
	if !s.running.Load() {
		return errNotServing
	}
	return nil
}

// ActiveConnections returns the number of open connections.
func (s *Server) ActiveConnections() int {
	return s.conns.Count()
}

// Connections lists open connections, oldest first.
func (s *Server) Connections() []ConnInfo {
	out := make([]ConnInfo, 0, s.conns.Count())
	s.conns.Range(func(_ string, c *Conn) bool {
		out = append(out, c.info())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Shutdown stops accepting, interrupts blocked reads and waits for every
// connection goroutine to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var firstErr error
	s.mu.Lock()
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			firstErr = err
		}
	}
	s.mu.Unlock()

	s.conns.Range(func(_ string, c *Conn) bool {
		_ = c.netConn.SetReadDeadline(time.Now())
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.conns.Range(func(_ string, c *Conn) bool {
			_ = c.Close()
			return true
		})
		return ctx.Err()
	}
	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return err
		}

		c := s.newConn(nc)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, c)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, c *Conn) {
	s.conns.Set(c.id, c)
	if s.metrics != nil {
		s.metrics.ConnOpened()
	}
	c.logger.Debug("connection opened")

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("connection handler panicked",
				"panic", r,
				"stack", string(debug.Stack()))
		}
		_ = c.Close()
		s.conns.Delete(c.id)
		if s.metrics != nil {
			s.metrics.ConnClosed()
		}
		c.logger.Debug("connection closed")
	}()

	ctx = logger.WithConnID(ctx, c.id)

	readTimeout := orDefault(s.cfg.ReadTimeout, 5*time.Minute)
	writeTimeout := orDefault(s.cfg.WriteTimeout, 5*time.Minute)
	idleTimeout := orDefault(s.cfg.IdleTimeout, 5*time.Minute)

	for {
		if !s.running.Load() {
			return
		}

		// Idle wait for the first byte of the next message, unless a legacy
		// framer still holds unread bytes from the previous read.
		if !hasPending(c.framer) {
			if err := c.netConn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
				return
			}
			if _, err := c.br.Peek(1); err != nil {
				s.logReadEnd(c, err)
				return
			}
		}

		if err := c.netConn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}
		payload, err := c.framer.ReadMessage()
		if err != nil {
			if errors.Is(err, ErrFrameTooLarge) {
				c.logger.Warn("frame limit exceeded", "error", err)
				if s.metrics != nil {
					s.metrics.RecordFrameError("oversize")
				}
				s.reply(c, errorResponse(domain.ErrPayloadTooLarge.WithDetails("message exceeds frame limit")), writeTimeout)
				return
			}
			if errors.Is(err, io.ErrUnexpectedEOF) && s.metrics != nil {
				s.metrics.RecordFrameError("truncated")
			}
			s.logReadEnd(c, err)
			return
		}

		c.mode.Store(c.framer.Mode())

		resp := s.process(ctx, c, payload)
		if !s.reply(c, resp, writeTimeout) {
			return
		}
	}
}

// process runs one message through rate limiting, decoding and dispatch.
// Commands that need a login are refused before their fields are checked.
func (s *Server) process(ctx context.Context, c *Conn, payload []byte) *Response {
	start := time.Now()
	name := "invalid"
	var resp *Response

	if c.limiter != nil && !c.limiter.Allow() {
		resp = errorResponse(domain.ErrRateLimited)
		name = "rate_limited"
	} else if msg, err := ParseMessage(payload); err != nil {
		c.logger.Debug("rejected message", "code", domain.GetErrorCode(err), "error", err)
		resp = errorResponse(err)
	} else if RequiresAuth(msg.Name) && c.Session().Account() == nil {
		name = msg.Name
		resp = errorResponse(domain.ErrNotAuthenticated)
	} else if cmd, err := msg.Command(); err != nil {
		c.logger.Debug("rejected message", "command", msg.Name, "code", domain.GetErrorCode(err), "error", err)
		resp = errorResponse(err)
	} else {
		name = cmd.Name()
		resp = s.dispatcher.Dispatch(ctx, c, cmd)
	}

	if s.metrics != nil {
		s.metrics.RecordCommand(name, resp.Status, time.Since(start).Seconds())
	}
	return resp
}

// reply writes and flushes one response. It reports false when the
// connection should be dropped.
func (s *Server) reply(c *Conn, resp *Response, writeTimeout time.Duration) bool {
	if err := c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return false
	}
	if err := c.framer.WriteMessage(resp.encode()); err != nil {
		c.logger.Debug("write failed", "error", err)
		return false
	}
	if err := c.bw.Flush(); err != nil {
		c.logger.Debug("flush failed", "error", err)
		return false
	}
	return true
}

func (s *Server) logReadEnd(c *Conn, err error) {
	var ne net.Error
	switch {
	case errors.Is(err, io.EOF):
	case errors.As(err, &ne) && ne.Timeout():
		c.logger.Debug("connection timed out")
	default:
		c.logger.Debug("connection read error", "error", err)
	}
}

// hasPending reports whether the framer buffered bytes beyond the last message.
func hasPending(f Framer) bool {
	switch v := f.(type) {
	case *legacyFramer:
		return len(bytes.TrimSpace(v.buf)) > 0
	case *autoFramer:
		return v.inner != nil && hasPending(v.inner)
	}
	return false
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
