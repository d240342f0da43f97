package localserver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Terminator ends every response.
const Terminator = "."

// errPrefix starts the last line of a failed response.
const errPrefix = "ERR "

const connTimeout = 30 * time.Second

// Server serves the admin line protocol on a unix socket.
//
// Each request is one line: a command and optional arguments. The response
// is zero or more lines followed by a line holding only ".". Failures end
// with "ERR <message>" before the terminator.
type Server struct {
	path    string
	handler *Handler
	logger  *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup
}

// New creates a new local server.
func New(socketPath string, handler *Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		path:    socketPath,
		handler: handler,
		logger:  logger,
	}
}

// Start binds the socket and serves in the background. A stale socket file
// from a previous run is replaced; the socket is only accessible to its owner.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("localserver: %w", err)
	}
	if err := removeStaleSocket(s.path); err != nil {
		return err
	}
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("localserver: listen %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, 0600); err != nil {
		ln.Close()
		return fmt.Errorf("localserver: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.running.Store(true)
	s.logger.Info("local admin socket listening", "path", s.path)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ln)
	}()
	return nil
}

func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("localserver: %w", err)
	}
	if fi.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("localserver: %s exists and is not a socket", path)
	}
	if conn, err := net.DialTimeout("unix", path, time.Second); err == nil {
		conn.Close()
		return fmt.Errorf("localserver: %s is in use", path)
	}
	return os.Remove(path)
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("local admin accept failed", "error", err)
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// Shutdown closes the socket and waits for open sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var closeErr error
	s.mu.Lock()
	if s.listener != nil {
		closeErr = s.listener.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if errors.Is(closeErr, net.ErrClosed) {
			closeErr = nil
		}
		return closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	sc := bufio.NewScanner(conn)
	w := bufio.NewWriter(conn)
	for {
		_ = conn.SetDeadline(time.Now().Add(connTimeout))
		if !sc.Scan() {
			return
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		var out bytes.Buffer
		err := s.handler.Execute(&out, cmd, args)
		s.logger.Debug("local admin command", "command", cmd, "error", err)

		w.Write(out.Bytes())
		if out.Len() > 0 && !bytes.HasSuffix(out.Bytes(), []byte("\n")) {
			w.WriteByte('\n')
		}
		if err != nil {
			w.WriteString(errPrefix + err.Error() + "\n")
		}
		w.WriteString(Terminator + "\n")
		if err := w.Flush(); err != nil {
			return
		}
		if cmd == "shutdown" && err == nil {
			return
		}
	}
}

// Call sends one command to the socket at path and returns the response
// body. A failed command returns its message as an error.
func Call(ctx context.Context, path, command string) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", command); err != nil {
		return "", err
	}

	var body strings.Builder
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == Terminator:
			return body.String(), nil
		case strings.HasPrefix(line, errPrefix):
			return body.String(), errors.New(strings.TrimPrefix(line, errPrefix))
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return body.String(), err
	}
	return body.String(), errors.New("localserver: connection closed before end of response")
}
