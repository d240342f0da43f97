package connection

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/filevault-go/internal/core/domain"
	"github.com/yndnr/filevault-go/internal/server/fileserver"
)

// DefaultTimeout bounds one request/response round trip.
const DefaultTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*options)

type options struct {
	framing  fileserver.Framing
	timeout  time.Duration
	maxFrame int
}

// WithLegacyFraming sends bare JSON objects instead of length-prefixed frames.
func WithLegacyFraming() Option {
	return func(o *options) { o.framing = fileserver.FramingLegacy }
}

// WithTimeout sets the per-request timeout used when the context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMaxFrameBytes caps the size of a response the client will accept.
func WithMaxFrameBytes(n int) Option {
	return func(o *options) { o.maxFrame = n }
}

// Client speaks the file protocol over one TCP connection.
// Requests are serialized; a Client is safe for concurrent use.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	bw      *bufio.Writer
	framer  fileserver.Framer
	timeout time.Duration
	broken  error
}

// Dial connects to a file server.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o := options{
		framing:  fileserver.FramingLength,
		timeout:  DefaultTimeout,
		maxFrame: fileserver.DefaultMaxFrameBytes,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	br := bufio.NewReader(conn)
	bw := bufio.NewWriter(conn)
	return &Client{
		conn:    conn,
		bw:      bw,
		framer:  fileserver.NewFramer(o.framing, br, bw, o.maxFrame),
		timeout: o.timeout,
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Framing reports the framing used on the connection.
func (c *Client) Framing() fileserver.Framing {
	return c.framer.Mode()
}

// Do sends one raw request and returns the server's response. Error
// responses are returned as responses, not as errors; transport failures
// are errors and leave the client unusable.
func (c *Client) Do(ctx context.Context, req map[string]string) (*fileserver.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return nil, c.broken
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	resp, err := c.roundTrip(payload)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		c.broken = fmt.Errorf("connection unusable: %w", err)
		return nil, err
	}
	return resp, nil
}

func (c *Client) roundTrip(payload []byte) (*fileserver.Response, error) {
	if err := c.framer.WriteMessage(payload); err != nil {
		return nil, err
	}
	if err := c.bw.Flush(); err != nil {
		return nil, err
	}
	msg, err := c.framer.ReadMessage()
	if err != nil {
		return nil, err
	}
	var resp fileserver.Response
	if err := json.Unmarshal(msg, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// call sends a request and converts an error response into a *domain.DomainError
// carrying the server's code.
func (c *Client) call(ctx context.Context, req map[string]string) (*fileserver.Response, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Status != fileserver.StatusSuccess {
		return nil, &domain.DomainError{Code: resp.Code, Message: resp.Message}
	}
	return resp, nil
}

func (c *Client) message(ctx context.Context, req map[string]string) (string, error) {
	resp, err := c.call(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, username, password string) error {
	_, err := c.message(ctx, map[string]string{
		"command":  fileserver.CmdRegister,
		"username": username,
		"password": password,
	})
	return err
}

// Login authenticates the connection.
func (c *Client) Login(ctx context.Context, username, password string) error {
	_, err := c.message(ctx, map[string]string{
		"command":  fileserver.CmdLogin,
		"username": username,
		"password": password,
	})
	return err
}

// Logout clears the connection's login. The connection stays open.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.message(ctx, map[string]string{"command": fileserver.CmdLogout})
	return err
}

// CreateDirectory creates a directory and any missing parents.
func (c *Client) CreateDirectory(ctx context.Context, path string) error {
	_, err := c.message(ctx, map[string]string{
		"command": fileserver.CmdCreateDirectory,
		"path":    path,
	})
	return err
}

// Upload stores data at path, replacing any existing file.
func (c *Client) Upload(ctx context.Context, path string, data []byte) error {
	_, err := c.message(ctx, map[string]string{
		"command": fileserver.CmdUploadFile,
		"path":    path,
		"data":    base64.StdEncoding.EncodeToString(data),
	})
	return err
}

// Download returns the contents of the file at path.
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.call(ctx, map[string]string{
		"command": fileserver.CmdDownloadFile,
		"path":    path,
	})
	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, errors.New("download response has no data")
	}
	data, err := base64.StdEncoding.DecodeString(*resp.Data)
	if err != nil {
		return nil, fmt.Errorf("decode download: %w", err)
	}
	return data, nil
}

// Delete removes a file or a directory tree.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.message(ctx, map[string]string{
		"command": fileserver.CmdDelete,
		"path":    path,
	})
	return err
}

// Entry is one directory listing item.
type Entry struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// Entry types.
const (
	TypeDir  = "dir"
	TypeFile = "file"
)

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Type == TypeDir }

// List lists a directory. An empty path is the account root.
func (c *Client) List(ctx context.Context, path string) ([]Entry, error) {
	resp, err := c.call(ctx, map[string]string{
		"command": fileserver.CmdListDirectory,
		"path":    path,
	})
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(resp.Items))
	for _, item := range resp.Items {
		e, err := parseItem(item)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseItem(item string) (Entry, error) {
	switch {
	case strings.HasPrefix(item, "D:"):
		return Entry{Name: item[2:], Type: TypeDir}, nil
	case strings.HasPrefix(item, "F:"):
		return Entry{Name: item[2:], Type: TypeFile}, nil
	default:
		return Entry{}, fmt.Errorf("unexpected listing item %q", item)
	}
}

// Ping checks liveness and returns the round-trip time.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if _, err := c.message(ctx, map[string]string{"command": fileserver.CmdPing}); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
