package connection

import (
	"context"
	"strings"

	"github.com/yndnr/filevault-go/internal/server/localserver"
)

// SocketClient talks to the server's local admin socket.
type SocketClient struct {
	path string
}

// NewSocketClient creates a new socket client.
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{path: socketPath}
}

// Path returns the socket path.
func (c *SocketClient) Path() string {
	return c.path
}

// Execute sends one admin command and returns its output.
func (c *SocketClient) Execute(ctx context.Context, cmd string, args ...string) (string, error) {
	line := strings.Join(append([]string{cmd}, args...), " ")
	return localserver.Call(ctx, c.path, line)
}
