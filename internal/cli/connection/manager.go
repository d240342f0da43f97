package connection

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Profile describes how to reach and log in to a file server.
type Profile struct {
	Server        string
	Username      string
	Password      string
	LegacyFraming bool
	Timeout       time.Duration
}

// Manager owns the CLI's connection, dialing and logging in on first use.
type Manager struct {
	mu      sync.Mutex
	profile Profile
	client  *Client
}

// NewManager creates a new connection manager.
func NewManager(profile Profile) *Manager {
	return &Manager{profile: profile}
}

// Profile returns the connection profile.
func (m *Manager) Profile() Profile {
	return m.profile
}

// Connect returns a connected client without logging in.
func (m *Manager) Connect(ctx context.Context) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked(ctx)
}

func (m *Manager) connectLocked(ctx context.Context) (*Client, error) {
	if m.client != nil {
		return m.client, nil
	}
	if m.profile.Server == "" {
		return nil, errors.New("no server address")
	}
	var opts []Option
	if m.profile.LegacyFraming {
		opts = append(opts, WithLegacyFraming())
	}
	if m.profile.Timeout > 0 {
		opts = append(opts, WithTimeout(m.profile.Timeout))
	}
	c, err := Dial(ctx, m.profile.Server, opts...)
	if err != nil {
		return nil, err
	}
	m.client = c
	return c, nil
}

// Session returns a client logged in with the profile's credentials.
func (m *Manager) Session(ctx context.Context) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.profile.Username == "" {
		return nil, errors.New("username required (--user or FILEVAULT_USER)")
	}
	fresh := m.client == nil
	c, err := m.connectLocked(ctx)
	if err != nil {
		return nil, err
	}
	if fresh {
		if err := c.Login(ctx, m.profile.Username, m.profile.Password); err != nil {
			c.Close()
			m.client = nil
			return nil, err
		}
	}
	return c, nil
}

// IsConnected returns true if a connection is open.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil
}

// Close closes the connection, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}
