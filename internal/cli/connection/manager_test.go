package connection

import (
	"errors"
	"testing"

	"github.com/yndnr/filevault-go/internal/core/domain"
)

func TestManager_Session(t *testing.T) {
	addr := startServer(t)
	ctx := testContext(t)

	setup := NewManager(Profile{Server: addr})
	c, err := setup.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Register(ctx, "carol", "pw"); err != nil {
		t.Fatal(err)
	}
	setup.Close()
	if setup.IsConnected() {
		t.Error("IsConnected() after Close() = true")
	}

	m := NewManager(Profile{Server: addr, Username: "carol", Password: "pw"})
	defer m.Close()
	s1, err := m.Session(ctx)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	s2, err := m.Session(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Error("Session() should reuse the client")
	}
	if _, err := s1.List(ctx, ""); err != nil {
		t.Errorf("List() on session error = %v", err)
	}
}

func TestManager_SessionBadPassword(t *testing.T) {
	addr := startServer(t)
	ctx := testContext(t)

	m := NewManager(Profile{Server: addr, Username: "nobody", Password: "x"})
	if _, err := m.Session(ctx); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("Session() error = %v, want invalid credentials", err)
	}
	if m.IsConnected() {
		t.Error("failed login should drop the connection")
	}
}

func TestManager_RequiresUserAndServer(t *testing.T) {
	ctx := testContext(t)
	if _, err := NewManager(Profile{Server: "127.0.0.1:1"}).Session(ctx); err == nil {
		t.Error("Session() without username should fail")
	}
	if _, err := NewManager(Profile{}).Connect(ctx); err == nil {
		t.Error("Connect() without server should fail")
	}
}
