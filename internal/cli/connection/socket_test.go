package connection

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yndnr/filevault-go/internal/server/localserver"
)

func TestSocketClient_Execute(t *testing.T) {
	dir, err := os.MkdirTemp("", "fvsock")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "admin.sock")

	h := localserver.NewHandler(localserver.HandlerConfig{Accounts: func() int { return 3 }})
	srv := localserver.New(path, h, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown(context.Background())

	client := NewSocketClient(path)
	if client.Path() != path {
		t.Errorf("Path() = %q", client.Path())
	}
	out, err := client.Execute(testContext(t), "status")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "accounts: 3") {
		t.Errorf("Execute() = %q", out)
	}
	if _, err := client.Execute(testContext(t), "bogus", "arg"); err == nil {
		t.Error("unknown command should fail")
	}
}

func TestSocketClient_NoServer(t *testing.T) {
	client := NewSocketClient(filepath.Join(t.TempDir(), "missing.sock"))
	if _, err := client.Execute(testContext(t), "status"); err == nil {
		t.Error("Execute() without a server should fail")
	}
}
