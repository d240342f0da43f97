// Package tests holds end-to-end tests that run the file server over a real
// registry backend and drive it through the CLI client.
package tests

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/filevault-go/internal/cli/connection"
	"github.com/yndnr/filevault-go/internal/core/domain"
	"github.com/yndnr/filevault-go/internal/core/service"
	"github.com/yndnr/filevault-go/internal/server/fileserver"
	"github.com/yndnr/filevault-go/internal/storage"
	"github.com/yndnr/filevault-go/internal/telemetry/metric"
)

// node is one running server over a registry store and storage root.
type node struct {
	srv   *fileserver.Server
	store storage.AccountStore
	reg   *service.AccountRegistry
}

func startNode(t *testing.T, cfg storage.Config, root string) *node {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.Open(cfg, logger)
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	reg, err := service.NewAccountRegistry(store, &service.AccountRegistryConfig{
		StorageRoot: root,
		Logger:      logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	files := service.NewFileService(&service.FileServiceConfig{MaxFileBytes: 1 << 20})
	m := metric.NewRegistry()
	srvCfg := fileserver.DefaultConfig()
	srvCfg.Addr = "127.0.0.1:0"
	srv := fileserver.New(srvCfg, fileserver.NewDispatcher(reg, files, m, logger), m, logger)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return &node{srv: srv, store: store, reg: reg}
}

func (n *node) stop(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := n.store.Close(); err != nil {
		t.Errorf("store Close() error = %v", err)
	}
}

func backends(t *testing.T) map[string]storage.Config {
	dir := t.TempDir()
	return map[string]storage.Config{
		storage.BackendFile: {
			Backend: storage.BackendFile,
			Path:    filepath.Join(dir, "users.json"),
		},
		storage.BackendBadger: {
			Backend: storage.BackendBadger,
			Path:    filepath.Join(dir, "registry.db"),
			Badger:  storage.DefaultBadgerConfig(),
		},
	}
}

func TestSessionScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for name, cfg := range backends(t) {
		for _, legacy := range []bool{false, true} {
			label := name + "/length"
			if legacy {
				label = name + "/legacy"
			}
			t.Run(label, func(t *testing.T) {
				root := filepath.Join(t.TempDir(), "storage")
				cfg := cfg
				cfg.Path = filepath.Join(t.TempDir(), filepath.Base(cfg.Path))
				n := startNode(t, cfg, root)
				defer n.stop(t)

				runScenario(t, n.srv.Addr().String(), root, legacy)
			})
		}
	}
}

func runScenario(t *testing.T, addr, root string, legacy bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var opts []connection.Option
	if legacy {
		opts = append(opts, connection.WithLegacyFraming())
	}
	c, err := connection.Dial(ctx, addr, opts...)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()

	if err := c.Register(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := c.Register(ctx, "alice", "pw2"); !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Fatalf("duplicate Register() error = %v, want %v", err, domain.ErrDuplicateUsername)
	}

	if err := c.Login(ctx, "alice", "wrongpw"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("Login(wrong) error = %v, want %v", err, domain.ErrInvalidCredentials)
	}
	if err := c.Login(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := c.Upload(ctx, "notes.txt", []byte("hello")); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	data, err := c.Download(ctx, "notes.txt")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if !bytes.Equal(data, []byte("hello")) {
		t.Errorf("Download() = %q, want %q", data, "hello")
	}

	if err := c.CreateDirectory(ctx, "docs"); err != nil {
		t.Fatalf("CreateDirectory() error = %v", err)
	}
	if !hasEntry(ctx, t, c, "docs") {
		t.Error("List() missing docs after CreateDirectory")
	}
	if err := c.Delete(ctx, "docs"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if hasEntry(ctx, t, c, "docs") {
		t.Error("List() still has docs after Delete")
	}

	err = c.Upload(ctx, "../../etc/passwd", []byte("owned"))
	if !errors.Is(err, domain.ErrPathEscape) {
		t.Fatalf("Upload(traversal) error = %v, want %v", err, domain.ErrPathEscape)
	}
	assertNoFile(t, filepath.Dir(root), "passwd")
}

func hasEntry(ctx context.Context, t *testing.T, c *connection.Client, name string) bool {
	t.Helper()
	entries, err := c.List(ctx, "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, e := range entries {
		if e.Name == name && e.IsDir() {
			return true
		}
	}
	return false
}

func assertNoFile(t *testing.T, dir, name string) {
	t.Helper()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Name() == name {
			t.Errorf("unexpected file written: %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WalkDir() error = %v", err)
	}
}

// TestRegistryRestart checks that accounts and files survive a server restart
// on every backend.
func TestRegistryRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for name, cfg := range backends(t) {
		t.Run(name, func(t *testing.T) {
			root := filepath.Join(t.TempDir(), "storage")
			cfg := cfg
			cfg.Path = filepath.Join(t.TempDir(), filepath.Base(cfg.Path))

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()

			first := startNode(t, cfg, root)
			c, err := connection.Dial(ctx, first.srv.Addr().String())
			if err != nil {
				t.Fatal(err)
			}
			for _, user := range []string{"alice", "bob"} {
				if err := c.Register(ctx, user, "pw-"+user); err != nil {
					t.Fatalf("Register(%s) error = %v", user, err)
				}
			}
			if err := c.Login(ctx, "bob", "pw-bob"); err != nil {
				t.Fatal(err)
			}
			if err := c.Upload(ctx, "a/b.txt", []byte("kept")); err != nil {
				t.Fatalf("Upload() error = %v", err)
			}
			c.Close()
			first.stop(t)

			second := startNode(t, cfg, root)
			defer second.stop(t)
			if got := second.reg.Count(); got != 2 {
				t.Fatalf("Count() after restart = %d, want 2", got)
			}

			c, err = connection.Dial(ctx, second.srv.Addr().String())
			if err != nil {
				t.Fatal(err)
			}
			defer c.Close()
			if err := c.Register(ctx, "alice", "other"); !errors.Is(err, domain.ErrDuplicateUsername) {
				t.Errorf("Register(alice) after restart error = %v, want duplicate", err)
			}
			if err := c.Login(ctx, "bob", "pw-bob"); err != nil {
				t.Fatalf("Login() after restart error = %v", err)
			}
			data, err := c.Download(ctx, "a/b.txt")
			if err != nil {
				t.Fatalf("Download() after restart error = %v", err)
			}
			if string(data) != "kept" {
				t.Errorf("Download() = %q, want %q", data, "kept")
			}
		})
	}
}

// TestSandboxIsolation checks that two accounts never see each other's files.
func TestSandboxIsolation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dir := t.TempDir()
	root := filepath.Join(dir, "storage")
	n := startNode(t, storage.Config{Path: filepath.Join(dir, "users.json")}, root)
	defer n.stop(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dial := func(user string) *connection.Client {
		c, err := connection.Dial(ctx, n.srv.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { c.Close() })
		if err := c.Register(ctx, user, "pw"); err != nil {
			t.Fatalf("Register(%s) error = %v", user, err)
		}
		if err := c.Login(ctx, user, "pw"); err != nil {
			t.Fatalf("Login(%s) error = %v", user, err)
		}
		return c
	}
	alice := dial("alice")
	bob := dial("bob")

	if err := alice.Upload(ctx, "secret.txt", []byte("alice only")); err != nil {
		t.Fatal(err)
	}
	if _, err := bob.Download(ctx, "secret.txt"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("bob Download(secret.txt) error = %v, want %v", err, domain.ErrNotFound)
	}
	if _, err := bob.Download(ctx, "../alice/secret.txt"); !errors.Is(err, domain.ErrPathEscape) {
		t.Errorf("bob Download(../alice/secret.txt) error = %v, want %v", err, domain.ErrPathEscape)
	}

	entries, err := bob.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name, "secret") {
			t.Errorf("bob sees %q", e.Name)
		}
	}
}
