package connection

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/filevault-go/internal/core/service"
	"github.com/yndnr/filevault-go/internal/server/fileserver"
	"github.com/yndnr/filevault-go/internal/storage"
	"github.com/yndnr/filevault-go/internal/telemetry/metric"
)

// startServer runs a file server over a temporary storage root and returns
// its address.
func startServer(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewJSONFileStore(filepath.Join(root, "users.json"))
	if err != nil {
		t.Fatal(err)
	}
	reg, err := service.NewAccountRegistry(store, &service.AccountRegistryConfig{
		StorageRoot: filepath.Join(root, "storage"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	files := service.NewFileService(&service.FileServiceConfig{MaxFileBytes: 1 << 20})
	m := metric.NewRegistry()

	cfg := fileserver.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	srv := fileserver.New(cfg, fileserver.NewDispatcher(reg, files, m, nil), m, nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv.Addr().String()
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func dialT(t *testing.T, addr string, opts ...Option) *Client {
	t.Helper()
	c, err := Dial(testContext(t), addr, opts...)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}
