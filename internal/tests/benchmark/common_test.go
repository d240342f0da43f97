package benchmark

import (
	"context"
	"crypto/rand"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/yndnr/filevault-go/internal/core/domain"
	"github.com/yndnr/filevault-go/internal/core/service"
	"github.com/yndnr/filevault-go/internal/storage"
)

// PayloadSizes are the file sizes used by transfer benchmarks.
var PayloadSizes = []int{1 << 10, 64 << 10, 1 << 20, 16 << 20}

// AccountCounts are the registry sizes used by persistence benchmarks.
var AccountCounts = []int{100, 1000, 10000}

// randomPayload returns size random bytes.
func randomPayload(b *testing.B, size int) []byte {
	b.Helper()
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		b.Fatal(err)
	}
	return data
}

// newRegistry creates a loaded registry over a JSON file store in a
// temporary directory.
func newRegistry(b *testing.B) *service.AccountRegistry {
	b.Helper()
	root := b.TempDir()
	store, err := storage.NewJSONFileStore(filepath.Join(root, "users.json"))
	if err != nil {
		b.Fatal(err)
	}
	reg, err := service.NewAccountRegistry(store, &service.AccountRegistryConfig{
		StorageRoot: filepath.Join(root, "storage"),
	})
	if err != nil {
		b.Fatal(err)
	}
	if err := reg.Load(context.Background()); err != nil {
		b.Fatal(err)
	}
	return reg
}

// newAccount registers a benchmark account and returns it.
func newAccount(b *testing.B, reg *service.AccountRegistry, username string) *domain.Account {
	b.Helper()
	acct, err := reg.Register(context.Background(), username, "bench-password")
	if err != nil {
		b.Fatal(err)
	}
	return acct
}

// accounts builds count accounts without touching disk.
func accounts(count int) []*domain.Account {
	out := make([]*domain.Account, count)
	for i := range out {
		name := fmt.Sprintf("user-%06d", i)
		out[i] = domain.NewAccount(name, "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8", "/srv/storage/"+name)
	}
	return out
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
}

// sizeLabel returns a human-readable size label.
func sizeLabel(size int) string {
	switch {
	case size >= 1024*1024:
		return fmt.Sprintf("%dMB", size/(1024*1024))
	case size >= 1024:
		return fmt.Sprintf("%dKB", size/1024)
	default:
		return fmt.Sprintf("%dB", size)
	}
}
