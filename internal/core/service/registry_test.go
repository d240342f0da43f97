package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/yndnr/filevault-go/internal/core/domain"
)

// memAccountRepo is an in-memory AccountRepository for testing.
type memAccountRepo struct {
	mu      sync.Mutex
	stored  []*domain.Account
	loadErr error
	saveErr error
	saves   int
}

func (m *memAccountRepo) Load(ctx context.Context) ([]*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.stored, nil
}

func (m *memAccountRepo) Save(ctx context.Context, accounts []*domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.stored = accounts
	return nil
}

func newTestRegistry(t *testing.T, repo *memAccountRepo) *AccountRegistry {
	t.Helper()
	reg, err := NewAccountRegistry(repo, &AccountRegistryConfig{StorageRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("NewAccountRegistry() error = %v", err)
	}
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return reg
}

func TestNewAccountRegistry_Validation(t *testing.T) {
	if _, err := NewAccountRegistry(nil, &AccountRegistryConfig{StorageRoot: t.TempDir()}); err == nil {
		t.Error("nil repository should be rejected")
	}
	if _, err := NewAccountRegistry(&memAccountRepo{}, &AccountRegistryConfig{}); err == nil {
		t.Error("empty storage root should be rejected")
	}
}

func TestAccountRegistry_Register(t *testing.T) {
	repo := &memAccountRepo{}
	reg := newTestRegistry(t, repo)
	ctx := context.Background()

	acct, err := reg.Register(ctx, "alice", "pw1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if acct.SandboxRoot != filepath.Join(reg.StorageRoot(), "alice") {
		t.Errorf("SandboxRoot = %q", acct.SandboxRoot)
	}
	if acct.Permissions != domain.AllPermissions() {
		t.Errorf("Permissions = %v, want all", acct.Permissions.Strings())
	}
	if info, err := os.Stat(acct.SandboxRoot); err != nil || !info.IsDir() {
		t.Errorf("sandbox not created: %v", err)
	}
	if acct.PasswordHash == "pw1" || acct.PasswordHash == "" {
		t.Error("password must be stored as a digest")
	}
	if len(repo.stored) != 1 || repo.stored[0].Username != "alice" {
		t.Errorf("collection not persisted: %+v", repo.stored)
	}

	if _, err := reg.Register(ctx, "alice", "pw2"); !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Errorf("duplicate Register() error = %v, want ErrDuplicateUsername", err)
	}
	// Usernames are case-sensitive.
	if _, err := reg.Register(ctx, "Alice", "pw"); err != nil {
		t.Errorf("Register(Alice) error = %v", err)
	}
	if reg.Count() != 2 || repo.saves != 2 {
		t.Errorf("Count() = %d, saves = %d; want 2, 2", reg.Count(), repo.saves)
	}
}

func TestAccountRegistry_RegisterInvalid(t *testing.T) {
	reg := newTestRegistry(t, &memAccountRepo{})
	ctx := context.Background()

	for _, name := range []string{"", "..", "../evil", "a/b", `a\b`} {
		if _, err := reg.Register(ctx, name, "pw"); !errors.Is(err, domain.ErrInvalidUsername) {
			t.Errorf("Register(%q) error = %v, want ErrInvalidUsername", name, err)
		}
	}
	if _, err := reg.Register(ctx, "bob", ""); !errors.Is(err, domain.ErrInvalidField) {
		t.Errorf("empty password error = %v, want ErrInvalidField", err)
	}

	entries, _ := os.ReadDir(reg.StorageRoot())
	if len(entries) != 0 {
		t.Errorf("rejected registrations must not create sandboxes, found %d", len(entries))
	}
}

func TestAccountRegistry_RegisterConcurrentDuplicate(t *testing.T) {
	repo := &memAccountRepo{}
	reg := newTestRegistry(t, repo)

	const n = 32
	var wins, dups atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := reg.Register(context.Background(), "bob", "pw")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domain.ErrDuplicateUsername):
				dups.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 || dups.Load() != n-1 {
		t.Errorf("wins = %d, duplicates = %d; want 1, %d", wins.Load(), dups.Load(), n-1)
	}
	if len(repo.stored) != 1 {
		t.Errorf("stored %d accounts, want 1", len(repo.stored))
	}
}

func TestAccountRegistry_RegisterConcurrentDistinct(t *testing.T) {
	repo := &memAccountRepo{}
	reg := newTestRegistry(t, repo)

	names := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"}
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if _, err := reg.Register(context.Background(), name, "pw"); err != nil {
				t.Errorf("Register(%s) error = %v", name, err)
			}
		}(name)
	}
	wg.Wait()

	// No lost updates: the last save holds every account.
	if len(repo.stored) != len(names) {
		t.Errorf("stored %d accounts, want %d", len(repo.stored), len(names))
	}
}

func TestAccountRegistry_RegisterSaveFailureRollsBack(t *testing.T) {
	repo := &memAccountRepo{}
	reg := newTestRegistry(t, repo)
	repo.saveErr = errors.New("disk full")

	if _, err := reg.Register(context.Background(), "carol", "pw"); !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("Register() error = %v, want ErrStorageFailure", err)
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d after failed save, want 0", reg.Count())
	}

	repo.saveErr = nil
	if _, err := reg.Register(context.Background(), "carol", "pw"); err != nil {
		t.Errorf("retry after failed save: %v", err)
	}
}

func TestAccountRegistry_Authenticate(t *testing.T) {
	reg := newTestRegistry(t, &memAccountRepo{})
	ctx := context.Background()
	_, _ = reg.Register(ctx, "alice", "pw1")

	if _, err := reg.Authenticate(ctx, "alice", "wrongpw"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	_, unknownErr := reg.Authenticate(ctx, "nobody", "pw1")
	if !errors.Is(unknownErr, domain.ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v, want ErrInvalidCredentials", unknownErr)
	}
	if unknownErr.Error() != domain.ErrInvalidCredentials.Error() {
		t.Error("unknown user and wrong password must be indistinguishable")
	}

	acct, err := reg.Authenticate(ctx, "alice", "pw1")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if acct.Username != "alice" {
		t.Errorf("Username = %q", acct.Username)
	}

	// Returned accounts are copies.
	acct.Permissions = 0
	again, _ := reg.Get("alice")
	if again.Permissions != domain.AllPermissions() {
		t.Error("mutating a returned account must not affect the registry")
	}
}

func TestAccountRegistry_LoadRecomputesSandbox(t *testing.T) {
	repo := &memAccountRepo{stored: []*domain.Account{
		{Username: "alice", PasswordHash: hashSHA256("pw1"), SandboxRoot: `C:\old\place\alice`, Permissions: domain.AllPermissions()},
		{Username: "bob", PasswordHash: hashSHA256("pw2"), Permissions: domain.NewPermissionSet(domain.PermRead)},
		{Username: "../evil", PasswordHash: hashSHA256("x")},
		{Username: "alice", PasswordHash: hashSHA256("dup")},
	}}
	reg := newTestRegistry(t, repo)

	if reg.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", reg.Count())
	}
	alice, _ := reg.Get("alice")
	if alice.SandboxRoot != filepath.Join(reg.StorageRoot(), "alice") {
		t.Errorf("SandboxRoot = %q", alice.SandboxRoot)
	}
	bob, _ := reg.Get("bob")
	if bob.Can(domain.PermWrite) || !bob.Can(domain.PermRead) {
		t.Errorf("bob permissions = %v, want [read]", bob.Permissions.Strings())
	}
	if _, err := reg.Authenticate(context.Background(), "alice", "pw1"); err != nil {
		t.Errorf("loaded account should authenticate: %v", err)
	}

	names := []string{}
	for _, a := range reg.Accounts() {
		names = append(names, a.Username)
	}
	if len(names) != 2 || names[0] != "alice" || names[1] != "bob" {
		t.Errorf("Accounts() order = %v, want [alice bob]", names)
	}
}

func TestAccountRegistry_LoadCorruptIsEmpty(t *testing.T) {
	repo := &memAccountRepo{loadErr: errors.New("unexpected end of JSON input")}
	reg := newTestRegistry(t, repo)
	if reg.Count() != 0 {
		t.Errorf("Count() = %d, want 0", reg.Count())
	}

	repo.loadErr = nil
	if _, err := reg.Register(context.Background(), "alice", "pw"); err != nil {
		t.Errorf("Register() after corrupt load: %v", err)
	}
}

func TestAccountRegistry_Argon2id(t *testing.T) {
	hasher, _ := NewPasswordHasher(SchemeArgon2id)
	reg, err := NewAccountRegistry(&memAccountRepo{}, &AccountRegistryConfig{
		StorageRoot: t.TempDir(),
		Hasher:      hasher,
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_ = reg.Load(ctx)

	acct, err := reg.Register(ctx, "dave", "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if acct.PasswordHash[:len(argon2Prefix)] != argon2Prefix {
		t.Errorf("PasswordHash = %q, want argon2id digest", acct.PasswordHash)
	}
	if _, err := reg.Authenticate(ctx, "dave", "s3cret"); err != nil {
		t.Errorf("Authenticate() error = %v", err)
	}
}
