package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/yndnr/filevault-go/internal/core/domain"
)

// AccountRepository persists the whole account collection.
//
// Save always receives the full collection in registration order and must
// replace what was stored before. Load on an empty store returns no accounts
// and no error.
type AccountRepository interface {
	Load(ctx context.Context) ([]*domain.Account, error)
	Save(ctx context.Context, accounts []*domain.Account) error
}

// AccountRegistryConfig holds configuration for AccountRegistry.
type AccountRegistryConfig struct {
	// StorageRoot is the directory holding one sandbox per account.
	StorageRoot string

	// Hasher computes digests for new accounts (default: sha256).
	Hasher *PasswordHasher

	Logger *slog.Logger
}

// AccountRegistry owns the account collection and its durable copy.
//
// All mutations hold the write lock from validation until the collection has
// been saved, so concurrent registrations never lose updates and a username
// can be claimed only once.
type AccountRegistry struct {
	repo        AccountRepository
	storageRoot string
	hasher      *PasswordHasher
	logger      *slog.Logger

	mu       sync.RWMutex
	accounts map[string]*domain.Account
	order    []string

	// dummyDigest is verified against for unknown usernames.
	dummyDigest string
}

// NewAccountRegistry creates an empty registry. Call Load to populate it.
func NewAccountRegistry(repo AccountRepository, cfg *AccountRegistryConfig) (*AccountRegistry, error) {
	if repo == nil {
		return nil, errors.New("account repository is required")
	}
	if cfg == nil || cfg.StorageRoot == "" {
		return nil, errors.New("storage root is required")
	}
	root, err := filepath.Abs(cfg.StorageRoot)
	if err != nil {
		return nil, err
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher, _ = NewPasswordHasher(SchemeSHA256)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dummy, err := hasher.Hash("filevault-unknown-user")
	if err != nil {
		return nil, err
	}

	return &AccountRegistry{
		repo:        repo,
		storageRoot: filepath.Clean(root),
		hasher:      hasher,
		logger:      logger,
		accounts:    make(map[string]*domain.Account),
		dummyDigest: dummy,
	}, nil
}

// StorageRoot returns the absolute storage root.
func (r *AccountRegistry) StorageRoot() string {
	return r.storageRoot
}

// Load replaces the in-memory collection with the stored one.
//
// An unreadable or corrupt store is logged and yields an empty registry.
// Entries with invalid or duplicate usernames are skipped. Sandbox roots are
// recomputed from the storage root.
func (r *AccountRegistry) Load(ctx context.Context) error {
	if err := os.MkdirAll(r.storageRoot, DirPerm); err != nil {
		return domain.ErrStorageFailure.WithCause(err)
	}

	loaded, err := r.repo.Load(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "account registry unreadable, starting empty", "error", err)
		loaded = nil
	}

	accounts := make(map[string]*domain.Account, len(loaded))
	order := make([]string, 0, len(loaded))
	for _, a := range loaded {
		if a == nil {
			continue
		}
		if err := domain.ValidateUsername(a.Username); err != nil {
			r.logger.WarnContext(ctx, "skipping account with invalid username", "user", a.Username)
			continue
		}
		if _, dup := accounts[a.Username]; dup {
			r.logger.WarnContext(ctx, "skipping duplicate account", "user", a.Username)
			continue
		}
		acct := a.Clone()
		acct.SandboxRoot = r.sandboxFor(acct.Username)
		accounts[acct.Username] = acct
		order = append(order, acct.Username)
	}

	r.mu.Lock()
	r.accounts = accounts
	r.order = order
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "account registry loaded", "accounts", len(order))
	return nil
}

// Register creates a new account with every capability, creates its sandbox
// and persists the collection. A taken username yields ErrDuplicateUsername.
func (r *AccountRegistry) Register(ctx context.Context, username, password string) (*domain.Account, error) {
	if err := domain.ValidateUsername(username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, domain.ErrInvalidField.WithDetails("password is empty")
	}

	digest, err := r.hasher.Hash(password)
	if err != nil {
		return nil, domain.ErrInternal.WithCause(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[username]; exists {
		return nil, domain.ErrDuplicateUsername
	}

	acct := domain.NewAccount(username, digest, r.sandboxFor(username))
	if err := os.MkdirAll(acct.SandboxRoot, DirPerm); err != nil {
		return nil, domain.ErrStorageFailure.WithCause(err)
	}

	r.accounts[username] = acct
	r.order = append(r.order, username)

	if err := r.repo.Save(ctx, r.snapshotLocked()); err != nil {
		delete(r.accounts, username)
		r.order = r.order[:len(r.order)-1]
		return nil, domain.ErrStorageFailure.WithCause(err)
	}

	return acct.Clone(), nil
}

// Authenticate returns the account when the password matches.
//
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials,
// and both cost one digest verification.
func (r *AccountRegistry) Authenticate(ctx context.Context, username, password string) (*domain.Account, error) {
	r.mu.RLock()
	acct, ok := r.accounts[username]
	r.mu.RUnlock()

	if !ok {
		VerifyPassword(password, r.dummyDigest)
		return nil, domain.ErrInvalidCredentials
	}
	if !VerifyPassword(password, acct.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return acct.Clone(), nil
}

// Get returns a copy of the named account.
func (r *AccountRegistry) Get(username string) (*domain.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.accounts[username]
	if !ok {
		return nil, false
	}
	return acct.Clone(), true
}

// Count returns the number of registered accounts.
func (r *AccountRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Accounts returns copies of all accounts in registration order.
func (r *AccountRegistry) Accounts() []*domain.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *AccountRegistry) snapshotLocked() []*domain.Account {
	out := make([]*domain.Account, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.accounts[name].Clone())
	}
	return out
}

func (r *AccountRegistry) sandboxFor(username string) string {
	return filepath.Join(r.storageRoot, username)
}
