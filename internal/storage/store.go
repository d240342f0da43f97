package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yndnr/filevault-go/internal/core/domain"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// AccountStore is the durable copy of the account collection.
// It satisfies service.AccountRepository.
type AccountStore interface {
	// Load returns every stored account in registration order.
	// An empty or missing store yields no accounts and no error.
	Load(ctx context.Context) ([]*domain.Account, error)

	// Save replaces the stored collection with accounts.
	Save(ctx context.Context, accounts []*domain.Account) error

	// Close releases the store.
	Close() error
}

// Config selects and configures an AccountStore.
type Config struct {
	// Backend is "file" (default) or "badger".
	Backend string

	// Path is the registry JSON file, or the Badger directory.
	Path string

	Badger BadgerConfig
}

// Open creates the AccountStore named by cfg.Backend.
func Open(cfg Config, logger *slog.Logger) (AccountStore, error) {
	switch cfg.Backend {
	case "", BackendFile:
		return NewJSONFileStore(cfg.Path)
	case BackendBadger:
		return NewBadgerStore(cfg.Path, cfg.Badger, logger)
	default:
		return nil, fmt.Errorf("storage: unknown registry backend %q", cfg.Backend)
	}
}

// accountRecord is the persisted form of an account.
//
// Field names match the legacy registry file. UserDirectory is informational:
// sandbox roots are recomputed from the storage root on load. A missing
// Permissions list means every capability.
type accountRecord struct {
	Username      string   `json:"Username"`
	PasswordHash  string   `json:"PasswordHash"`
	UserDirectory string   `json:"UserDirectory"`
	Permissions   []string `json:"Permissions"`
	CreatedAt     int64    `json:"CreatedAt,omitempty"`
}

func newAccountRecord(a *domain.Account) accountRecord {
	return accountRecord{
		Username:      a.Username,
		PasswordHash:  a.PasswordHash,
		UserDirectory: a.SandboxRoot,
		Permissions:   a.Permissions.Strings(),
		CreatedAt:     a.CreatedAt,
	}
}

func (r accountRecord) toAccount() *domain.Account {
	perms := domain.AllPermissions()
	if r.Permissions != nil {
		perms = domain.ParsePermissions(r.Permissions)
	}
	return &domain.Account{
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		SandboxRoot:  r.UserDirectory,
		Permissions:  perms,
		CreatedAt:    r.CreatedAt,
	}
}
