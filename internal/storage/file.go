package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yndnr/filevault-go/internal/core/domain"
)

// registryFilePerm keeps password digests private to the server user.
const registryFilePerm fs.FileMode = 0600

// JSONFileStore keeps the registry as one JSON array in a single file.
//
// Save writes a temp file beside the target and renames it over the old one,
// so a crash mid-save leaves either the old or the new collection, never a
// torn file.
type JSONFileStore struct {
	path string
}

// NewJSONFileStore creates a store backed by the file at path.
func NewJSONFileStore(path string) (*JSONFileStore, error) {
	if path == "" {
		return nil, errors.New("storage: registry path is required")
	}
	return &JSONFileStore{path: path}, nil
}

// Path returns the registry file location.
func (s *JSONFileStore) Path() string {
	return s.path
}

// Load reads the registry file. A missing or blank file yields no accounts.
func (s *JSONFileStore) Load(ctx context.Context) ([]*domain.Account, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: read registry: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []accountRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("storage: decode registry: %w", err)
	}

	accounts := make([]*domain.Account, 0, len(records))
	for _, r := range records {
		accounts = append(accounts, r.toAccount())
	}
	return accounts, nil
}

// Save overwrites the registry file with accounts.
func (s *JSONFileStore) Save(ctx context.Context, accounts []*domain.Account) error {
	records := make([]accountRecord, 0, len(accounts))
	for _, a := range accounts {
		records = append(records, newAccountRecord(a))
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("storage: create registry dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: sync registry: %w", err)
	}
	if err := tmp.Chmod(registryFilePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: chmod registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close registry: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("storage: replace registry: %w", err)
	}
	return nil
}

// Close is a no-op; the file is only open during Load and Save.
func (s *JSONFileStore) Close() error {
	return nil
}
