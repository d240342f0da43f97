// Package domain defines the core domain models for FileVault.
package domain

import (
	"strings"
	"time"
	"unicode"
)

// MaxUsernameLen bounds the username, which doubles as a directory name.
const MaxUsernameLen = 64

// Permission is a single capability an account may hold on its sandbox.
type Permission string

const (
	// PermRead allows downloading files and listing directories.
	PermRead Permission = "read"

	// PermWrite allows uploading files.
	PermWrite Permission = "write"

	// PermDelete allows removing files and directory trees.
	PermDelete Permission = "delete"

	// PermCreate allows creating directories.
	PermCreate Permission = "create"
)

// orderedPermissions fixes the serialization order of a PermissionSet.
var orderedPermissions = []Permission{PermRead, PermWrite, PermDelete, PermCreate}

func (p Permission) bit() PermissionSet {
	switch p {
	case PermRead:
		return 1 << 0
	case PermWrite:
		return 1 << 1
	case PermDelete:
		return 1 << 2
	case PermCreate:
		return 1 << 3
	default:
		return 0
	}
}

// IsValid reports whether p is one of the known capabilities.
func (p Permission) IsValid() bool {
	return p.bit() != 0
}

// PermissionSet is a bitset of capabilities. Each capability toggles independently.
type PermissionSet uint8

// NewPermissionSet builds a set from the given permissions. Unknown values are ignored.
func NewPermissionSet(perms ...Permission) PermissionSet {
	var s PermissionSet
	for _, p := range perms {
		s |= p.bit()
	}
	return s
}

// AllPermissions returns the set granted to newly registered accounts.
func AllPermissions() PermissionSet {
	return NewPermissionSet(orderedPermissions...)
}

// ParsePermissions converts persisted strings into a set, skipping unknown entries.
func ParsePermissions(values []string) PermissionSet {
	perms := make([]Permission, 0, len(values))
	for _, v := range values {
		perms = append(perms, Permission(strings.ToLower(strings.TrimSpace(v))))
	}
	return NewPermissionSet(perms...)
}

// Has reports whether the set contains p.
func (s PermissionSet) Has(p Permission) bool {
	b := p.bit()
	return b != 0 && s&b == b
}

// With returns a copy of the set with p added.
func (s PermissionSet) With(p Permission) PermissionSet {
	return s | p.bit()
}

// Without returns a copy of the set with p removed.
func (s PermissionSet) Without(p Permission) PermissionSet {
	return s &^ p.bit()
}

// List returns the permissions in canonical order.
func (s PermissionSet) List() []Permission {
	out := make([]Permission, 0, len(orderedPermissions))
	for _, p := range orderedPermissions {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// Strings returns the permissions as plain strings in canonical order.
func (s PermissionSet) Strings() []string {
	perms := s.List()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// Account is a registered user.
//
// SandboxRoot is always a direct child of the global storage root, named
// after the username, and never changes once the account exists.
type Account struct {
	Username     string
	PasswordHash string
	SandboxRoot  string
	Permissions  PermissionSet
	CreatedAt    int64 // Unix milliseconds, 0 for accounts loaded from legacy files
}

// NewAccount creates an account holding every capability.
func NewAccount(username, passwordHash, sandboxRoot string) *Account {
	return &Account{
		Username:     username,
		PasswordHash: passwordHash,
		SandboxRoot:  sandboxRoot,
		Permissions:  AllPermissions(),
		CreatedAt:    time.Now().UnixMilli(),
	}
}

// Can reports whether the account holds capability p.
func (a *Account) Can(p Permission) bool {
	return a != nil && a.Permissions.Has(p)
}

// Clone creates a copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// ValidateUsername checks that a username can safely name a sandbox directory.
//
// Names must be non-empty, at most MaxUsernameLen bytes, must not be "." or "..",
// and must not contain path separators, NUL, or control characters.
func ValidateUsername(username string) error {
	if username == "" {
		return ErrInvalidUsername.WithDetails("username is empty")
	}
	if len(username) > MaxUsernameLen {
		return ErrInvalidUsername.WithDetails("username too long")
	}
	if username == "." || username == ".." {
		return ErrInvalidUsername.WithDetails("reserved name")
	}
	if strings.TrimSpace(username) != username {
		return ErrInvalidUsername.WithDetails("leading or trailing whitespace")
	}
	for _, r := range username {
		switch {
		case r == '/' || r == '\\' || r == ':':
			return ErrInvalidUsername.WithDetails("path separator not allowed")
		case r == 0 || unicode.IsControl(r):
			return ErrInvalidUsername.WithDetails("control character not allowed")
		}
	}
	return nil
}
