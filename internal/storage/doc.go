// Package storage persists the FileVault account registry.
//
// Two backends implement AccountStore:
//
//   - JSONFileStore: one JSON array in a single file, compatible with legacy
//     registry files (default)
//   - BadgerStore: one key per account in an embedded Badger database
//
// Both replace the whole collection on every Save. Serializing writers is the
// caller's job; service.AccountRegistry holds its write lock across Save.
package storage
