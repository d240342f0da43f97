// Package service provides domain services for FileVault.
//
// This package contains:
//
//   - AccountRegistry: the account collection, registration and credential checks
//   - ResolvePath: sandbox containment for account-relative paths
//   - FileService: directory and file operations inside a sandbox
//   - PasswordHasher: sha256 and argon2id password digests
//
// Services are safe for concurrent use. Filesystem and persistence failures
// are reported as domain errors, never as raw I/O errors.
package service
