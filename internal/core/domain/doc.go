// Package domain defines the core domain models for FileVault.
//
// Domain models are pure value objects without IO dependencies:
//
//   - Account: registered user with sandbox root and capability set
//   - Permission / PermissionSet: per-account capabilities
//   - Errors: coded domain errors shared by every layer
package domain
