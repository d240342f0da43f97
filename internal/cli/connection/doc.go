// Package connection provides the client side of the FileVault protocols.
//
//   - client.go: file protocol client over TCP
//   - manager.go: lazy dial and login for the CLI
//   - socket.go: local admin socket client
//
// Server error responses are returned as *domain.DomainError values that
// carry the server's error code, so callers can match them with errors.Is
// against the domain sentinels:
//
//	if errors.Is(err, domain.ErrNotFound) { ... }
package connection
