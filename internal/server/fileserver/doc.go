// Package fileserver serves the FileVault TCP protocol.
//
// Each accepted connection runs its own goroutine holding a Session. Messages
// are JSON objects with a "command" field, framed by a Framer:
//
//   - length: 4-byte big-endian size followed by the JSON payload
//   - legacy: bare JSON objects, split by parsing
//   - auto:   legacy when the first byte is '{', length otherwise
//
// Supported commands:
//   - register, login, logout, ping
//   - create_directory, upload_file, download_file, delete, list_directory
//
// Request failures become error responses and never close the connection.
// Only transport failures, oversize frames and handler panics do.
package fileserver
