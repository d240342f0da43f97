// Package config provides CLI configuration for FileVault.
//
// The optional file ~/.filevault/cli.yaml holds defaults for the server
// address, username, output format, framing and admin socket path.
// Command-line flags and FILEVAULT_* environment variables take precedence.
package config
