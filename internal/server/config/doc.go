// Package config defines the filevault-server configuration.
//
//   - spec.go: ServerConfig and its sections
//   - default.go: default values
//   - verify.go: validation that needs more than a type check
//   - sanitize.go: masking for logging
//   - load.go: loading from file and environment, flattening for display
//
// Values are loaded by internal/infra/confloader from a YAML file and
// FILEVAULT_* environment variables on top of Default().
package config
