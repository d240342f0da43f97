package config

import (
	serverconfig "github.com/yndnr/filevault-go/internal/server/config"
)

// CLIConfig is the configuration for filevault-cli.
//
// Passwords are never stored; use --password or FILEVAULT_PASSWORD.
type CLIConfig struct {
	Server        string `yaml:"server" json:"server"`
	User          string `yaml:"user" json:"user"`
	Output        string `yaml:"output" json:"output"` // table, json, yaml
	LegacyFraming bool   `yaml:"legacy_framing" json:"legacy_framing"`
	Socket        string `yaml:"socket" json:"socket"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server: serverconfig.DefaultTCPAddr,
		Output: "table",
		Socket: serverconfig.DefaultLocalSocket,
	}
}
