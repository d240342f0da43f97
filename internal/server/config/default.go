package config

import (
	"time"

	"github.com/yndnr/filevault-go/internal/storage"
)

// Registry backends.
const (
	BackendFile   = storage.BackendFile
	BackendBadger = storage.BackendBadger
)

// Default configuration values.
const (
	DefaultTCPAddr        = "127.0.0.1:8888"
	DefaultFraming        = "auto"
	DefaultTimeout        = 5 * time.Minute
	DefaultMaxFrameBytes  = 200 << 20
	DefaultHTTPAddr       = "127.0.0.1:9880"
	DefaultLocalSocket    = "/var/run/filevault-server/filevault-server.sock"
	DefaultStorageRoot    = "storage"
	DefaultRegistryPath   = "users.json"
	DefaultMaxFileBytes   = 100 << 20
	DefaultPasswordScheme = "sha256"

	DefaultBadgerRegistryPath = "registry.db"
	DefaultBadgerGCInterval   = 10 * time.Minute
	DefaultBadgerGCThreshold  = 0.5

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			TCP: TCPConfig{
				Addr:          DefaultTCPAddr,
				Framing:       DefaultFraming,
				ReadTimeout:   DefaultTimeout,
				WriteTimeout:  DefaultTimeout,
				IdleTimeout:   DefaultTimeout,
				MaxFrameBytes: DefaultMaxFrameBytes,
			},
			HTTP: HTTPConfig{
				Enabled: true,
				Addr:    DefaultHTTPAddr,
			},
			Local: LocalConfig{
				Path: DefaultLocalSocket,
			},
		},
		Storage: StorageSection{
			Root:            DefaultStorageRoot,
			RegistryBackend: BackendFile,
			MaxFileBytes:    DefaultMaxFileBytes,
			Badger: BadgerConfig{
				GCInterval:  DefaultBadgerGCInterval,
				GCThreshold: DefaultBadgerGCThreshold,
				SyncWrites:  true,
			},
		},
		Security: SecuritySection{
			PasswordScheme: DefaultPasswordScheme,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
