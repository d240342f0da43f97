package config

import "time"

// ServerConfig is the root configuration for filevault-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Storage  StorageSection  `koanf:"storage"`
	Security SecuritySection `koanf:"security"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	TCP   TCPConfig   `koanf:"tcp"`
	HTTP  HTTPConfig  `koanf:"http"`
	Local LocalConfig `koanf:"local"`
}

// TCPConfig configures the file protocol listener.
type TCPConfig struct {
	Addr string `koanf:"addr"`

	// Framing is one of length, legacy, auto.
	Framing string `koanf:"framing"`

	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`

	// MaxConnections caps concurrent connections; 0 means unlimited.
	MaxConnections int `koanf:"max_connections"`

	// MaxFrameBytes caps a single protocol message.
	MaxFrameBytes int `koanf:"max_frame_bytes"`

	// CommandsPerSecond limits each connection; 0 disables the limit.
	CommandsPerSecond float64 `koanf:"commands_per_second"`
}

// HTTPConfig configures the metrics and health endpoint.
type HTTPConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`

	// MetricsToken, when set, is required as a bearer token on /metrics.
	MetricsToken string `koanf:"metrics_token"`
}

// LocalConfig configures the local management socket.
type LocalConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// StorageSection configures the storage root and the account registry.
type StorageSection struct {
	// Root holds one sandbox directory per account.
	Root string `koanf:"root"`

	// RegistryBackend is file or badger.
	RegistryBackend string `koanf:"registry_backend"`

	// RegistryPath is the registry file (file) or directory (badger).
	// Empty selects a backend-specific default.
	RegistryPath string `koanf:"registry_path"`

	// MaxFileBytes caps a single uploaded or downloaded file.
	MaxFileBytes int64 `koanf:"max_file_bytes"`

	Badger BadgerConfig `koanf:"badger"`
}

// BadgerConfig tunes the badger registry backend.
type BadgerConfig struct {
	GCInterval  time.Duration `koanf:"gc_interval"`
	GCThreshold float64       `koanf:"gc_threshold"`
	SyncWrites  bool          `koanf:"sync_writes"`
}

// SecuritySection configures credential handling.
type SecuritySection struct {
	// PasswordScheme is the digest used for new accounts: sha256 or argon2id.
	PasswordScheme string `koanf:"password_scheme"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ResolvedRegistryPath returns RegistryPath or the default for the backend.
func (s *StorageSection) ResolvedRegistryPath() string {
	if s.RegistryPath != "" {
		return s.RegistryPath
	}
	if s.RegistryBackend == BackendBadger {
		return DefaultBadgerRegistryPath
	}
	return DefaultRegistryPath
}
