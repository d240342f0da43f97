package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/yndnr/filevault-go/internal/core/service"
	"github.com/yndnr/filevault-go/internal/server/fileserver"
	"github.com/yndnr/filevault-go/internal/telemetry/logger"
)

// frameEnvelope is the room left in a frame for the upload_file JSON around
// the encoded file.
const frameEnvelope = 64 << 10

// Verify validates the configuration and creates the storage root.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage, cfg.Server.TCP.MaxFrameBytes); err != nil {
		return err
	}
	if _, err := service.NewPasswordHasher(service.PasswordScheme(cfg.Security.PasswordScheme)); err != nil {
		return fmt.Errorf("security.password_scheme: %w", err)
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	tcp := &cfg.TCP
	if err := verifyAddr("server.tcp.addr", tcp.Addr); err != nil {
		return err
	}
	if _, err := fileserver.ParseFraming(tcp.Framing); err != nil {
		return fmt.Errorf("server.tcp.framing: %w", err)
	}
	if tcp.ReadTimeout <= 0 || tcp.WriteTimeout <= 0 || tcp.IdleTimeout <= 0 {
		return errors.New("server.tcp timeouts must be positive")
	}
	if tcp.MaxConnections < 0 {
		return errors.New("server.tcp.max_connections must not be negative")
	}
	if tcp.MaxFrameBytes <= 0 || tcp.MaxFrameBytes > fileserver.MaxFrameLimit {
		return fmt.Errorf("server.tcp.max_frame_bytes must be in 1..%d", fileserver.MaxFrameLimit)
	}
	if tcp.CommandsPerSecond < 0 {
		return errors.New("server.tcp.commands_per_second must not be negative")
	}

	if cfg.HTTP.Enabled {
		if err := verifyAddr("server.http.addr", cfg.HTTP.Addr); err != nil {
			return err
		}
		if cfg.HTTP.Addr == tcp.Addr {
			return errors.New("server.http.addr conflicts with server.tcp.addr")
		}
	}
	if cfg.Local.Enabled && cfg.Local.Path == "" {
		return errors.New("server.local.path is required when the local socket is enabled")
	}
	return nil
}

func verifyAddr(key, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", key)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func verifyStorage(cfg *StorageSection, maxFrameBytes int) error {
	if cfg.Root == "" {
		return errors.New("storage.root is required")
	}
	switch cfg.RegistryBackend {
	case BackendFile, BackendBadger:
	default:
		return fmt.Errorf("storage.registry_backend: unknown backend %q", cfg.RegistryBackend)
	}
	if cfg.MaxFileBytes <= 0 {
		return errors.New("storage.max_file_bytes must be positive")
	}
	if encoded := (cfg.MaxFileBytes + 2) / 3 * 4; encoded+frameEnvelope > int64(maxFrameBytes) {
		return fmt.Errorf("storage.max_file_bytes %d does not fit server.tcp.max_frame_bytes %d once base64 encoded",
			cfg.MaxFileBytes, maxFrameBytes)
	}
	if cfg.RegistryBackend == BackendBadger {
		if cfg.Badger.GCThreshold <= 0 || cfg.Badger.GCThreshold >= 1 {
			return errors.New("storage.badger.gc_threshold must be between 0 and 1")
		}
	}

	if err := os.MkdirAll(cfg.Root, 0750); err != nil {
		return errors.New("cannot create storage root: " + err.Error())
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level: unknown level %q", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Format)
	}
	return nil
}
