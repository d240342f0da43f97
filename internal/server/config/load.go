package config

import (
	"github.com/yndnr/filevault-go/internal/infra/confloader"
)

// Load reads the configuration file at path (optional) and FILEVAULT_*
// environment variables over the defaults. The result is not verified.
func Load(path string) (*ServerConfig, error) {
	cfg := Default()
	loader := confloader.NewLoader(confloader.WithConfigFile(path))
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Flatten returns the sanitized configuration as dotted keys.
func Flatten(cfg *ServerConfig) map[string]any {
	return confloader.StructValues(Sanitize(cfg))
}
