package config

import (
	"github.com/yndnr/stockgate/internal/core/domain"
	"github.com/yndnr/stockgate/internal/infra/confloader"
)

// Load reads the configuration file and environment over the defaults and
// verifies the result. path and dotEnvPath may be empty.
func Load(path, dotEnvPath string) (*ServerConfig, error) {
	cfg := Default()
	l := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithDotEnvFile(dotEnvPath),
	)
	if err := l.Load(cfg); err != nil {
		return nil, domain.ErrConfiguration.WithCause(err)
	}
	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
