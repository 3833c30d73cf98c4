// Package config loads the CLI/bootstrap configuration from a YAML file
// and the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	Config struct {
		Server Server `yaml:"server"`
		Local  Local  `yaml:"local"`
		Log    Log    `yaml:"logger"`
	}

	Server struct {
		URL      string        `yaml:"url"      env:"DAV_SERVER_URL"`
		Username string        `yaml:"username" env:"DAV_USERNAME"`
		Password string        `yaml:"password" env:"DAV_PASSWORD"`
		Timeout  time.Duration `yaml:"timeout"  env:"DAV_TIMEOUT"  env-default:"30s"`
	}

	Local struct {
		// StateDir holds the snapshot cache, the pending-operation log
		// and the credential vault.
		StateDir string `yaml:"state_dir" env:"DAV_STATE_DIR" env-default:".davsync"`
	}

	Log struct {
		Level string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	}
)

// Load reads the config file when path is non-empty, then overlays the
// environment. With an empty path the environment alone is used.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			helpText := "davsync - CalDAV/CardDAV sync client"
			help, _ := cleanenv.GetDescription(cfg, &helpText)
			fmt.Fprintln(os.Stderr, help)
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, nil
}
