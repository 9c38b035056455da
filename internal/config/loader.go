package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is the default location for the settings file
	DefaultConfigPath = "/etc/dynaccess/dynaccess.yml"
	// DefaultMappingPath is the default location for the domain mapping
	DefaultMappingPath = "/etc/dynaccess/mapping.json"
)

// defaultSettings returns the default configuration
func defaultSettings() *Settings {
	return &Settings{
		Mapping:        DefaultMappingPath,
		Container:      "npm",
		ResolveTimeout: Duration(5 * time.Second),
		Database: DatabaseSettings{
			Port:    3306,
			Timeout: Duration(10 * time.Second),
		},
		Interval: Duration(time.Minute),
	}
}

// Load reads and parses the settings file, then applies environment
// overrides. A missing file is created with defaults so the first cron
// run leaves a template behind for the operator.
func Load(path string) (*Settings, error) {
	// A .env next to the binary or in the working directory may carry the
	// DB credentials; its absence is not an error.
	_ = godotenv.Load()

	settings := defaultSettings()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefaultSettings(path); err != nil {
			return nil, fmt.Errorf("failed to create default settings: %w", err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse settings: %w", err)
		}
	}

	if err := applyEnv(settings); err != nil {
		return nil, err
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return settings, nil
}

// writeDefaultSettings writes a default settings file
func writeDefaultSettings(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := yaml.Marshal(defaultSettings())
	if err != nil {
		return fmt.Errorf("failed to marshal default settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// applyEnv overrides file values from DYNACCESS_* environment variables.
// A malformed value is an error, not a silent fallback; a typo must not
// let the process run with a different port or interval than intended.
func applyEnv(s *Settings) error {
	s.Mapping = envOrDefault("DYNACCESS_MAPPING", s.Mapping)
	s.Container = envOrDefault("DYNACCESS_CONTAINER", s.Container)
	s.Nameserver = envOrDefault("DYNACCESS_NAMESERVER", s.Nameserver)
	s.GeoLiteDir = envOrDefault("DYNACCESS_GEOLITE_DIR", s.GeoLiteDir)

	s.Database.Host = envOrDefault("DYNACCESS_DB_HOST", s.Database.Host)
	s.Database.Name = envOrDefault("DYNACCESS_DB_NAME", s.Database.Name)
	s.Database.User = envOrDefault("DYNACCESS_DB_USER", s.Database.User)
	s.Database.Password = envOrDefault("DYNACCESS_DB_PASSWORD", s.Database.Password)
	if v := os.Getenv("DYNACCESS_DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DYNACCESS_DB_PORT '%s': %w", v, err)
		}
		s.Database.Port = port
	}
	if v := os.Getenv("DYNACCESS_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DYNACCESS_INTERVAL '%s': %w", v, err)
		}
		s.Interval = Duration(d)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
