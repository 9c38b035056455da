package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the process configuration. It is built once per invocation
// and immutable afterwards; the engine receives it at construction.
type Settings struct {
	// Mapping is the path of the domain->IP JSON file.
	Mapping string `yaml:"mapping"`
	// Container is the proxy-manager container name. May be empty when the
	// database connection is fully specified below.
	Container string `yaml:"container"`
	// Nameserver is "host:port" of the DNS server to query; empty means
	// the system resolver configuration.
	Nameserver     string   `yaml:"nameserver"`
	ResolveTimeout Duration `yaml:"resolveTimeout"`

	Database DatabaseSettings `yaml:"database"`

	// GeoLiteDir optionally points at a directory holding GeoLite2 mmdb
	// files used to annotate change logs.
	GeoLiteDir string `yaml:"geoliteDir"`

	// Interval is the tick period of daemon mode.
	Interval Duration `yaml:"interval"`
}

// DatabaseSettings describes the direct database connection. When any of
// the required fields is empty the connection parameters are discovered
// from the container environment instead.
type DatabaseSettings struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Name     string   `yaml:"name"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	Timeout  Duration `yaml:"timeout"`
}

// Complete reports whether the connection can be built without consulting
// the container environment.
func (d DatabaseSettings) Complete() bool {
	return d.Host != "" && d.Port != 0 && d.Name != "" && d.User != ""
}

// DSN returns the MySQL connection string.
func (d DatabaseSettings) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", d.User, d.Password, d.Host, d.Port, d.Name)
}

// Validate checks the settings for values the engine cannot work with.
func (s *Settings) Validate() error {
	if s.Mapping == "" {
		return fmt.Errorf("mapping path is empty")
	}
	if s.Container == "" && !s.Database.Complete() {
		return fmt.Errorf("either container or a complete database section is required")
	}
	if s.ResolveTimeout <= 0 {
		return fmt.Errorf("resolveTimeout must be positive")
	}
	if s.Database.Timeout <= 0 {
		return fmt.Errorf("database.timeout must be positive")
	}
	if s.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	return nil
}

// Duration is a time.Duration that round-trips through YAML as a string
// like "30s" or "5m".
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration '%s': %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}
