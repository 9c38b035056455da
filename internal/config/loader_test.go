package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dynaccess.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadMissingFileCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "dynaccess.yml")

	s, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, DefaultMappingPath, s.Mapping)
	require.Equal(t, "npm", s.Container)
	require.Equal(t, 5*time.Second, s.ResolveTimeout.Std())
	require.Equal(t, 3306, s.Database.Port)
	require.Equal(t, time.Minute, s.Interval.Std())

	// A template file must be left behind for the operator.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestLoadFile(t *testing.T) {
	path := writeSettings(t, `
mapping: /var/lib/dynaccess/mapping.json
container: proxy
nameserver: 192.168.1.1:53
resolveTimeout: 3s
database:
  host: db.local
  port: 3307
  name: npm
  user: npm
  password: secret
  timeout: 4s
interval: 90s
`)

	s, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "/var/lib/dynaccess/mapping.json", s.Mapping)
	require.Equal(t, "proxy", s.Container)
	require.Equal(t, "192.168.1.1:53", s.Nameserver)
	require.Equal(t, 3*time.Second, s.ResolveTimeout.Std())
	require.Equal(t, "db.local", s.Database.Host)
	require.Equal(t, 3307, s.Database.Port)
	require.Equal(t, 4*time.Second, s.Database.Timeout.Std())
	require.Equal(t, 90*time.Second, s.Interval.Std())
	require.True(t, s.Database.Complete())
	require.Equal(t, "npm:secret@tcp(db.local:3307)/npm?parseTime=true", s.Database.DSN())
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeSettings(t, "container: proxy\n")

	s, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "proxy", s.Container)
	require.Equal(t, DefaultMappingPath, s.Mapping)
	require.Equal(t, 10*time.Second, s.Database.Timeout.Std())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeSettings(t, "container: proxy\n")

	t.Setenv("DYNACCESS_CONTAINER", "other")
	t.Setenv("DYNACCESS_DB_HOST", "10.0.0.5")
	t.Setenv("DYNACCESS_DB_PORT", "3310")
	t.Setenv("DYNACCESS_INTERVAL", "2m")

	s, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "other", s.Container)
	require.Equal(t, "10.0.0.5", s.Database.Host)
	require.Equal(t, 3310, s.Database.Port)
	require.Equal(t, 2*time.Minute, s.Interval.Std())
}

func TestLoadRejectsMalformedEnvValues(t *testing.T) {
	t.Run("bad port", func(t *testing.T) {
		path := writeSettings(t, "container: proxy\n")
		t.Setenv("DYNACCESS_DB_PORT", "not-a-port")

		_, err := Load(path)
		require.Error(t, err)
		require.Contains(t, err.Error(), "DYNACCESS_DB_PORT")
	})

	t.Run("bad interval", func(t *testing.T) {
		path := writeSettings(t, "container: proxy\n")
		t.Setenv("DYNACCESS_INTERVAL", "soon")

		_, err := Load(path)
		require.Error(t, err)
		require.Contains(t, err.Error(), "DYNACCESS_INTERVAL")
	})
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeSettings(t, "container: [broken\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadInvalidDuration(t *testing.T) {
	path := writeSettings(t, "resolveTimeout: soon\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"defaults valid", func(s *Settings) {}, false},
		{"empty mapping", func(s *Settings) { s.Mapping = "" }, true},
		{"no container no database", func(s *Settings) { s.Container = "" }, true},
		{
			"no container but complete database",
			func(s *Settings) {
				s.Container = ""
				s.Database.Host = "db.local"
				s.Database.Name = "npm"
				s.Database.User = "npm"
			},
			false,
		},
		{"zero resolve timeout", func(s *Settings) { s.ResolveTimeout = 0 }, true},
		{"zero interval", func(s *Settings) { s.Interval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := defaultSettings()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
