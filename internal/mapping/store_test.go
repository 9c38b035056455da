package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dynaccess/pkg/dynaccess"
)

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "mapping.json"))

	m, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Empty(t, m)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "mapping.json")
	s := NewStore(path)

	in := dynaccess.Mapping{
		"a.example.com": "1.2.3.4",
		"b.example.com": "5.6.7.8",
	}
	require.NoError(t, s.Save(in))

	out, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, in, out)

	// The temp file must not survive a successful save.
	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestSaveOverwritesWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	s := NewStore(path)

	require.NoError(t, s.Save(dynaccess.Mapping{"a.example.com": "1.2.3.4", "gone.example.com": "9.9.9.9"}))
	require.NoError(t, s.Save(dynaccess.Mapping{"a.example.com": "5.6.7.8"}))

	out, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, dynaccess.Mapping{"a.example.com": "5.6.7.8"}, out)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewStore(path).Load()
	require.Error(t, err)
}

func TestLoadInvalidEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a.example.com": "not-an-ip"}`), 0644))

	_, err := NewStore(path).Load()
	require.Error(t, err)
}

func TestSaveRejectsInvalidMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	err := NewStore(path).Save(dynaccess.Mapping{"a.example.com": "bogus"})
	require.Error(t, err)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}
