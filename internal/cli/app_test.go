package cli

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentGuard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a.example.com": "1.2.3.4"}`), 0644))

	g := newContentGuard(path)
	require.False(t, g.Changed(), "untouched file must not read as changed")

	require.NoError(t, os.WriteFile(path, []byte(`{"a.example.com": "5.6.7.8"}`), 0644))
	require.True(t, g.Changed(), "edited file must read as changed")

	// After Reset the current content counts as ours again.
	g.Reset()
	require.False(t, g.Changed())
}

func TestContentGuardMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")

	g := newContentGuard(path)
	require.False(t, g.Changed(), "missing file reads as unchanged")

	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
	require.True(t, g.Changed(), "file appearing counts as a change")
}

func TestContentGuardConcurrentAccess(t *testing.T) {
	// Changed runs on the watcher goroutine while Reset runs on the pass
	// goroutine; this hammers both so the race detector can see them.
	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	g := newContentGuard(path)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			g.Changed()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			g.Reset()
		}
	}()
	wg.Wait()

	require.False(t, g.Changed())
}
