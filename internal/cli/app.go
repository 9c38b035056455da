package cli

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"sync"

	"dynaccess/internal/config"
	"dynaccess/internal/container"
	"dynaccess/internal/database"
	"dynaccess/internal/engine"
	"dynaccess/internal/enrich"
	"dynaccess/internal/mapping"
	"dynaccess/pkg/dynaccess"
)

// app bundles the wired collaborators for one invocation.
type app struct {
	settings *config.Settings
	store    *mapping.Store
	db       *database.Client
	runtime  *container.Runtime
	enricher *enrich.Enricher
	engine   *engine.Engine
}

func (a *app) Close() {
	if a.enricher != nil {
		a.enricher.Close()
	}
}

// loadSettings loads the settings file and applies flag overrides, which
// take precedence over both file and environment values.
func loadSettings() (*config.Settings, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if mappingPath != "" {
		settings.Mapping = mappingPath
	}
	if containerName != "" {
		settings.Container = containerName
	}
	return settings, nil
}

func newMappingStore(settings *config.Settings) *mapping.Store {
	return mapping.NewStore(settings.Mapping)
}

// buildApp wires the engine and its collaborators. Failures here are the
// fatal startup conditions: unreadable settings, no way to reach the
// database.
func buildApp(ctx context.Context) (*app, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	var runtime *container.Runtime
	if settings.Container != "" {
		runtime = container.New(settings.Container)
	}

	dsn, err := resolveDSN(ctx, settings, runtime)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(dsn, settings.Database.Timeout.Std())
	if err != nil {
		return nil, err
	}

	enricher := enrich.New(settings.GeoLiteDir)

	engineCfg := engine.Config{
		Rules:    db,
		Resolver: dynaccess.NewResolver(settings.Nameserver, settings.ResolveTimeout.Std()),
		Mapping:  newMappingStore(settings),
		Enricher: enricher,
	}
	if runtime != nil {
		engineCfg.Runtime = runtime
	}

	return &app{
		settings: settings,
		store:    newMappingStore(settings),
		db:       db,
		runtime:  runtime,
		enricher: enricher,
		engine:   engine.New(engineCfg),
	}, nil
}

// resolveDSN prefers the explicit database section and falls back to
// discovering the connection parameters from the container environment,
// the way the proxy manager itself gets them.
func resolveDSN(ctx context.Context, settings *config.Settings, runtime *container.Runtime) (string, error) {
	if settings.Database.Complete() {
		return settings.Database.DSN(), nil
	}

	if runtime == nil {
		return "", fmt.Errorf("no database connection configured and no container to discover it from")
	}

	exists, err := runtime.Exists(ctx)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("container '%s' does not exist", runtime.Name())
	}

	env, err := runtime.Env(ctx)
	if err != nil {
		return "", err
	}

	return database.DSNFromEnv(env)
}

// contentGuard distinguishes real mapping edits from the engine's own
// end-of-pass rewrite by content hash. Changed runs on the watcher
// goroutine while Reset runs on the pass goroutine, so the state is
// mutex-guarded.
type contentGuard struct {
	path string

	mu   sync.Mutex
	sum  [sha256.Size]byte
	have bool
}

func newContentGuard(path string) *contentGuard {
	g := &contentGuard{path: path}
	g.Reset()
	return g
}

// Reset records the current file content as "ours".
func (g *contentGuard) Reset() {
	data, err := os.ReadFile(g.path)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.have = false
		return
	}
	g.sum = sha256.Sum256(data)
	g.have = true
}

// Changed reports whether the file content differs from the last Reset.
func (g *contentGuard) Changed() bool {
	data, err := os.ReadFile(g.path)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)

	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.have || sum != g.sum
}
