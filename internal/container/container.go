package container

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
)

// runner executes one command and returns its combined output.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Runtime reaches into the proxy-manager container through the docker CLI.
// It is the privileged exec channel: environment discovery plus the
// post-change config rewrite and nginx reload. It never talks SQL; that is
// the database client's job.
type Runtime struct {
	name string
	run  runner
}

// New creates a runtime for the named container.
func New(name string) *Runtime {
	return &Runtime{name: name, run: execRunner}
}

// Name returns the container name.
func (r *Runtime) Name() string {
	return r.name
}

// Exists reports whether a container with this name is known to docker,
// running or not.
func (r *Runtime) Exists(ctx context.Context) (bool, error) {
	out, err := r.run(ctx, "docker", "ps", "-a", "--format", "{{.Names}}")
	if err != nil {
		return false, fmt.Errorf("failed to query docker containers: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == r.name {
			return true, nil
		}
	}
	return false, nil
}

// Env reads the environment variables from inside the container.
func (r *Runtime) Env(ctx context.Context) (map[string]string, error) {
	out, err := r.run(ctx, "docker", "exec", r.name, "env")
	if err != nil {
		return nil, fmt.Errorf("failed to read environment from container '%s': %w", r.name, err)
	}

	env := make(map[string]string)
	for _, line := range strings.Split(string(out), "\n") {
		if key, value, ok := strings.Cut(line, "="); ok {
			env[key] = value
		}
	}
	return env, nil
}

// ReplaceAddress rewrites oldIP to newIP inside the generated proxy-host
// config files. Both values must be valid IPs; they are interpolated into
// a shell command inside the container.
func (r *Runtime) ReplaceAddress(ctx context.Context, oldIP, newIP string) error {
	if net.ParseIP(oldIP) == nil {
		return fmt.Errorf("invalid old IP '%s'", oldIP)
	}
	if net.ParseIP(newIP) == nil {
		return fmt.Errorf("invalid new IP '%s'", newIP)
	}

	script := fmt.Sprintf("sed -i 's/%s/%s/g' /data/nginx/proxy_host/*", oldIP, newIP)
	out, err := r.run(ctx, "docker", "exec", r.name, "sh", "-c", script)
	if err != nil {
		return fmt.Errorf("failed to rewrite address in container: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ReloadNginx reloads nginx inside the container so rewritten configs
// take effect.
func (r *Runtime) ReloadNginx(ctx context.Context) error {
	out, err := r.run(ctx, "docker", "exec", r.name, "nginx", "-s", "reload")
	if err != nil {
		return fmt.Errorf("failed to reload nginx: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}
