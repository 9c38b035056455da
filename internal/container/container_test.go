package container

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

// fakeRunner records invocations and plays back canned output.
func fakeRunner(out string, err error, calls *[]call) runner {
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, call{name: name, args: args})
		return []byte(out), err
	}
}

func TestExists(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   bool
	}{
		{"listed", "npm\nother\n", true},
		{"listed with whitespace", "  npm  \n", true},
		{"not listed", "other\nthird\n", false},
		{"empty output", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []call
			rt := &Runtime{name: "npm", run: fakeRunner(tt.output, nil, &calls)}

			got, err := rt.Exists(context.Background())
			require.NoError(t, err)
			require.Equal(t, tt.want, got)

			require.Len(t, calls, 1)
			require.Equal(t, "docker", calls[0].name)
			require.Equal(t, []string{"ps", "-a", "--format", "{{.Names}}"}, calls[0].args)
		})
	}
}

func TestExistsDockerFailure(t *testing.T) {
	var calls []call
	rt := &Runtime{name: "npm", run: fakeRunner("permission denied", errors.New("exit status 1"), &calls)}

	_, err := rt.Exists(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "permission denied")
}

func TestEnv(t *testing.T) {
	output := strings.Join([]string{
		"PATH=/usr/bin",
		"DB_MYSQL_HOST=db",
		"DB_MYSQL_PASSWORD=se=cret",
		"NOVALUE",
		"",
	}, "\n")

	var calls []call
	rt := &Runtime{name: "npm", run: fakeRunner(output, nil, &calls)}

	env, err := rt.Env(context.Background())
	require.NoError(t, err)

	require.Equal(t, "db", env["DB_MYSQL_HOST"])
	// Only the first '=' separates key from value.
	require.Equal(t, "se=cret", env["DB_MYSQL_PASSWORD"])
	require.NotContains(t, env, "NOVALUE")

	require.Equal(t, []string{"exec", "npm", "env"}, calls[0].args)
}

func TestReplaceAddress(t *testing.T) {
	var calls []call
	rt := &Runtime{name: "npm", run: fakeRunner("", nil, &calls)}

	require.NoError(t, rt.ReplaceAddress(context.Background(), "1.2.3.4", "5.6.7.8"))

	require.Len(t, calls, 1)
	require.Equal(t, []string{
		"exec", "npm", "sh", "-c",
		"sed -i 's/1.2.3.4/5.6.7.8/g' /data/nginx/proxy_host/*",
	}, calls[0].args)
}

func TestReplaceAddressRejectsInvalidIPs(t *testing.T) {
	var calls []call
	rt := &Runtime{name: "npm", run: fakeRunner("", nil, &calls)}
	ctx := context.Background()

	require.Error(t, rt.ReplaceAddress(ctx, "not-an-ip", "5.6.7.8"))
	require.Error(t, rt.ReplaceAddress(ctx, "1.2.3.4", "$(reboot)"))
	// Nothing may reach the shell when validation fails.
	require.Empty(t, calls)
}

func TestReloadNginx(t *testing.T) {
	var calls []call
	rt := &Runtime{name: "npm", run: fakeRunner("", nil, &calls)}

	require.NoError(t, rt.ReloadNginx(context.Background()))
	require.Equal(t, []string{"exec", "npm", "nginx", "-s", "reload"}, calls[0].args)
}

func TestReloadNginxFailureIncludesOutput(t *testing.T) {
	var calls []call
	rt := &Runtime{name: "npm", run: fakeRunner("nginx: [error] invalid PID", errors.New("exit status 1"), &calls)}

	err := rt.ReloadNginx(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid PID")
}
