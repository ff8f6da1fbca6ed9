// ABOUTME: Tests for configuration loading
// ABOUTME: Covers env expansion, duration parsing, defaults, and validation errors

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validConfig = `
matrix:
  homeserver: "https://matrix.example.org"
  user_id: "@loom:example.org"
  access_token: "syt_secret"
database:
  path: "/tmp/loom.db"
agent:
  binary: "/usr/local/bin/agent"
  working_context: "/srv/workspace"
  timeout: "5m"
scheduler:
  interval: "30s"
logging:
  level: "debug"
`

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://matrix.example.org", cfg.Matrix.Homeserver)
	assert.Equal(t, "@loom:example.org", cfg.Matrix.UserID)
	assert.Equal(t, "/usr/local/bin/agent", cfg.Agent.Binary)
	assert.Equal(t, 5*time.Minute, cfg.Agent.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
matrix:
  homeserver: "https://matrix.example.org"
  user_id: "@loom:example.org"
  access_token: "syt_secret"
database:
  path: "/tmp/loom.db"
agent:
  binary: "/usr/local/bin/agent"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Empty(t, cfg.HTTP.Addr, "no http.addr means the HTTP API stays off")
	assert.Equal(t, time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, "whisper-1", cfg.Voice.TranscribeModel)
	assert.Zero(t, cfg.Agent.Timeout, "no timeout configured means no cutoff")
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("LOOM_TEST_TOKEN", "expanded-token")

	path := writeConfig(t, `
matrix:
  homeserver: "https://matrix.example.org"
  user_id: "@loom:example.org"
  access_token: "${LOOM_TEST_TOKEN}"
database:
  path: "/tmp/loom.db"
agent:
  binary: "/usr/local/bin/agent"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-token", cfg.Matrix.AccessToken)
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing homeserver",
			content: "matrix:\n  user_id: \"@x:y\"\n  access_token: \"t\"\n",
			wantErr: "matrix.homeserver",
		},
		{
			name: "missing database path",
			content: `
matrix:
  homeserver: "https://m.example.org"
  user_id: "@x:y"
  access_token: "t"
agent:
  binary: "/bin/agent"
`,
			wantErr: "database.path",
		},
		{
			name: "missing agent binary",
			content: `
matrix:
  homeserver: "https://m.example.org"
  user_id: "@x:y"
  access_token: "t"
database:
  path: "/tmp/x.db"
`,
			wantErr: "agent.binary",
		},
		{
			name: "listener enabled without token",
			content: `
matrix:
  homeserver: "https://m.example.org"
  user_id: "@x:y"
  access_token: "t"
database:
  path: "/tmp/x.db"
agent:
  binary: "/bin/agent"
listener:
  enabled: true
`,
			wantErr: "listener.token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
matrix:
  homeserver: "https://m.example.org"
  user_id: "@x:y"
  access_token: "t"
database:
  path: "/tmp/x.db"
agent:
  binary: "/bin/agent"
  timeout: "not-a-duration"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent.timeout")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/loom.yaml")
	require.Error(t, err)
}
