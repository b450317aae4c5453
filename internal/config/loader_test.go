package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config, dir string)
	}{
		{
			name: "empty file gets defaults",
			yaml: "{}\n",
			checkFn: func(t *testing.T, cfg *Config, dir string) {
				assert.Equal(t, "feedbackd", cfg.Service.Name)
				assert.Equal(t, "info", cfg.Service.LogLevel)
				assert.Equal(t, ":12345", cfg.Network.Listen)
				assert.Equal(t, 12346, cfg.Network.ReplyPort)
				assert.Equal(t, 65535, cfg.Network.BufferSize)
				assert.Equal(t, "noop", cfg.Feedbacks.Default)
				assert.Equal(t, []string{filepath.Join(dir, "feedbacks")}, cfg.Feedbacks.Dirs)
				assert.True(t, cfg.Journal.Enabled)
				assert.Equal(t, filepath.Join(dir, "data", "journal.db"), cfg.Journal.Path)
				assert.Equal(t, 7*24*time.Hour, cfg.Journal.Retention)
				assert.False(t, cfg.API.Enabled)
			},
		},
		{
			name: "full config",
			yaml: `
service:
  name: lab-a
  log_level: DEBUG
network:
  listen: 127.0.0.1:5000
  reply_port: 5001
  buffer_size: 4096
feedbacks:
  dirs: [/opt/feedbacks, ./more]
  default: thermometer
hooks:
  module: hooks.yaml
journal:
  enabled: false
api:
  enabled: true
  listen: 127.0.0.1:9000
  api_key: ${TEST_FEEDBACKD_KEY}
`,
			env: map[string]string{"TEST_FEEDBACKD_KEY": "s3cret"},
			checkFn: func(t *testing.T, cfg *Config, dir string) {
				assert.Equal(t, "lab-a", cfg.Service.Name)
				assert.Equal(t, "debug", cfg.Service.LogLevel)
				assert.Equal(t, 5001, cfg.Network.ReplyPort)
				assert.Equal(t, 4096, cfg.Network.BufferSize)
				assert.Equal(t, []string{"/opt/feedbacks", filepath.Join(dir, "more")}, cfg.Feedbacks.Dirs)
				assert.Equal(t, filepath.Join(dir, "hooks.yaml"), cfg.Hooks.Module)
				assert.False(t, cfg.Journal.Enabled)
				assert.Equal(t, "s3cret", cfg.API.APIKey)
			},
		},
		{
			name: "builtin hook module is not a path",
			yaml: "hooks:\n  module: log\n",
			checkFn: func(t *testing.T, cfg *Config, _ string) {
				assert.Equal(t, "log", cfg.Hooks.Module)
			},
		},
		{
			name:    "ports must differ",
			yaml:    "network:\n  listen: :7000\n  reply_port: 7000\n",
			wantErr: "must differ",
		},
		{
			name:    "buffer too large",
			yaml:    "network:\n  buffer_size: 70000\n",
			wantErr: "buffer_size",
		},
		{
			name:    "bad listen address",
			yaml:    "network:\n  listen: nowhere\n",
			wantErr: "network.listen",
		},
		{
			name:    "bad log level",
			yaml:    "service:\n  log_level: loud\n",
			wantErr: "log_level",
		},
		{
			name:    "api needs key",
			yaml:    "api:\n  enabled: true\n",
			wantErr: "api_key is required",
		},
		{
			name:    "unset env var",
			yaml:    "api:\n  enabled: true\n  api_key: ${TEST_FEEDBACKD_UNSET}\n",
			wantErr: "TEST_FEEDBACKD_UNSET",
		},
		{
			name:    "invalid yaml",
			yaml:    "service: [\n",
			wantErr: "parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			dir := t.TempDir()
			path := writeConfig(t, dir, tt.yaml)

			cfg, err := Load(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, path, cfg.SourcePath)
			tt.checkFn(t, cfg, dir)
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "service:\n  name: from-dir\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-dir", cfg.Service.Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "{}\n")
	t.Setenv(EnvConfigPath, path)

	got, err := Discover()
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestIsHooksFile(t *testing.T) {
	assert.False(t, IsHooksFile(""))
	assert.False(t, IsHooksFile("log"))
	assert.True(t, IsHooksFile("hooks.yaml"))
	assert.True(t, IsHooksFile("hooks.YML"))
	assert.True(t, IsHooksFile(filepath.Join("etc", "hooks")))
}
