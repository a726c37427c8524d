package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func load(t *testing.T, configFile string) (*Config, error) {
	t.Helper()
	l := NewLoader(configFile)
	l.SetEnvFile("")
	return l.Load()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, "nmap", cfg.Nmap.Binary)
	assert.Equal(t, 120*time.Second, cfg.Nmap.DefaultTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Nmap.MaxTimeout)
	assert.Equal(t, 1<<20, cfg.Nmap.MaxOutputBytes)
	assert.Equal(t, 2*time.Second, cfg.Nmap.KillGrace)
	assert.Equal(t, TransportStdio, cfg.Server.Transport)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, 5.0, cfg.Server.RateLimit)
	assert.Equal(t, 10, cfg.Server.Burst)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "stderr", cfg.Log.Output)
}

func TestLoad_FileThenEnvOverrides(t *testing.T) {
	path := writeFile(t, "nmaptools.yaml", `
nmap:
  binary: /usr/bin/nmap
  default_timeout: 90s
  timeouts:
    nmap_os_detection: 45s
  env_passthrough: [TZ]
server:
  transport: http
  port: 9000
log:
  format: json
`)
	t.Setenv("NMAPTOOLS_SERVER_PORT", "9100")
	t.Setenv("NMAPTOOLS_NMAP_KILL_GRACE", "500ms")

	cfg, err := load(t, path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/nmap", cfg.Nmap.Binary)
	assert.Equal(t, 90*time.Second, cfg.Nmap.DefaultTimeout)
	assert.Equal(t, map[string]time.Duration{"nmap_os_detection": 45 * time.Second}, cfg.Nmap.Timeouts)
	assert.Equal(t, []string{"TZ"}, cfg.Nmap.EnvPassthrough)
	assert.Equal(t, TransportHTTP, cfg.Server.Transport)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Nmap.KillGrace)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvFileDoesNotOverrideEnvironment(t *testing.T) {
	envFile := writeFile(t, ".env", "NMAPTOOLS_NMAP_BINARY=/opt/nmap/bin/nmap\nNMAPTOOLS_LOG_LEVEL=debug\n")
	t.Setenv("NMAPTOOLS_LOG_LEVEL", "warn")
	t.Cleanup(func() { _ = os.Unsetenv("NMAPTOOLS_NMAP_BINARY") })

	l := NewLoader("")
	l.SetEnvFile(envFile)
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "/opt/nmap/bin/nmap", cfg.Nmap.Binary)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := load(t, filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]string{
		"ceiling below default": "nmap:\n  default_timeout: 10m\n  max_timeout: 1m\n",
		"empty binary":          "nmap:\n  binary: \"\"\n",
		"bad transport":         "server:\n  transport: grpc\n",
		"bad port":              "server:\n  port: 70000\n",
		"zero burst":            "server:\n  burst: 0\n",
		"bad level":             "log:\n  level: chatty\n",
		"file without path":     "log:\n  output: file\n  file_path: \"\"\n",
		"negative op timeout":   "nmap:\n  timeouts:\n    nmap_ping_scan: -1s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load(t, writeFile(t, "c.yaml", body))
			require.Error(t, err)
		})
	}
}
