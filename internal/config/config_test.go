package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDuration_RoundTrip(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("-5s")), "negative durations are rejected")
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestSecret_NeverLeaks(t *testing.T) {
	s := Secret("hunter2")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "hunter2", s.Value())
	assert.True(t, s.IsSet())

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hunter2")

	assert.False(t, Secret("").IsSet())
	assert.Equal(t, "", Secret("").String())
}

func TestValidate_RequiresBaseURL(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.ErrorContains(t, cfg.Validate(), "ils.base_url")

	cfg.ILS.BaseURL = "not a url"
	assert.ErrorContains(t, cfg.Validate(), "absolute URL")

	cfg.ILS.BaseURL = "https://ils.example.org/osrf-gateway-v1"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
ils:
  base_url: "https://ils.example.org/gateway"
  call_timeout: "45s"
logging:
  level: "debug"
`), 0o600))

	t.Setenv("CIRCD_SERVER_ADDR", ":9100")
	t.Setenv("CIRCD_CACHE_MAX_ENTRIES", "16")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Addr, "env overrides file")
	assert.Equal(t, "https://ils.example.org/gateway", cfg.ILS.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.ILS.CallTimeout.Duration())
	assert.Equal(t, 16, cfg.Cache.MaxEntries)
	assert.Equal(t, zapcore.DebugLevel, cfg.Logging.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, 1024, cfg.Audit.BufferSize)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("CIRCD_ILS_BASE_URL", "https://ils.example.org/gateway")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8642", cfg.Server.Addr)
	assert.Equal(t, "https://ils.example.org/gateway", cfg.ILS.BaseURL)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	t.Setenv("CIRCD_ILS_BASE_URL", "https://ils.example.org/gateway")
	t.Setenv("CIRCD_AUDIT_BUFFER_SIZE", "0")

	_, err := Load("")
	assert.ErrorContains(t, err, "audit.buffer_size")
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "server.addr", envTransform("CIRCD_SERVER_ADDR"))
	assert.Equal(t, "ils.base_url", envTransform("CIRCD_ILS_BASE_URL"))
	assert.Equal(t, "cache.max_entries", envTransform("CIRCD_CACHE_MAX_ENTRIES"))
	assert.Equal(t, "server", envTransform("CIRCD_SERVER"))
}
