package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeNothing(t *testing.T) {
	cfg, err := FromFile(filepath.Join(t.TempDir(), "missing.toml"), DefaultClient())
	require.NoError(t, err)
	require.Equal(t, DefaultClient(), cfg)

	cfg, err = FromReader(bytes.NewReader(nil), DefaultClient())
	require.NoError(t, err)
	require.Equal(t, DefaultClient(), cfg)
}

func TestParitalConfig(t *testing.T) {
	cfgString := `
		[API]
		URL = "http://localhost:1984"
		Timeout = "10s"

		[Upload]
		MaxErrors = 5

		[Logging.SubsystemLevels]
		uploader = "debug"
		`
	expected := DefaultClient()
	expected.API.URL = "http://localhost:1984"
	expected.API.Timeout = Duration(10 * time.Second)
	expected.Upload.MaxErrors = 5
	expected.Logging.SubsystemLevels["uploader"] = "debug"

	def := DefaultClient()
	cfg, err := FromReader(strings.NewReader(cfgString), def)
	require.NoError(t, err)
	require.Equal(t, expected, cfg)
	require.Empty(t, def.Logging.SubsystemLevels)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(cfgString), 0644))
	cfg, err = FromFile(path, DefaultClient())
	require.NoError(t, err)
	require.Equal(t, expected, cfg)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARPI_API_URL", "http://127.0.0.1:1984")
	t.Setenv("ARPI_API_TRUSTEDHOSTS", "https://a.example,https://b.example")
	t.Setenv("ARPI_UPLOAD_ERRORDELAY", "2s")
	t.Setenv("ARPI_CACHE_ENABLED", "false")

	cfg, err := FromReader(strings.NewReader(`[API]
URL = "http://ignored:1984"`), DefaultClient())
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:1984", cfg.API.URL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.TrustedHosts)
	require.Equal(t, Duration(2*time.Second), cfg.Upload.ErrorDelay)
	require.False(t, cfg.Cache.Enabled)
}

func TestBadDuration(t *testing.T) {
	_, err := FromReader(strings.NewReader(`[API]
Timeout = "soon"`), DefaultClient())
	require.Error(t, err)
}

func TestConfigCommentDecodes(t *testing.T) {
	b, err := ConfigComment(DefaultClient())
	require.NoError(t, err)
	require.Contains(t, string(b), "#  URL = ")

	cfg, err := FromReader(bytes.NewReader(b), DefaultClient())
	require.NoError(t, err)
	require.Equal(t, DefaultClient(), cfg)
}
