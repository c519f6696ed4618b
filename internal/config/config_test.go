package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "", cfg.ServerURL)
	assert.Equal(t, "", cfg.UserID)
	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "jamflo.log"), cfg.LogFile)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"server_url: https://sync.example.com/\n"+
			"user_id: u1\n"+
			"data_dir: /tmp/jamflo-test\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://sync.example.com", cfg.ServerURL, "trailing slash is trimmed")
	assert.Equal(t, "u1", cfg.UserID)
	assert.Equal(t, "/tmp/jamflo-test", cfg.DataDir)
	assert.Equal(t, filepath.Join("/tmp/jamflo-test", "jamflo.log"), cfg.LogFile)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user_id: from-file\n"), 0644))

	t.Setenv("JAMFLO_USER_ID", "from-env")
	t.Setenv("JAMFLO_SERVER_URL", "https://env.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.UserID)
	assert.Equal(t, "https://env.example.com", cfg.ServerURL)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{{{"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
