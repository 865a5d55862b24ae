package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.True(t, cfg.Database.AutoMigrate)
	require.Equal(t, "https://api.apify.com", cfg.Apify.BaseURL)
	require.Equal(t, 5*time.Second, cfg.Apify.PollInterval)
	require.Equal(t, 10*time.Minute, cfg.Apify.RunTimeout)
	require.Equal(t, 60*time.Second, cfg.Apify.RequestTimeout)
	require.Equal(t, 2, cfg.Apify.MaxRetries)
	require.Equal(t, time.Second, cfg.Apify.RetryWait)
	require.Equal(t, 50, cfg.Scrape.MaxProfilesPerPost)
	require.Equal(t, time.Duration(0), cfg.Scrape.RefreshAfter)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9999
apify:
  poll_interval: 250ms
  run_timeout: 30s
scrape:
  max_profiles_per_post: 10
database:
  driver: sqlite
  path: ./test.db
`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, 250*time.Millisecond, cfg.Apify.PollInterval)
	require.Equal(t, 30*time.Second, cfg.Apify.RunTimeout)
	require.Equal(t, 10, cfg.Scrape.MaxProfilesPerPost)
	require.Equal(t, "./test.db", cfg.Database.Path)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	bad := *cfg
	bad.Apify.CommentsActor = ""
	require.Error(t, bad.Validate())

	bad = *cfg
	bad.Database.Driver = "postgres"
	bad.Database.URL = ""
	require.Error(t, bad.Validate())

	bad = *cfg
	bad.Storage.Endpoint = "minio.internal:9000"
	bad.Storage.AccessKey = ""
	require.Error(t, bad.Validate())
}
