package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportcli/internal/infrastructure"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestNew(t *testing.T) {
	infrastructure.ResetLoggerForTesting()
	dir := t.TempDir()

	cfgPath := writeConfig(t, `
server:
  port: 9321
  rate_limit:
    enabled: false
paths:
  data_dir: `+filepath.Join(dir, "data")+`
  reports_dir: `+filepath.Join(dir, "reports")+`
  logs_dir: `+filepath.Join(dir, "logs")+`
`)

	app, err := New(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, ":9321", app.Server.Addr)
	assert.Equal(t, app.Config.Server.ReadTimeout.Std(), app.Server.ReadTimeout)
	assert.Equal(t, app.Config.Server.WriteTimeout.Std(), app.Server.WriteTimeout)
	assert.Equal(t, app.Config.Server.IdleTimeout.Std(), app.Server.IdleTimeout)
	assert.NotNil(t, app.Service)
	assert.NotNil(t, app.Scheduler)
	assert.NotNil(t, app.OTelProviders)

	// EnsureDirectories ran during assembly.
	assert.DirExists(t, filepath.Join(dir, "reports"))
}

func TestNew_InvalidConfig(t *testing.T) {
	infrastructure.ResetLoggerForTesting()

	cfgPath := writeConfig(t, "server:\n  port: 99999\n")

	_, err := New(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration")
}

func TestShutdown_BeforeStartIsClean(t *testing.T) {
	infrastructure.ResetLoggerForTesting()
	dir := t.TempDir()

	cfgPath := writeConfig(t, `
paths:
  data_dir: `+filepath.Join(dir, "data")+`
  reports_dir: `+filepath.Join(dir, "reports")+`
  logs_dir: `+filepath.Join(dir, "logs")+`
`)

	app, err := New(cfgPath)
	require.NoError(t, err)

	assert.NoError(t, app.shutdown())
}
