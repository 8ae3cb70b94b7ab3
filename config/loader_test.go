package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoader_Layers(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	nested := filepath.Join(project, "services", "api")
	require.NoError(t, os.MkdirAll(nested, 0755))

	writeFile(t, filepath.Join(home, UserConfigDir, UserConfigFile), `
plans:
  dir: user-plans
metrics:
  addr: ":9100"
`)
	writeFile(t, filepath.Join(project, ProjectConfigFile), `
plans:
  dir: project-plans
`)

	cfg, err := NewLoader(nil, WithHomeDir(home), WithWorkDir(nested)).Load("")
	require.NoError(t, err)

	assert.Equal(t, "project-plans", cfg.Plans.Dir, "project config wins over user config")
	assert.Equal(t, ":9100", cfg.Metrics.Addr, "user config applies where project is silent")
	assert.Equal(t, project, cfg.Project.Root, "root is the project config's directory")
	assert.Equal(t, filepath.Join(project, "project-plans"), cfg.ResolvePath(cfg.Plans.Dir))
}

func TestLoader_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "custom.yaml")
	writeFile(t, explicit, `
project:
  root: /explicit
server:
  transport: nats
`)

	cfg, err := NewLoader(nil, WithHomeDir(t.TempDir()), WithWorkDir(dir)).Load(explicit)
	require.NoError(t, err)
	assert.Equal(t, TransportNATS, cfg.Server.Transport)
	assert.Equal(t, "/explicit", cfg.Project.Root)

	_, err = NewLoader(nil, WithHomeDir(t.TempDir()), WithWorkDir(dir)).Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoader_InvalidResult(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigFile), "plans:\n  backend: s3\n")

	_, err := NewLoader(nil, WithHomeDir(t.TempDir()), WithWorkDir(dir)).Load("")
	assert.Error(t, err)
}

func TestLoader_EnsureUserConfig(t *testing.T) {
	home := t.TempDir()
	loader := NewLoader(nil, WithHomeDir(home))

	require.NoError(t, loader.EnsureUserConfig())
	path := filepath.Join(home, UserConfigDir, UserConfigFile)
	_, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("plans:\n  dir: mine\n"), 0644))
	require.NoError(t, loader.EnsureUserConfig())

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mine", cfg.Plans.Dir, "existing file is left alone")
}
