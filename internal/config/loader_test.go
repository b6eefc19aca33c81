package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets map[string]string

func (f fakeSecrets) GetKV(_ context.Context, path, key string, _ time.Duration) (string, error) {
	v, ok := f[path+"#"+key]
	if !ok {
		return "", errors.New("secret not found")
	}
	return v, nil
}

func writeRoot(t *testing.T, yaml string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "conf"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "conf", "global.yaml"), []byte(yaml), 0o644))
	return root
}

const baseYAML = `
http:
  listen_addr: ":8080"
dashboard:
  widgets:
    - id: clock
      position: {top: "10%", left: "50%"}
      z_index: 3
      config:
        format: "24h"
    - id: uptime
  shared:
    theme: dark
registry:
  mode: manifest
watch:
  enabled: true
  debounce: 500ms
`

func TestLoadFrom_YAMLAndDefaults(t *testing.T) {
	root := writeRoot(t, baseYAML)

	cfg, err := LoadFrom(context.Background(), root, nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.ListenAddr)
	assert.Equal(t, root, cfg.Paths.Root)
	assert.Equal(t, filepath.Join(root, "web"), cfg.Assets.Dir)
	assert.Equal(t, 250*time.Millisecond, cfg.Dashboard.ResizeDebounce)
	assert.Equal(t, "dashboard", cfg.Dashboard.RootID)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, "dark", cfg.Dashboard.Shared["theme"])
	assert.Equal(t, filepath.Join(root, "data", "state.json"), cfg.State.File)
	assert.Equal(t, "dashboard", cfg.State.Name)
	assert.Empty(t, cfg.State.Store)

	require.Len(t, cfg.Dashboard.Widgets, 2)
	clock := cfg.Dashboard.Widgets[0]
	assert.Equal(t, "clock", clock.ID)
	require.NotNil(t, clock.Position)
	assert.Equal(t, "50%", clock.Position.Left)
	require.NotNil(t, clock.ZIndex)
	assert.Equal(t, 3, *clock.ZIndex)
	assert.Equal(t, "24h", clock.Config["format"])
	assert.Nil(t, cfg.Dashboard.Widgets[1].Position)

	assert.Same(t, cfg, Get())
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	root := writeRoot(t, baseYAML)
	t.Setenv("MAXLINK_HTTP__LISTEN_ADDR", "127.0.0.1:9090")
	t.Setenv("MAXLINK_REGISTRY__MODE", "static")

	cfg, err := LoadFrom(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.ListenAddr)
	assert.Equal(t, RegistryStatic, cfg.Registry.Mode)
}

func TestLoadFrom_DotEnv(t *testing.T) {
	root := writeRoot(t, baseYAML)
	require.NoError(t, os.WriteFile(filepath.Join(root, "conf", ".env"),
		[]byte("MAXLINK_DASHBOARD__TITLE=Lobby\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("MAXLINK_DASHBOARD__TITLE") })

	cfg, err := LoadFrom(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, "Lobby", cfg.Dashboard.Title)
}

func TestLoadFrom_VaultReferences(t *testing.T) {
	root := writeRoot(t, baseYAML+`
database:
  dsn: "dash:%s@tcp(db:3306)/maxlink"
  password: "vault:secret/maxlink/db#password"
`)
	secrets := fakeSecrets{"secret/maxlink/db#password": "s3cr3t"}

	cfg, err := LoadFrom(context.Background(), root, secrets)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cfg.Database.Password)
	assert.Equal(t, "dash:s3cr3t@tcp(db:3306)/maxlink", cfg.Database.FullDSN())

	_, err = LoadFrom(context.Background(), root, nil)
	assert.Error(t, err, "vault reference without a resolver")

	_, err = LoadFrom(context.Background(), root, fakeSecrets{})
	assert.Error(t, err, "missing secret")
}

func TestLoadFrom_MalformedVaultReference(t *testing.T) {
	root := writeRoot(t, baseYAML+`
database:
  password: "vault:no-key"
`)
	_, err := LoadFrom(context.Background(), root, fakeSecrets{})
	assert.ErrorContains(t, err, "malformed")
}

func TestLoadFrom_Validation(t *testing.T) {
	cases := map[string]string{
		"missing listen addr": `
registry: {mode: manifest}
`,
		"bad registry mode": `
http: {listen_addr: ":8080"}
registry: {mode: directory}
`,
		"table without dsn": `
http: {listen_addr: ":8080"}
registry: {mode: table}
`,
		"widget without id": `
http: {listen_addr: ":8080"}
dashboard:
  widgets:
    - position: {top: "1%"}
`,
		"bad asset url": `
http: {listen_addr: ":8080"}
assets: {base_url: "not a url"}
`,
		"bad state store": `
http: {listen_addr: ":8080"}
state: {store: redis}
`,
		"state table without dsn": `
http: {listen_addr: ":8080"}
state: {store: table}
`,
	}
	for name, yaml := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(context.Background(), writeRoot(t, yaml), nil)
			assert.Error(t, err)
		})
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := LoadFrom(context.Background(), t.TempDir(), nil)
	assert.Error(t, err)
}

func TestRootDir_EnvOverride(t *testing.T) {
	t.Setenv("MAXLINK_ROOT", "/opt/maxlink")
	assert.Equal(t, "/opt/maxlink", rootDir())
}
