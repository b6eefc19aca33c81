package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/maxlink/dashboard/internal/config"
	"github.com/maxlink/dashboard/internal/dashboard"
	"github.com/maxlink/dashboard/internal/database"
	"github.com/maxlink/dashboard/internal/discovery"
)

func TestOriginChecker(t *testing.T) {
	assert.Nil(t, originChecker(nil))

	check := originChecker([]string{"https://ops.example"})
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://panel.local/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}
	assert.True(t, check(req("")))
	assert.True(t, check(req("http://panel.local")))
	assert.True(t, check(req("https://OPS.example")))
	assert.False(t, check(req("https://evil.example")))
}

func TestWidgetLister_Modes(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	ctx := context.Background()

	cfg := &config.Config{Registry: config.Registry{Mode: config.RegistryStatic, Static: []string{"clock"}}}
	l := widgetLister(cfg, nil, nil, log)
	assert.IsType(t, &discovery.Static{}, l)
	assert.True(t, l.WidgetExists(ctx, "clock"))

	cfg.Registry = config.Registry{Mode: config.RegistryManifest}
	assert.IsType(t, &discovery.Manifest{}, widgetLister(cfg, nil, nil, log))

	cfg.Registry.Validate = true
	assert.IsType(t, &discovery.Validated{}, widgetLister(cfg, nil, nil, log))
}

func TestOpenDatabase_OnlyWhenNeeded(t *testing.T) {
	cfg := &config.Config{Registry: config.Registry{Mode: config.RegistryManifest}}
	db, err := openDatabase(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, db)

	cfg.State.Store = config.StateTable
	cfg.Database.DSN = "not a dsn"
	_, err = openDatabase(context.Background(), cfg)
	assert.Error(t, err)
}

func TestStateStore_Modes(t *testing.T) {
	cfg := &config.Config{}
	assert.Nil(t, stateStore(cfg, nil))

	cfg.State = config.State{Store: config.StateFile, File: "/var/lib/maxlink/state.json"}
	assert.Equal(t, dashboard.FileStore{Path: "/var/lib/maxlink/state.json"}, stateStore(cfg, nil))

	cfg.State = config.State{Store: config.StateTable, Name: "lobby"}
	assert.IsType(t, &database.StateStore{}, stateStore(cfg, nil))
}

func TestAssetSource_Modes(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()

	cfg := &config.Config{Assets: config.Assets{Dir: t.TempDir()}}
	_, err := assetSource(cfg, log)
	require.NoError(t, err)

	cfg.Assets.BaseURL = "ftp://assets.local"
	_, err = assetSource(cfg, log)
	assert.Error(t, err)

	cfg.Assets.BaseURL = "http://assets.local:8000"
	_, err = assetSource(cfg, log)
	assert.NoError(t, err)
}
