package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// kvServer answers KV-v2 reads for secret/maxlink/db and counts them.
func kvServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/secret/data/maxlink/db":
			hits.Add(1)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"data":     map[string]any{"password": "s3cr3t", "port": 3306},
					"metadata": map[string]any{"version": 1},
				},
			})
		default:
			http.Error(w, `{"errors":["permission denied"]}`, http.StatusForbidden)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newClient(t *testing.T, addr string) *Client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	// The renew loop outlives the test body, so it logs to a no-op core.
	c, err := New(ctx, Options{Addr: addr, Token: "test", Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)
	return c
}

func TestGetKV_CachesForTTL(t *testing.T) {
	srv, hits := kvServer(t)
	c := newClient(t, srv.URL)
	ctx := context.Background()

	for range 3 {
		v, err := c.GetKV(ctx, "secret/maxlink/db", "password", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "s3cr3t", v)
	}
	assert.EqualValues(t, 1, hits.Load())

	c.Forget()
	_, err := c.GetKV(ctx, "secret/maxlink/db", "password", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())

	_, err = c.GetKV(ctx, "secret/maxlink/db", "password", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, hits.Load())
}

func TestGetKV_Errors(t *testing.T) {
	srv, _ := kvServer(t)
	c := newClient(t, srv.URL)
	ctx := context.Background()

	_, err := c.GetKV(ctx, "", "password", 0)
	assert.Error(t, err)

	_, err = c.GetKV(ctx, "secret", "password", 0)
	assert.ErrorContains(t, err, "no mount")

	_, err = c.GetKV(ctx, "secret/maxlink/db", "user", 0)
	assert.ErrorContains(t, err, "not found")

	_, err = c.GetKV(ctx, "secret/maxlink/db", "port", 0)
	assert.ErrorContains(t, err, "not a string")

	_, err = c.GetKV(ctx, "secret/other", "password", 0)
	assert.Error(t, err)
}

func TestSplitMount(t *testing.T) {
	m, r := splitMount("secret/maxlink/db")
	assert.Equal(t, "secret", m)
	assert.Equal(t, "maxlink/db", r)
}

func TestAvailable(t *testing.T) {
	t.Setenv("VAULT_ADDR", "")
	assert.False(t, Available())
	t.Setenv("VAULT_ADDR", "http://127.0.0.1:8200")
	assert.True(t, Available())
}
