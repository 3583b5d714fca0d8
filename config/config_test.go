package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8000", cfg.APIURL)
	assert.Equal(t, "http://localhost:8080", cfg.AuthURL)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, BackendSQLite, cfg.Session.Backend)
	assert.Equal(t, "library-session.db", cfg.Session.Path)
	assert.Equal(t, "library:session:", cfg.Session.RedisPrefix)
	assert.True(t, cfg.LogPretty)
	assert.Zero(t, cfg.RateLimit)
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"LIBRARY_API_URL":         "https://books.example.com",
		"LIBRARY_HTTP_TIMEOUT":    "3s",
		"LIBRARY_SESSION_BACKEND": "redis",
		"LIBRARY_REDIS_DB":        "2",
		"LIBRARY_RATE_LIMIT":      "5",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://books.example.com", cfg.APIURL)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, BackendRedis, cfg.Session.Backend)
	assert.Equal(t, 2, cfg.Session.RedisDB)
	assert.Equal(t, 5.0, cfg.RateLimit)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"relative api url", map[string]string{"LIBRARY_API_URL": "/api"}},
		{"unknown backend", map[string]string{"LIBRARY_SESSION_BACKEND": "etcd"}},
		{"zero timeout", map[string]string{"LIBRARY_HTTP_TIMEOUT": "0s"}},
		{"negative rate", map[string]string{"LIBRARY_RATE_LIMIT": "-1"}},
		{"bad duration", map[string]string{"LIBRARY_HTTP_TIMEOUT": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(context.Background(), envconfig.MapLookuper(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestSessionStoreMapping(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"LIBRARY_SESSION_BACKEND": "redis",
		"LIBRARY_SESSION_KEY":     "secret",
		"LIBRARY_REDIS_ADDR":      "cache:6379",
		"LIBRARY_REDIS_DB":        "2",
	}))
	require.NoError(t, err)

	sc := cfg.Session.Store()
	assert.Equal(t, BackendRedis, sc.Backend)
	assert.Equal(t, "secret", sc.Key)
	assert.Equal(t, "cache:6379", sc.Redis.Addr)
	assert.Equal(t, 2, sc.Redis.DB)
	assert.Equal(t, "library:session:", sc.Redis.Prefix)
	assert.Equal(t, "library-session.db", sc.Path)
}
