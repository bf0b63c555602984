package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/observability"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://u:p@db:5432/stock")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 3, cfg.ValidateRetries)
	assert.Equal(t, 25*time.Millisecond, cfg.RetryBackoff)
	assert.False(t, cfg.RequireReady)
	assert.Equal(t, "@every 1h", cfg.IntegrityCron)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("INVENTORY_VALIDATE_RETRIES", "7")
	t.Setenv("INVENTORY_REQUIRE_READY", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 7, cfg.ValidateRetries)
	assert.True(t, cfg.RequireReady)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestConnectionSettings(t *testing.T) {
	t.Setenv("PG_MAX_CONNS", "20")
	t.Setenv("PG_MIN_CONNS", "2")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("INVENTORY_LOCK_TIMEOUT", "2s")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)

	pool := cfg.PoolOptions("stockledger-api")
	assert.Equal(t, int32(20), pool.MaxConns)
	assert.Equal(t, int32(2), pool.MinConns)
	assert.Equal(t, 30*time.Minute, pool.MaxConnLifetime)
	assert.Equal(t, "stockledger-api", pool.ApplicationName)

	redisOpts := cfg.RedisOptions()
	assert.Equal(t, "cache:6380", redisOpts.Addr)
	assert.Equal(t, "secret", redisOpts.Password)
	assert.Equal(t, 3, redisOpts.DB)

	queue := cfg.AsynqRedis()
	assert.Equal(t, redisOpts.Addr, queue.Addr)
	assert.Equal(t, redisOpts.Password, queue.Password)
	assert.Equal(t, redisOpts.DB, queue.DB)
}

func TestLoadConfigRejectsInvalidSettings(t *testing.T) {
	for env, value := range map[string]string{
		"INVENTORY_VALIDATE_RETRIES": "0",
		"RATE_LIMIT_PER_MINUTE":      "0",
		"QUERY_CACHE_TTL":            "-1s",
		"PG_MAX_CONNS":               "0",
		"PG_MIN_CONNS":               "50",
		"INVENTORY_LOCK_TIMEOUT":     "-1s",
	} {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, value)
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("sku", "WID-1"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "WID-1", line["sku"])

	assert.Equal(t, slog.LevelDebug, parseLevel(&Config{LogLevel: "DEBUG"}))
	assert.Equal(t, slog.LevelInfo, parseLevel(nil))
}

type pingMounter struct{ path string }

func (p pingMounter) MountRoutes(r chi.Router) {
	r.Get(p.path, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, shared.ActorFromContext(r.Context()))
	})
}

func testRouter(health func(context.Context) error) (http.Handler, *observability.Metrics) {
	metrics := observability.NewMetrics()
	cfg := &Config{AppEnv: "production", RateLimitPerMinute: 1000, AppRequestTimeout: time.Second}
	return NewRouter(RouterParams{
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:            cfg,
		Metrics:           metrics,
		HealthCheck:       health,
		InventoryHandler:  pingMounter{path: "/documents"},
		ProductsHandler:   pingMounter{path: "/products"},
		CategoriesHandler: pingMounter{path: "/categories"},
		WarehousesHandler: pingMounter{path: "/warehouses"},
		JobHandler:        pingMounter{path: "/health"},
	}), metrics
}

func get(h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterMountsModules(t *testing.T) {
	h, _ := testRouter(nil)

	rec := get(h, "/api/v1/documents", http.Header{shared.ActorHeader: {"clerk-7"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "clerk-7", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	for _, path := range []string{"/api/v1/products", "/api/v1/categories", "/api/v1/warehouses", "/jobs/health", "/healthz"} {
		assert.Equal(t, http.StatusOK, get(h, path, nil).Code, path)
	}
	assert.Equal(t, http.StatusNotFound, get(h, "/documents", nil).Code)
}

func TestHealthzReportsDegradedStore(t *testing.T) {
	h, _ := testRouter(func(ctx context.Context) error { return errors.New("pool closed") })
	rec := get(h, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	h, _ := testRouter(nil)
	get(h, "/api/v1/products", nil)

	rec := get(h, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `stockledger_http_requests_total{code="200",route="/api/v1/products"}`), body)
}
