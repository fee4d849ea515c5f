package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abgdnv/storefront/internal/catalog"
	"github.com/abgdnv/storefront/internal/config"
	"github.com/abgdnv/storefront/internal/reporter"
	"github.com/abgdnv/storefront/internal/snapshot"
	grpcImpl "github.com/abgdnv/storefront/internal/transport/grpc"
	pkgconfig "github.com/abgdnv/storefront/pkg/config"
	"github.com/abgdnv/storefront/pkg/telemetry"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testResilience = pkgconfig.ResilienceConfig{
	Retry: pkgconfig.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond},
	CircuitBreaker: pkgconfig.CircuitBreakerConfig{
		ConsecutiveFailures: 5,
		ErrorRatePercent:    50,
		OpenTimeout:         time.Second,
	},
}

func TestSetupStorage(t *testing.T) {
	mr := miniredis.RunT(t)

	testCases := []struct {
		name      string
		cfg       pkgconfig.StorageConfig
		expectErr bool
		check     func(t *testing.T, st any)
	}{
		{
			name: "memory",
			cfg:  pkgconfig.StorageConfig{Driver: pkgconfig.DriverMemory},
			check: func(t *testing.T, st any) {
				assert.IsType(t, &snapshot.MemoryStorage{}, st)
			},
		},
		{
			name: "file",
			cfg:  pkgconfig.StorageConfig{Driver: pkgconfig.DriverFile, File: pkgconfig.FileConfig{Dir: filepath.Join(t.TempDir(), "snap")}},
			check: func(t *testing.T, st any) {
				assert.IsType(t, &snapshot.ResilientStorage{}, st)
			},
		},
		{
			name: "redis",
			cfg: pkgconfig.StorageConfig{Driver: pkgconfig.DriverRedis, Timeout: time.Second,
				Redis: pkgconfig.RedisConfig{URL: "redis://" + mr.Addr()}},
			check: func(t *testing.T, st any) {
				assert.IsType(t, &snapshot.ResilientStorage{}, st)
			},
		},
		{
			name:      "redis unreachable",
			cfg:       pkgconfig.StorageConfig{Driver: pkgconfig.DriverRedis, Timeout: 100 * time.Millisecond, Redis: pkgconfig.RedisConfig{URL: "redis://127.0.0.1:1"}},
			expectErr: true,
		},
		{
			name:      "unknown driver",
			cfg:       pkgconfig.StorageConfig{Driver: "etcd"},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// when
			st, closer, err := SetupStorage(context.Background(), tc.cfg, testResilience, nil, discardLogger())
			defer closer()
			// then
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tc.check(t, st)

			require.NoError(t, st.Put(context.Background(), "k", []byte(`{"cart":[],"wishlist":[]}`)))
			got, err := st.Get(context.Background(), "k")
			require.NoError(t, err)
			assert.JSONEq(t, `{"cart":[],"wishlist":[]}`, string(got))
		})
	}
}

func TestSetupReporter_Disabled(t *testing.T) {
	rep, closer, err := SetupReporter(context.Background(), "storefront", pkgconfig.NATSConfig{}, discardLogger())
	defer closer()
	require.NoError(t, err)
	assert.IsType(t, &reporter.LogReporter{}, rep)
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Storage.Namespace = "eclat-store"
	cfg.Storage.Timeout = time.Second
	return cfg
}

func TestSetupHttpHandler_EndToEnd(t *testing.T) {
	// given
	cat, err := catalog.Load("")
	require.NoError(t, err)
	product := cat.All()[0]
	storage := snapshot.NewMemoryStorage()
	deps, err := SetupDependencies(cat, storage, reporter.Nop{}, grpcImpl.NewHealth(discardLogger()), newTestConfig(), discardLogger())
	require.NoError(t, err)
	metrics, err := telemetry.NewMetrics("storefront-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = metrics.Shutdown(context.Background()) })
	deps.Metrics = metrics.Handler()
	h := SetupHttpHandler(deps)
	session := "8f14e45f-ceea-4e7a-9f7c-1b2d3e4f5a6b"

	do := func(method, target, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, reader)
		req.Header.Set("X-Session-Id", session)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}
	addBody := `{"productId":"` + product.ID + `","size":"` + product.Sizes[0] + `","color":"` + product.Colors[0] + `"}`

	// when
	rr := do(http.MethodPost, "/api/v1/cart/items", addBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = do(http.MethodPost, "/api/v1/cart/items", addBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = do(http.MethodGet, "/api/v1/cart", "")

	// then
	require.Equal(t, http.StatusOK, rr.Code)
	var cart struct {
		Items []struct {
			ProductID string `json:"productId"`
			Quantity  int    `json:"quantity"`
		} `json:"items"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cart))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 2, cart.Count)

	raw, err := storage.Get(context.Background(), "eclat-store:session:"+session)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"productId":"`+product.ID+`"`)

	rr = do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
