package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpwatch/internal/config"
)

func setupTestRedis(t *testing.T) *goredis.Client {
	t.Helper()

	mr := miniredis.RunT(t)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func testBuckets() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled: true,
		ByIP: config.RateBucket{
			RefillPerSec: 1,
			Burst:        2,
			TTL:          2 * time.Minute,
		},
		ByJWT: config.RateBucket{
			RefillPerSec: 1,
			Burst:        3,
			TTL:          2 * time.Minute,
		},
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/rankings", nil)
	req.RemoteAddr = ip + ":12345"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_IPBurstExhaustion(t *testing.T) {
	rdb := setupTestRedis(t)
	m := NewRateLimit(rdb, testBuckets(), nil)
	h := m.Handler(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1").Code)

	rec := doRequest(h, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimit_IPsIsolated(t *testing.T) {
	rdb := setupTestRedis(t)
	m := NewRateLimit(rdb, testBuckets(), nil)
	h := m.Handler(okHandler())

	// first client burns its bucket
	doRequest(h, "10.0.0.1")
	doRequest(h, "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.1").Code)

	// a different client is unaffected
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.2").Code)
}

func TestRateLimit_XForwardedForPreferred(t *testing.T) {
	rdb := setupTestRedis(t)
	m := NewRateLimit(rdb, testBuckets(), nil)
	h := m.Handler(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/rankings", nil)
		req.RemoteAddr = "127.0.0.1:9999"
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/rankings", nil)
	req.RemoteAddr = "127.0.0.1:9999"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimit_JWTBucket(t *testing.T) {
	rdb := setupTestRedis(t)
	priv, pub := generateTestKeys(t)
	verifier := newVerifier(pub, "", "")

	cfg := testBuckets()
	cfg.ByIP.Burst = 100 // keep the IP bucket out of the way
	m := NewRateLimit(rdb, cfg, verifier)
	h := m.Handler(okHandler())

	token := signToken(t, priv, jwt.RegisteredClaims{
		Subject:   "user42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/rankings", nil)
		req.RemoteAddr = ip + ":12345"
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// subject bucket spans source addresses
	require.Equal(t, http.StatusOK, send("10.0.0.1"))
	require.Equal(t, http.StatusOK, send("10.0.0.2"))
	require.Equal(t, http.StatusOK, send("10.0.0.3"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.4"))
}

func TestRateLimit_RedisDownFailsOpen(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:0",
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	m := NewRateLimit(rdb, testBuckets(), nil)
	h := m.Handler(okHandler())

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1").Code)
	}
}

func TestNewRateLimit_Defaults(t *testing.T) {
	rdb := setupTestRedis(t)
	m := NewRateLimit(rdb, config.RateLimitConfig{Enabled: true}, nil)

	assert.Equal(t, 10, m.cfg.ByIP.RefillPerSec)
	assert.Equal(t, 20, m.cfg.ByIP.Burst)
	assert.Equal(t, 50, m.cfg.ByJWT.RefillPerSec)
	assert.Equal(t, 100, m.cfg.ByJWT.Burst)
	assert.Equal(t, 2*time.Minute, m.cfg.ByIP.TTL)
}
