package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/video-rental/internal/config"
	"github.com/iliyamo/video-rental/internal/utils"
)

func newContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func Test_JWTAuth_AcceptsIssuedToken(t *testing.T) {
	tok, err := utils.NewAccessToken("secret", 42, "CLERK", 5)
	require.NoError(t, err)

	c, rec := newContext(http.MethodGet, "/v1/me")
	c.Request().Header.Set("Authorization", "Bearer "+tok.Token)

	require.NoError(t, JWTAuth("secret")(okHandler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(42), c.Get(ContextUserID))
	assert.Equal(t, "CLERK", c.Get(ContextRole))
	assert.Equal(t, "42", userID(c))
}

func Test_JWTAuth_Rejects(t *testing.T) {
	good, err := utils.NewAccessToken("other-secret", 1, "CLERK", 5)
	require.NoError(t, err)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": 1, "role": "CLERK", "exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": 1, "role": "CLERK",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"wrong secret": "Bearer " + good.Token,
		"expired":      "Bearer " + expired,
		"no exp":       "Bearer " + noExp,
		"garbage":      "Bearer not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/v1/me")
			if header != "" {
				c.Request().Header.Set("Authorization", header)
			}
			require.NoError(t, JWTAuth("secret")(okHandler)(c))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "anon", userID(c))
		})
	}
}

func Test_RequireRole(t *testing.T) {
	mw := RequireRole("MANAGER")

	c, rec := newContext(http.MethodDelete, "/v1/customers/1")
	c.Set(ContextRole, "CLERK")
	require.NoError(t, mw(okHandler)(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = newContext(http.MethodDelete, "/v1/customers/1")
	require.NoError(t, mw(okHandler)(c))
	assert.Equal(t, http.StatusForbidden, rec.Code, "no role at all")

	c, rec = newContext(http.MethodDelete, "/v1/customers/1")
	c.Set(ContextRole, "MANAGER")
	require.NoError(t, mw(okHandler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_CacheKeyFrom_ChangesWithGenerationAndPath(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "rc", KeyStrategy: "route_query"}

	c1, _ := newContext(http.MethodGet, "/v1/customers/1/rentals?x=1")
	c1.SetPath("/v1/customers/:id/rentals")
	c2, _ := newContext(http.MethodGet, "/v1/customers/2/rentals?x=1")
	c2.SetPath("/v1/customers/:id/rentals")

	k1 := cacheKeyFrom(cfg, c1, 0)
	assert.Equal(t, k1, cacheKeyFrom(cfg, c1, 0))
	assert.NotEqual(t, k1, cacheKeyFrom(cfg, c1, 1), "a write retires old keys")
	assert.NotEqual(t, k1, cacheKeyFrom(cfg, c2, 0), "ids in the path are part of the key")
	assert.Contains(t, k1, "rc:")
}

func Test_EncodeDecodePayload(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"items":[]}`))
	require.NoError(t, err)

	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, `{"items":[]}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
	_, _, _, ok = decodePayload(append(bs[:4:4], 0xff, 0xff, 0xff, 0xff))
	assert.False(t, ok, "header length past the end")
}

func Test_MiddlewareWithoutRedisPassesThrough(t *testing.T) {
	cacheCfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}
	limitCfg := config.RateLimitConfig{Enabled: true, Capacity: 1}

	for name, mw := range map[string]echo.MiddlewareFunc{
		"cache":      NewRedisCache(cacheCfg, nil),
		"invalidate": InvalidateOnWrite(cacheCfg, nil),
		"ratelimit":  NewTokenBucket(limitCfg, nil),
	} {
		t.Run(name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/v1/titles")
			require.NoError(t, mw(okHandler)(c))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, rec.Header().Get("X-Cache"))
		})
	}
}

func Test_BuildRateKey(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/v1/rentals")
	c.SetPath("/v1/rentals")
	c.Request().Header.Set("X-Real-IP", "10.0.0.1")
	c.Set(ContextUserID, uint64(9))

	assert.Equal(t, "rl:user:9", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))
	assert.Equal(t, "rl:ip:10.0.0.1:route:POST /v1/rentals",
		buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}, c))
	assert.Equal(t, "rl:ip:10.0.0.1:user:9:route:POST /v1/rentals",
		buildRateKey(config.RateLimitConfig{Prefix: "rl"}, c))
}

func Test_ParseBucketResult(t *testing.T) {
	res, ok := parseBucketResult([]interface{}{int64(0), int64(0), int64(1500)})
	require.True(t, ok)
	assert.False(t, res.allowed)
	assert.Equal(t, int64(1500), res.retryMs)

	res, ok = parseBucketResult([]interface{}{int64(1), "4", int64(0)})
	require.True(t, ok)
	assert.True(t, res.allowed)
	assert.Equal(t, int64(4), res.remaining)

	_, ok = parseBucketResult("nope")
	assert.False(t, ok)
}
