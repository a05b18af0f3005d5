package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"authgate/api/middleware"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsBurstThenDenies(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, 3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("10.0.0.1"), "request %d within burst", i)
	}
	assert.False(t, limiter.Allow("10.0.0.1"), "burst exhausted")
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, 1, time.Minute)

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"), "a saturated neighbour must not bleed over")
}

func TestRateLimiterMiddlewareReturns429(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, 1, time.Minute)
	e := echo.New()
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	wrapped := limiter.Middleware()(next)

	call := func() error {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		rec := httptest.NewRecorder()
		return wrapped(e.NewContext(req, rec))
	}

	require.NoError(t, call())

	err := call()
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
}
