package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/clapserv/backend/internal/cache"
	"github.com/clapserv/backend/internal/logger"
	"github.com/clapserv/backend/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	logger.SugaredLog = logger.Log.Sugar()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func TestRedisRateLimit(t *testing.T) {
	rc, err := cache.NewRedisClient(os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"), os.Getenv("REDIS_PASSWORD"))
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer rc.Close()

	// Clear any counter left over from a previous run
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, rc.Del(ctx, "rate_limit:192.0.2.1"))

	r := gin.New()
	r.Use(RedisRateLimitMiddleware(2, time.Minute))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/ping", nil)
		r.ServeHTTP(w, req)
		return w.Code
	}

	before := testutil.ToFloat64(metrics.Get().RateLimitExceededTotal.WithLabelValues("/ping"))

	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())

	// The exceeded counter is labeled by route template
	after := testutil.ToFloat64(metrics.Get().RateLimitExceededTotal.WithLabelValues("/ping"))
	assert.Equal(t, before+1, after)
}
