package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/d60-Lab/storefront/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiter_PerClientBuckets(t *testing.T) {
	l := NewRateLimiter(1, 2)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	l := NewRateLimiter(1, 1)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(limiterIdleTTL + time.Minute)
	l.Allow("b")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.clients, "a")
	assert.Contains(t, l.clients, "b")
}

func TestRequestLogger_PropagatesRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ping/:id", func(c *gin.Context) {
		logger.FromContext(c.Request.Context()).Info("inside handler")
		c.Status(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping/1", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
	require.Equal(t, 1, logs.FilterMessage("inside handler").Len())
	assert.Equal(t, "req-123", logs.FilterMessage("inside handler").All()[0].ContextMap()["request_id"])

	access := logs.FilterMessage("http_access").All()
	require.Len(t, access, 1)
	assert.Equal(t, zapcore.WarnLevel, access[0].Level)
	assert.Equal(t, "/ping/:id", access[0].ContextMap()["route"])
}

func TestRecovery_AnswersInternalError(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
}

type httpCall struct{ method, route, status string }

type fakeHTTPRecorder struct{ calls []httpCall }

func (f *fakeHTTPRecorder) ObserveHTTP(method, route, status string, _ time.Duration) {
	f.calls = append(f.calls, httpCall{method, route, status})
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	rec := &fakeHTTPRecorder{}
	r := gin.New()
	r.Use(Metrics(rec))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, p := range []string{"/items/1", "/items/2", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	assert.Equal(t, []httpCall{
		{"GET", "/items/:id", "200"},
		{"GET", "/items/:id", "200"},
		{"GET", "unmatched", "404"},
	}, rec.calls)
}
