package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterPerIP(t *testing.T) {
	l := NewLimiter(1, 2)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("1.1.1.1"))
}

func TestLimiterSweep(t *testing.T) {
	l := NewLimiter(5, 5)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(time.Hour)
	l.Allow("b")
	assert.Equal(t, 1, l.Sweep(10*time.Minute))
	assert.Len(t, l.visitors, 1)
}

func TestLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewLimiter(0.001, 1, "/api/webhook")

	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/api/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/webhook", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(method, path string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = "9.9.9.9:1234"
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/x"))
	assert.Equal(t, http.StatusTooManyRequests, do(http.MethodGet, "/api/x"))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/webhook"))
	}

	disabled := NewLimiter(0, 0)
	assert.False(t, disabled.Enabled())
	assert.True(t, disabled.Allow("x"))
}

func TestHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Headers())
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}")))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x"))
	req.ContentLength = maxBodyBytes + 1
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSecret(t *testing.T) {
	assert.True(t, Secret{}.Verify("anything"))

	plain := Secret{Plain: "letmein!"}
	assert.True(t, plain.Verify("letmein!"))
	assert.False(t, plain.Verify("letmein"))

	hash, err := HashSecret("correct horse")
	require.NoError(t, err)
	hashed := Secret{Plain: "ignored", Hash: hash}
	assert.True(t, hashed.Verify("correct horse"))
	assert.False(t, hashed.Verify("ignored"))

	_, err = HashSecret("short")
	assert.Error(t, err)
}
