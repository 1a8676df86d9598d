package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LoggingMiddleware(), PrometheusMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		if zerolog.Ctx(c.Request.Context()).GetLevel() == zerolog.Disabled {
			c.String(http.StatusInternalServerError, "no logger")
			return
		}
		c.String(http.StatusOK, c.GetString("trace_id"))
	})
	return r
}

func TestLoggingMiddleware(t *testing.T) {
	t.Run("should take the trace id from traceparent", func(t *testing.T) {
		req := require.New(t)
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.Header.Set(TraceParentHeader, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

		newRouter().ServeHTTP(w, r)

		req.Equal(http.StatusOK, w.Code)
		req.Equal("4bf92f3577b34da6a3ce929d0e0e4736", w.Body.String())
		req.Equal("4bf92f3577b34da6a3ce929d0e0e4736", w.Header().Get(TraceIDHeader))
	})

	t.Run("should fall back to X-Trace-ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.Header.Set(TraceIDHeader, "abc123")

		newRouter().ServeHTTP(w, r)

		require.Equal(t, "abc123", w.Header().Get(TraceIDHeader))
	})

	t.Run("should generate a 32 hex char trace id", func(t *testing.T) {
		req := require.New(t)
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.Header.Set(TraceParentHeader, "garbage")

		newRouter().ServeHTTP(w, r)

		req.Len(w.Header().Get(TraceIDHeader), 32)
		req.Equal(w.Header().Get(TraceIDHeader), w.Body.String())
	})
}
