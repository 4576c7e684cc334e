package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tombstone/internal/core/apperror"
)

func newTestEngine(route string, h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(), Trace(), ErrorHandler())
	r.GET(route, h)
	return r
}

func serve(t *testing.T, r *gin.Engine, path string, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestErrorHandler_AppError(t *testing.T) {
	r := newTestEngine("/x", func(c *gin.Context) {
		_ = c.Error(apperror.NewNotFound("warehouse", "42"))
	})

	w, body := serve(t, r, "/x", http.Header{HeaderRequestID: {"req-7"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(apperror.CodeNotFound), body["code"])
	assert.Equal(t, "req-7", body["request_id"])
	assert.Equal(t, "req-7", w.Header().Get(HeaderRequestID))
}

func TestErrorHandler_PlainErrorIsHidden(t *testing.T) {
	r := newTestEngine("/x", func(c *gin.Context) {
		_ = c.Error(errors.New("connection reset by peer"))
	})

	w, body := serve(t, r, "/x", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(apperror.CodeInternal), body["code"])
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestErrorHandler_WrittenResponseKept(t *testing.T) {
	r := newTestEngine("/x", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
		_ = c.Error(errors.New("late"))
	})

	w, body := serve(t, r, "/x", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, true, body["ok"])
}

func TestRecovery(t *testing.T) {
	r := newTestEngine("/x", func(c *gin.Context) {
		panic("boom")
	})

	w, body := serve(t, r, "/x", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(apperror.CodeInternal), body["code"])
	assert.NotEmpty(t, body["request_id"])
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestTrace_PropagatesTraceHeader(t *testing.T) {
	r := newTestEngine("/x", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w, _ := serve(t, r, "/x", http.Header{HeaderTraceID: {"upstream-trace"}})
	assert.Equal(t, "upstream-trace", w.Header().Get(HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}
