package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionEngine(secure bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(FlowSession(30*time.Minute, secure))
	engine.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, FlowID(c))
	})
	return engine
}

func TestFlowSession_IssuesCookie(t *testing.T) {
	engine := sessionEngine(true)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	require.Equal(t, http.StatusOK, w.Code)
	id := w.Body.String()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, w.Header().Get(FlowSessionHeader))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, FlowSessionCookie, cookies[0].Name)
	assert.Equal(t, id, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, 1800, cookies[0].MaxAge)
}

func TestFlowSession_ReusesCookie(t *testing.T) {
	engine := sessionEngine(false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: FlowSessionCookie, Value: "9b2f4c1e-6a3d-4e5f-8a7b-1c2d3e4f5a6b"})
	engine.ServeHTTP(w, req)

	assert.Equal(t, "9b2f4c1e-6a3d-4e5f-8a7b-1c2d3e4f5a6b", w.Body.String())
	assert.Empty(t, w.Result().Cookies())
}

func TestFlowSession_HeaderFallback(t *testing.T) {
	engine := sessionEngine(false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(FlowSessionHeader, "0d6c3b8a-2f41-4c7e-9d15-7e8a9b0c1d2e")
	engine.ServeHTTP(w, req)

	assert.Equal(t, "0d6c3b8a-2f41-4c7e-9d15-7e8a9b0c1d2e", w.Body.String())
	assert.Empty(t, w.Result().Cookies())
}

func TestFlowSession_MalformedCookieFallsBackToHeader(t *testing.T) {
	engine := sessionEngine(false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: FlowSessionCookie, Value: "receipt:BK-1"})
	req.Header.Set(FlowSessionHeader, "0d6c3b8a-2f41-4c7e-9d15-7e8a9b0c1d2e")
	engine.ServeHTTP(w, req)

	assert.Equal(t, "0d6c3b8a-2f41-4c7e-9d15-7e8a9b0c1d2e", w.Body.String())
	assert.Empty(t, w.Result().Cookies())
}

func TestFlowSession_ReplacesMalformedID(t *testing.T) {
	testCases := []struct {
		name  string
		apply func(*http.Request)
	}{
		{name: "receipt-shaped cookie", apply: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: FlowSessionCookie, Value: "receipt:BK-1"})
		}},
		{name: "arbitrary header", apply: func(r *http.Request) { r.Header.Set(FlowSessionHeader, "flow-from-header") }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			engine := sessionEngine(false)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			tc.apply(req)
			engine.ServeHTTP(w, req)

			id := w.Body.String()
			_, err := uuid.Parse(id)
			require.NoError(t, err)
			assert.NotContains(t, id, "receipt")

			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, id, cookies[0].Value)
		})
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	engine.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Body.String())
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID(), Logger(logger))
	engine.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	engine.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for path, level := range map[string]logrus.Level{
		"/ok":      logrus.InfoLevel,
		"/missing": logrus.WarnLevel,
		"/boom":    logrus.ErrorLevel,
	} {
		hook.Reset()
		engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))

		entry := hook.LastEntry()
		require.NotNil(t, entry, path)
		assert.Equal(t, level, entry.Level, path)
		assert.Equal(t, path, entry.Data["path"])
		assert.NotEmpty(t, entry.Data["request_id"])
	}
}

func TestRespondError_IncludesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) {
		respondError(c, assert.AnError)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "internal_error", resp.Code)
	assert.Equal(t, "req-7", resp.RequestID)
}
