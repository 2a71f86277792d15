package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	RequestIDHeader   = "X-Request-ID"
	FlowSessionHeader = "X-Flow-Session"
	FlowSessionCookie = "flow_session"

	requestIDKey = "request_id"
	flowIDKey    = "flow_id"
)

// RequestID ensures every request carries an id for tracing and logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(RequestIDHeader, rid)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(requestIDKey)
}

// Logger writes one structured entry per request.
func Logger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"request_id": GetRequestID(c),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"client_ip":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("http request")
		case status >= http.StatusBadRequest:
			entry.Warn("http request")
		default:
			entry.Info("http request")
		}
	}
}

// FlowSession identifies the browser session a booking flow belongs to. The
// id comes from the session cookie or header and must be a UUID; a new one is
// issued otherwise.
func FlowSession(maxAge time.Duration, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, _ := c.Cookie(FlowSessionCookie)
		id, ok := sessionID(cookie)
		if !ok {
			id, ok = sessionID(c.GetHeader(FlowSessionHeader))
		}
		if !ok {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(FlowSessionCookie, id, int(maxAge.Seconds()), "/", "", secure, true)
		}
		c.Set(flowIDKey, id)
		c.Writer.Header().Set(FlowSessionHeader, id)
		c.Next()
	}
}

func sessionID(raw string) (string, bool) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// FlowID returns the session id set by FlowSession.
func FlowID(c *gin.Context) string {
	return c.GetString(flowIDKey)
}
