package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/Domenick1991/journeygate/internal/proxy"
	"github.com/gin-gonic/gin"
)

type Forwarder interface {
	Forward(ctx context.Context, req proxy.Request) *proxy.Response
}

// ProxyHandler exposes /api/{service}/{path} and relays whatever the backend
// answers.
type ProxyHandler struct {
	router Forwarder
}

func NewProxyHandler(router Forwarder) *ProxyHandler {
	return &ProxyHandler{router: router}
}

func (h *ProxyHandler) Register(router *gin.RouterGroup) {
	router.Any("/:service/*path", h.forward)
}

func (h *ProxyHandler) forward(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "bad_request", "failed to read request body", nil)
		return
	}

	resp := h.router.Forward(c.Request.Context(), proxy.Request{
		Service: c.Param("service"),
		Path:    strings.TrimPrefix(c.Param("path"), "/"),
		Method:  c.Request.Method,
		Header:  c.Request.Header,
		Query:   proxy.ParseQuery(c.Request.URL.RawQuery),
		Body:    body,
	})

	c.Data(resp.Status, resp.Header.Get("Content-Type"), resp.Body)
}
