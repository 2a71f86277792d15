// Package proxy forwards gateway calls of the form /api/{service}/{path} to
// the backend service that owns them.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/sirupsen/logrus"
)

const defaultContentType = "application/json"

// Resolver looks up the base URL of a logical service.
type Resolver interface {
	Resolve(name string) (string, error)
}

type QueryParam struct {
	Key   string
	Value string
}

type Request struct {
	Service string
	Path    string
	Method  string
	Header  http.Header
	// Query parameters in their original order, repeated keys included.
	Query []QueryParam
	Body  []byte
}

type Response struct {
	Status     int
	StatusText string
	Header     http.Header
	Body       []byte
}

// ErrorPayload is the body of responses produced by the router itself.
type ErrorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type Router struct {
	services Resolver
	client   *http.Client
	logger   logrus.FieldLogger
}

func NewRouter(services Resolver, client *http.Client, logger logrus.FieldLogger) *Router {
	if client == nil {
		client = &http.Client{}
	}
	return &Router{services: services, client: client, logger: logger}
}

// Do sends the request upstream and returns whatever the service answered,
// whatever the status. Errors are reserved for unknown services and
// transport failures. Nothing is retried or cached.
func (r *Router) Do(ctx context.Context, req Request) (*Response, error) {
	base, err := r.services.Resolve(req.Service)
	if err != nil {
		return nil, err
	}

	target := TargetURL(base, req.Path, EncodeQuery(req.Query))

	var body io.Reader
	if hasBody(req.Method) && len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request to %s: %w", req.Service, err)
	}
	httpReq.Header = forwardHeaders(req.Header)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", req.Service, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.Service, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	return &Response{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Header:     http.Header{"Content-Type": []string{contentType}},
		Body:       payload,
	}, nil
}

// Forward never fails: unknown services become a 404 and any other failure a
// 500, both with a JSON error payload.
func (r *Router) Forward(ctx context.Context, req Request) *Response {
	resp, err := r.Do(ctx, req)
	if err == nil {
		return resp
	}

	entry := r.logger.WithFields(logrus.Fields{"service": req.Service, "path": req.Path, "method": req.Method})
	if errors.Is(err, domain.ErrUnknownService) {
		entry.Debug("proxy: unknown service")
		return errorResponse(http.StatusNotFound, ErrorPayload{Error: "Unknown service: " + req.Service})
	}

	if ctx.Err() != nil {
		entry.WithError(err).Debug("proxy: request cancelled by caller")
	} else {
		entry.WithError(err).Error("proxy request failed")
	}
	return errorResponse(http.StatusInternalServerError, ErrorPayload{Error: "Proxy request failed", Details: err.Error()})
}

// TargetURL joins base, path and an encoded query string.
func TargetURL(base, path, query string) string {
	target := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	if query != "" {
		target += "?" + query
	}
	return target
}

// ParseQuery splits a raw query string keeping parameter order.
func ParseQuery(raw string) []QueryParam {
	if raw == "" {
		return nil
	}
	var params []QueryParam
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		params = append(params, QueryParam{Key: key, Value: value})
	}
	return params
}

func EncodeQuery(params []QueryParam) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	return strings.Join(parts, "&")
}

func hasBody(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

// forwardHeaders drops Host, which names the gateway. Accept-Encoding is left
// to the transport so the relayed body is always decoded: only Content-Type
// travels back to the caller.
func forwardHeaders(in http.Header) http.Header {
	out := in.Clone()
	if out == nil {
		out = http.Header{}
	}
	out.Del("Host")
	out.Del("Accept-Encoding")
	return out
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func errorResponse(status int, payload ErrorPayload) *Response {
	body, _ := json.Marshal(payload)
	return &Response{
		Status:     status,
		StatusText: http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{defaultContentType}},
		Body:       body,
	}
}
