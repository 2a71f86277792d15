// Package registry maps logical backend service names to base URLs.
package registry

import (
	"fmt"
	"strings"

	"github.com/Domenick1991/journeygate/internal/domain"
)

// Services lists every backend reachable through the gateway.
var Services = []string{
	"auth", "user", "search", "pricing", "inventory", "booking", "payment",
	"ticketing", "notification", "review", "analytics", "ai", "iot", "admin",
}

// defaultHosts holds the container names that differ from journeyiq-<name>.
var defaultHosts = map[string]string{
	"ai": "journeyiq-ai-agent",
}

type Registry struct {
	urls map[string]string
}

// New builds the table from defaults, then applies overrides in order, later
// maps winning. Overrides for names outside Services are ignored.
func New(overrides ...map[string]string) *Registry {
	urls := make(map[string]string, len(Services))
	for _, name := range Services {
		urls[name] = DefaultURL(name)
	}
	for _, o := range overrides {
		for name, url := range o {
			if _, known := urls[name]; known && url != "" {
				urls[name] = strings.TrimRight(url, "/")
			}
		}
	}
	return &Registry{urls: urls}
}

func DefaultURL(name string) string {
	host, ok := defaultHosts[name]
	if !ok {
		host = "journeyiq-" + name
	}
	return "http://" + host + ":8000"
}

// EnvKey is the environment variable overriding a service, e.g. SEARCH_SERVICE_URL.
func EnvKey(name string) string {
	return strings.ToUpper(name) + "_SERVICE_URL"
}

// FromEnv collects overrides through lookup (os.LookupEnv in production).
func FromEnv(lookup func(string) (string, bool)) map[string]string {
	out := make(map[string]string)
	for _, name := range Services {
		if v, ok := lookup(EnvKey(name)); ok && v != "" {
			out[name] = v
		}
	}
	return out
}

func (r *Registry) Resolve(name string) (string, error) {
	url, ok := r.urls[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownService, name)
	}
	return url, nil
}
