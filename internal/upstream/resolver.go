// Package upstream resolves the backend REST API base URL, either fixed or discovered through Consul.
package upstream

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"portal/internal/consul"
)

// APIPath is the versioned prefix of every backend endpoint.
const APIPath = "/api/v1"

// Resolver returns the backend API base, e.g. http://host:8080/api/v1, without trailing slash.
type Resolver interface {
	BaseURL(ctx context.Context) (string, error)
}

// Static always resolves to the same base URL.
type Static string

// NewStatic builds a Static resolver from an origin such as http://localhost:8080.
func NewStatic(origin string) Static {
	return Static(strings.TrimRight(origin, "/") + APIPath)
}

func (s Static) BaseURL(context.Context) (string, error) {
	return string(s), nil
}

// Consul discovers a healthy backend instance per call.
type Consul struct {
	discovery consul.ServiceDiscovery
	service   string
	scheme    string
}

// NewConsul resolves service through discovery over plain HTTP.
func NewConsul(discovery consul.ServiceDiscovery, service string) *Consul {
	return &Consul{discovery: discovery, service: service, scheme: "http"}
}

func (c *Consul) BaseURL(ctx context.Context) (string, error) {
	instance, err := c.discovery.DiscoverOne(ctx, c.service)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", c.service, err)
	}
	host := net.JoinHostPort(instance.Address, strconv.Itoa(instance.Port))
	return c.scheme + "://" + host + APIPath, nil
}
