// Package consul wraps HashiCorp Consul for backend discovery and portal self-registration.
package consul

import (
	"context"
	"errors"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
)

// ErrNoLeader is returned by Ping when the cluster has not elected a leader.
var ErrNoLeader = errors.New("consul: no cluster leader")

// Client talks to the local Consul agent.
type Client struct {
	api *consulapi.Client
}

// NewClient creates a client for the agent at addr; token is the ACL token and may be empty.
func NewClient(addr, token string) (*Client, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cfg.Token = token

	api, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client for %s: %w", cfg.Address, err)
	}
	return &Client{api: api}, nil
}

// Ping checks that the agent answers and the cluster has a leader.
func (c *Client) Ping(ctx context.Context) error {
	leader, err := c.api.Status().LeaderWithQueryOptions((&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return fmt.Errorf("consul status: %w", err)
	}
	if leader == "" {
		return ErrNoLeader
	}
	return nil
}
