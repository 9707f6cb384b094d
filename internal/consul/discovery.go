package consul

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	consulapi "github.com/hashicorp/consul/api"
)

// ErrNoInstances is returned when a service has no passing instances.
var ErrNoInstances = errors.New("no healthy instances")

// ServiceInstance represents a discovered service instance
type ServiceInstance struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
}

// ServiceDiscovery defines the interface for service discovery
type ServiceDiscovery interface {
	Discover(ctx context.Context, serviceName string) ([]*ServiceInstance, error)
	DiscoverOne(ctx context.Context, serviceName string) (*ServiceInstance, error)
}

// Discover retrieves all instances of a service whose health checks pass.
func (c *Client) Discover(ctx context.Context, serviceName string) ([]*ServiceInstance, error) {
	opts := (&consulapi.QueryOptions{}).WithContext(ctx)
	entries, _, err := c.api.Health().Service(serviceName, "", true, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to discover service %s: %w", serviceName, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w for service %s", ErrNoInstances, serviceName)
	}

	instances := make([]*ServiceInstance, 0, len(entries))
	for _, entry := range entries {
		instance := &ServiceInstance{
			ID:      entry.Service.ID,
			Name:    entry.Service.Service,
			Address: entry.Service.Address,
			Port:    entry.Service.Port,
			Tags:    entry.Service.Tags,
		}
		// Fall back to the node address when the service did not register one.
		if instance.Address == "" && entry.Node != nil {
			instance.Address = entry.Node.Address
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

// DiscoverOne picks a random healthy instance.
func (c *Client) DiscoverOne(ctx context.Context, serviceName string) (*ServiceInstance, error) {
	instances, err := c.Discover(ctx, serviceName)
	if err != nil {
		return nil, err
	}
	return instances[rand.IntN(len(instances))], nil
}
