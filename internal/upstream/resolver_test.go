package upstream

import (
	"context"
	"errors"
	"testing"

	"portal/internal/consul"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDiscovery struct {
	discoverOneFunc func(ctx context.Context, name string) (*consul.ServiceInstance, error)
}

func (m *mockDiscovery) Discover(ctx context.Context, name string) ([]*consul.ServiceInstance, error) {
	one, err := m.DiscoverOne(ctx, name)
	if err != nil {
		return nil, err
	}
	return []*consul.ServiceInstance{one}, nil
}

func (m *mockDiscovery) DiscoverOne(ctx context.Context, name string) (*consul.ServiceInstance, error) {
	return m.discoverOneFunc(ctx, name)
}

func TestStatic(t *testing.T) {
	base, err := NewStatic("http://localhost:8080/").BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api/v1", base)
}

func TestConsul(t *testing.T) {
	d := &mockDiscovery{discoverOneFunc: func(_ context.Context, name string) (*consul.ServiceInstance, error) {
		assert.Equal(t, "billing-api", name)
		return &consul.ServiceInstance{Address: "10.0.0.3", Port: 9000}, nil
	}}

	base, err := NewConsul(d, "billing-api").BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.3:9000/api/v1", base)
}

func TestConsul_Error(t *testing.T) {
	d := &mockDiscovery{discoverOneFunc: func(context.Context, string) (*consul.ServiceInstance, error) {
		return nil, consul.ErrNoInstances
	}}

	_, err := NewConsul(d, "billing-api").BaseURL(context.Background())
	assert.True(t, errors.Is(err, consul.ErrNoInstances))
}
