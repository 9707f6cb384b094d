package apiclient

import (
	"context"
	"net/http"
)

func (c *Client) Profile(ctx context.Context) (*User, error) {
	return one[User](ctx, c, http.MethodGet, "profile", nil)
}

func (c *Client) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*User, error) {
	return one[User](ctx, c, http.MethodPut, "profile", req)
}

func (c *Client) Organizations(ctx context.Context) ([]Organization, error) {
	return list[Organization](ctx, c, "organizations")
}

func (c *Client) CreateOrganization(ctx context.Context, req OrganizationRequest) (*Organization, error) {
	return one[Organization](ctx, c, http.MethodPost, "organizations", req)
}

func (c *Client) Organization(ctx context.Context, id string) (*Organization, error) {
	return one[Organization](ctx, c, http.MethodGet, "organizations/"+segment(id), nil)
}

func (c *Client) UpdateOrganization(ctx context.Context, id string, req OrganizationRequest) (*Organization, error) {
	return one[Organization](ctx, c, http.MethodPut, "organizations/"+segment(id), req)
}

// Users lists every user. Admin only.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	return list[User](ctx, c, "admin/users")
}

// AllOrganizations lists every organization. Admin only.
func (c *Client) AllOrganizations(ctx context.Context) ([]Organization, error) {
	return list[Organization](ctx, c, "admin/organizations")
}

// AllSubscriptions lists every subscription. Admin only.
func (c *Client) AllSubscriptions(ctx context.Context) ([]Subscription, error) {
	return list[Subscription](ctx, c, "admin/subscriptions")
}

// Analytics returns the admin analytics document as-is.
func (c *Client) Analytics(ctx context.Context) (map[string]any, error) {
	resp, err := c.Do(ctx, http.MethodGet, "admin/analytics", nil)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := resp.DecodeData(&out); err != nil {
		return nil, err
	}
	return out, nil
}
