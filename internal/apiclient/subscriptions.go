package apiclient

import (
	"context"
	"net/http"
)

func (c *Client) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error) {
	return one[Subscription](ctx, c, http.MethodPost, "subscriptions", req)
}

func (c *Client) SubscriptionsByOrganization(ctx context.Context, organizationID string) ([]Subscription, error) {
	return list[Subscription](ctx, c, "subscriptions/organization/"+segment(organizationID))
}

// ActiveSubscription returns the organization's active subscription, or nil when there is none
// or it cannot be fetched.
func (c *Client) ActiveSubscription(ctx context.Context, organizationID string) *Subscription {
	sub, err := one[Subscription](ctx, c, http.MethodGet, "subscriptions/organization/"+segment(organizationID)+"/active", nil)
	if err != nil {
		c.logger.DebugContext(ctx, "no active subscription", "organization_id", organizationID, "error", err)
		return nil
	}
	return sub
}

func (c *Client) Subscription(ctx context.Context, id string) (*Subscription, error) {
	return one[Subscription](ctx, c, http.MethodGet, "subscriptions/"+segment(id), nil)
}

func (c *Client) CancelSubscription(ctx context.Context, id string) (*Subscription, error) {
	return one[Subscription](ctx, c, http.MethodPost, "subscriptions/"+segment(id)+"/cancel", nil)
}

func (c *Client) RenewSubscription(ctx context.Context, id string) (*Subscription, error) {
	return one[Subscription](ctx, c, http.MethodPost, "subscriptions/"+segment(id)+"/renew", nil)
}
