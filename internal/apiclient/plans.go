package apiclient

import (
	"context"
	"net/http"
)

// Plans returns one page of plans.
func (c *Client) Plans(ctx context.Context, page, limit int) (*Page[Plan], error) {
	return paged[Plan](ctx, c, "plans", page, limit)
}

func (c *Client) ActivePlans(ctx context.Context) ([]Plan, error) {
	return list[Plan](ctx, c, "plans/active")
}

func (c *Client) PopularPlans(ctx context.Context) ([]Plan, error) {
	return list[Plan](ctx, c, "plans/popular")
}

func (c *Client) Plan(ctx context.Context, id string) (*Plan, error) {
	return one[Plan](ctx, c, http.MethodGet, "plans/"+segment(id), nil)
}

func (c *Client) PlanBySlug(ctx context.Context, slug string) (*Plan, error) {
	return one[Plan](ctx, c, http.MethodGet, "plans/slug/"+segment(slug), nil)
}

func (c *Client) CreatePlan(ctx context.Context, req CreatePlanRequest) (*Plan, error) {
	return one[Plan](ctx, c, http.MethodPost, "plans", req)
}

func (c *Client) UpdatePlan(ctx context.Context, id string, req UpdatePlanRequest) (*Plan, error) {
	return one[Plan](ctx, c, http.MethodPut, "plans/"+segment(id), req)
}

func (c *Client) DeletePlan(ctx context.Context, id string) error {
	_, err := c.Do(ctx, http.MethodDelete, "plans/"+segment(id), nil)
	return err
}

func (c *Client) ActivatePlan(ctx context.Context, id string) (*Plan, error) {
	return one[Plan](ctx, c, http.MethodPost, "plans/"+segment(id)+"/activate", nil)
}

func (c *Client) DeactivatePlan(ctx context.Context, id string) (*Plan, error) {
	return one[Plan](ctx, c, http.MethodPost, "plans/"+segment(id)+"/deactivate", nil)
}
