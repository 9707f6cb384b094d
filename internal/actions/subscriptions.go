package actions

import (
	"context"
	"net/http"

	"portal/internal/session"
)

// Subscriptions lists subscriptions, scoped to organizationID when set.
func (s *Service) Subscriptions(ctx context.Context, jar *session.Cookies, organizationID string) Result {
	endpoint := "subscriptions"
	if organizationID != "" {
		endpoint = "subscriptions/organization/" + segment(organizationID)
	}
	return s.run(ctx, jar, call{
		name:     "get_subscriptions",
		method:   http.MethodGet,
		endpoint: endpoint,
		fallback: "Failed to get subscriptions",
	})
}

func (s *Service) Subscription(ctx context.Context, jar *session.Cookies, id string) Result {
	return s.run(ctx, jar, call{
		name:     "get_subscription",
		method:   http.MethodGet,
		endpoint: "subscriptions/" + segment(id),
		fallback: "Failed to get subscription",
	})
}

func (s *Service) CreateSubscription(ctx context.Context, jar *session.Cookies, form Form) Result {
	p := newPayload(form).
		Required("organization_id").
		Required("plan_id").
		String("payment_method_id").
		String("billing_cycle").
		String("trial_ends_at").
		JSON("metadata")
	return s.submit(ctx, jar, call{
		name:     "create_subscription",
		method:   http.MethodPost,
		endpoint: "subscriptions",
		fallback: "Failed to create subscription",
		success:  "Subscription created successfully",
	}, p)
}

func (s *Service) UpdateSubscription(ctx context.Context, jar *session.Cookies, id string, form Form) Result {
	p := newPayload(form).
		String("plan_id").
		String("status").
		String("payment_method_id").
		String("billing_cycle").
		String("trial_ends_at").
		JSON("metadata")
	return s.submit(ctx, jar, call{
		name:     "update_subscription",
		method:   http.MethodPut,
		endpoint: "subscriptions/" + segment(id),
		fallback: "Failed to update subscription",
		success:  "Subscription updated successfully",
	}, p)
}

func (s *Service) CancelSubscription(ctx context.Context, jar *session.Cookies, id string) Result {
	return s.run(ctx, jar, call{
		name:     "cancel_subscription",
		method:   http.MethodPost,
		endpoint: "subscriptions/" + segment(id) + "/cancel",
		fallback: "Failed to cancel subscription",
		success:  "Subscription cancelled successfully",
	})
}

func (s *Service) Plans(ctx context.Context, jar *session.Cookies) Result {
	return s.run(ctx, jar, call{
		name:     "get_plans",
		method:   http.MethodGet,
		endpoint: "plans",
		fallback: "Failed to get plans",
	})
}

func (s *Service) Plan(ctx context.Context, jar *session.Cookies, id string) Result {
	return s.run(ctx, jar, call{
		name:     "get_plan",
		method:   http.MethodGet,
		endpoint: "plans/" + segment(id),
		fallback: "Failed to get plan",
	})
}
