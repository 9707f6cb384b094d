package actions

import (
	"context"
	"net/http"

	"portal/internal/session"
)

func (s *Service) PaymentMethods(ctx context.Context, jar *session.Cookies) Result {
	return s.run(ctx, jar, call{
		name:     "get_payment_methods",
		method:   http.MethodGet,
		endpoint: "payment-methods",
		fallback: "Failed to get payment methods",
	})
}

// AddPaymentMethod registers a payment method. provider defaults to stripe and
// holder_name falls back to the legacy cardholder_name field.
func (s *Service) AddPaymentMethod(ctx context.Context, jar *session.Cookies, form Form) Result {
	p := newPayload(form).
		Required("organization_id").
		Required("type").
		StringOr("provider", "stripe").
		String("provider_id").
		String("last4").
		String("brand").
		Int("expiry_month").
		Int("expiry_year").
		FirstOf("holder_name", "cardholder_name").
		True("is_default").
		NotFalse("is_active").
		String("card_number").
		String("cvv").
		String("cardholder_name")
	return s.submit(ctx, jar, call{
		name:     "add_payment_method",
		method:   http.MethodPost,
		endpoint: "payment-methods",
		fallback: "Failed to add payment method",
		success:  "Payment method added successfully",
	}, p)
}

func (s *Service) UpdatePaymentMethod(ctx context.Context, jar *session.Cookies, id string, form Form) Result {
	p := newPayload(form).String("cardholder_name").True("is_default")
	return s.submit(ctx, jar, call{
		name:     "update_payment_method",
		method:   http.MethodPut,
		endpoint: "payment-methods/" + segment(id),
		fallback: "Failed to update payment method",
		success:  "Payment method updated successfully",
	}, p)
}

func (s *Service) DeletePaymentMethod(ctx context.Context, jar *session.Cookies, id string) Result {
	return s.run(ctx, jar, call{
		name:     "delete_payment_method",
		method:   http.MethodDelete,
		endpoint: "payment-methods/" + segment(id),
		fallback: "Failed to delete payment method",
		success:  "Payment method deleted successfully",
		dropData: true,
	})
}

func (s *Service) BillingAddress(ctx context.Context, jar *session.Cookies) Result {
	return s.run(ctx, jar, call{
		name:     "get_billing_address",
		method:   http.MethodGet,
		endpoint: "billing-address",
		fallback: "Failed to get billing address",
	})
}

// UpdateBillingAddress replaces the billing address. address_line1 falls back to street_address.
func (s *Service) UpdateBillingAddress(ctx context.Context, jar *session.Cookies, form Form) Result {
	p := newPayload(form).
		Required("organization_id").
		String("company_name").
		Required("contact_name").
		RequiredFirstOf("address_line1", "street_address").
		String("address_line2").
		Required("city").
		String("state").
		Required("postal_code").
		Required("country").
		String("tax_id").
		True("is_default").
		String("street_address")
	return s.submit(ctx, jar, call{
		name:     "update_billing_address",
		method:   http.MethodPut,
		endpoint: "billing-address",
		fallback: "Failed to update billing address",
		success:  "Billing address updated successfully",
	}, p)
}

func (s *Service) BillingHistory(ctx context.Context, jar *session.Cookies) Result {
	return s.run(ctx, jar, call{
		name:     "get_billing_history",
		method:   http.MethodGet,
		endpoint: "billing/history",
		fallback: "Failed to get billing history",
	})
}
