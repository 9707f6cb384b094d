package actions

import (
	"context"
	"net/http"

	"portal/internal/session"
)

// Profile returns users/profile.
func (s *Service) Profile(ctx context.Context, jar *session.Cookies) Result {
	return s.run(ctx, jar, call{
		name:     "get_profile",
		method:   http.MethodGet,
		endpoint: "users/profile",
		fallback: "Failed to get user profile",
	})
}

// UpdateProfile sends the non-empty profile fields to users/profile.
func (s *Service) UpdateProfile(ctx context.Context, jar *session.Cookies, form Form) Result {
	p := newPayload(form).
		String("first_name").
		String("last_name").
		String("email").
		String("phone").
		String("avatar_url").
		String("timezone").
		String("language").
		JSON("metadata")
	return s.submit(ctx, jar, call{
		name:     "update_profile",
		method:   http.MethodPut,
		endpoint: "users/profile",
		fallback: "Failed to update profile",
		success:  "Profile updated successfully",
	}, p)
}

// Organization returns the caller's current organization.
func (s *Service) Organization(ctx context.Context, jar *session.Cookies) Result {
	return s.run(ctx, jar, call{
		name:     "get_organization",
		method:   http.MethodGet,
		endpoint: "organizations/current",
		fallback: "Failed to get organization",
	})
}

// UpdateOrganization sends the non-empty organization fields to organizations/current.
func (s *Service) UpdateOrganization(ctx context.Context, jar *session.Cookies, form Form) Result {
	p := newPayload(form).
		String("name").
		String("slug").
		String("description").
		String("website").
		String("phone").
		String("email").
		String("logo_url").
		JSON("settings")
	return s.submit(ctx, jar, call{
		name:     "update_organization",
		method:   http.MethodPut,
		endpoint: "organizations/current",
		fallback: "Failed to update organization",
		success:  "Organization updated successfully",
	}, p)
}

// Members lists members of organizationID, or of the current organization when empty.
func (s *Service) Members(ctx context.Context, jar *session.Cookies, organizationID string) Result {
	endpoint := "organizations/current/members"
	if organizationID != "" {
		endpoint = "organizations/" + segment(organizationID) + "/members"
	}
	return s.run(ctx, jar, call{
		name:     "get_members",
		method:   http.MethodGet,
		endpoint: endpoint,
		fallback: "Failed to get organization members",
	})
}

// InviteMember invites email with role into organization_id.
func (s *Service) InviteMember(ctx context.Context, jar *session.Cookies, form Form) Result {
	p := newPayload(form).Required("email").Required("role").Required("organization_id")
	return s.submit(ctx, jar, call{
		name:     "invite_member",
		method:   http.MethodPost,
		endpoint: "organizations/members/invite",
		fallback: "Failed to invite member",
		success:  "Member invited successfully",
	}, p)
}

// UpdateMemberRole changes a member's role and active flag.
func (s *Service) UpdateMemberRole(ctx context.Context, jar *session.Cookies, memberID string, form Form) Result {
	p := newPayload(form).Required("role").True("is_active")
	return s.submit(ctx, jar, call{
		name:     "update_member_role",
		method:   http.MethodPut,
		endpoint: "organizations/members/" + segment(memberID),
		fallback: "Failed to update member role",
		success:  "Member role updated successfully",
	}, p)
}

// RemoveMember removes a member from the organization.
func (s *Service) RemoveMember(ctx context.Context, jar *session.Cookies, memberID string) Result {
	return s.run(ctx, jar, call{
		name:     "remove_member",
		method:   http.MethodDelete,
		endpoint: "organizations/members/" + segment(memberID),
		fallback: "Failed to remove member",
		success:  "Member removed successfully",
	})
}
