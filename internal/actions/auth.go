package actions

import (
	"context"
	"errors"
	"net/http"

	"portal/internal/backend"
	"portal/internal/events"
	"portal/internal/session"
)

// authData is the data of a successful login, register or refresh reply.
// Some backends answer with token, others with access_token.
type authData struct {
	Token        string                `json:"token"`
	AccessToken  string                `json:"access_token"`
	RefreshToken string                `json:"refresh_token"`
	User         *session.User         `json:"user"`
	Organization *session.Organization `json:"organization"`
}

func (d authData) accessToken() string {
	if d.Token != "" {
		return d.Token
	}
	return d.AccessToken
}

var errMissingToken = errors.New("auth reply carries no access token")

// Login forwards email and password to auth/login and establishes the session on success.
func (s *Service) Login(ctx context.Context, jar *session.Cookies, form Form) Result {
	p := newPayload(form).Required("email").Required("password")
	email, _ := form.GetPostForm("email")
	return s.authenticate(ctx, jar, "login", "auth/login", "Login failed", p, email, events.LoginSucceeded, events.LoginFailed)
}

// Register forwards the signup form to auth/register and establishes the session on success.
func (s *Service) Register(ctx context.Context, jar *session.Cookies, form Form) Result {
	p := newPayload(form).
		Required("email").
		Required("password").
		Required("first_name").
		Required("last_name").
		String("organization_name")
	email, _ := form.GetPostForm("email")
	return s.authenticate(ctx, jar, "register", "auth/register", "Registration failed", p, email, events.RegisterSucceeded, events.RegisterFailed)
}

func (s *Service) authenticate(ctx context.Context, jar *session.Cookies, name, endpoint, fallback string, p *payload, email string, okType, failType events.Type) Result {
	body, verr := p.Build()
	if verr != nil {
		return s.fail(ctx, name, verr)
	}

	resp, err := s.backend.Do(ctx, http.MethodPost, endpoint, "", body)
	if err != nil {
		return s.fail(ctx, name, unexpected(err))
	}
	if !resp.OK() {
		e := rejected(resp, fallback)
		ev := events.NewAuthEvent(failType, email)
		ev.Reason = e.Public
		s.publish(ctx, ev)
		return s.fail(ctx, name, e)
	}

	rec, err := s.establish(jar, resp)
	if err != nil {
		return s.fail(ctx, name, unexpected(err))
	}

	ev := events.NewAuthEvent(okType, rec.User.Email)
	ev.UserID = rec.User.ID
	if rec.Organization != nil {
		ev.OrganizationID = rec.Organization.ID
	}
	s.publish(ctx, ev)

	return ok(envelopeData(resp), "")
}

// establish maps an auth reply to a session record, stores it and sets the bearer cookie.
func (s *Service) establish(jar *session.Cookies, resp *backend.Response) (*session.Record, error) {
	var data authData
	if err := resp.DecodeData(&data); err != nil {
		return nil, err
	}
	token := data.accessToken()
	if token == "" {
		return nil, errMissingToken
	}

	rec := session.Record{
		AccessToken:  token,
		RefreshToken: data.RefreshToken,
		ExpiresAt:    s.sessions.Now().Add(s.sessions.TTL()).UnixMilli(),
	}
	if data.User != nil {
		rec.User = *data.User
	}
	if data.Organization != nil {
		org := *data.Organization
		rec.Organization = &org
	}

	if err := s.sessions.Create(jar, rec); err != nil {
		return nil, err
	}
	s.sessions.SetBearerCookie(jar, token)
	return &rec, nil
}

// Logout clears the session unconditionally, then tells the backend on a best-effort basis.
func (s *Service) Logout(ctx context.Context, jar *session.Cookies) Result {
	token, hasToken := s.sessions.BearerToken(ctx, jar)
	var ev events.AuthEvent
	if rec := s.sessions.Get(ctx, jar); rec != nil {
		ev = events.NewAuthEvent(events.LoggedOut, rec.User.Email)
		ev.UserID = rec.User.ID
	} else {
		ev = events.NewAuthEvent(events.LoggedOut, "")
	}

	s.sessions.Delete(ctx, jar)

	if hasToken {
		if _, err := s.backend.Do(ctx, http.MethodPost, "auth/logout", token, nil); err != nil {
			s.logger.DebugContext(ctx, "backend logout failed", "error", err)
		}
	}
	s.publish(ctx, ev)

	return ok(nil, "Logged out successfully")
}

// CurrentUser returns auth/me for the caller's token.
func (s *Service) CurrentUser(ctx context.Context, jar *session.Cookies) Result {
	return s.run(ctx, jar, call{
		name:     "current_user",
		method:   http.MethodGet,
		endpoint: "auth/me",
		fallback: "Failed to get user data",
	})
}

// RefreshSession exchanges the session refresh token for a new pair. A backend rejection
// deletes the session; transport failures leave it untouched.
func (s *Service) RefreshSession(ctx context.Context, jar *session.Cookies) Result {
	const name = "refresh_session"

	rec := s.sessions.Get(ctx, jar)
	if rec == nil || rec.RefreshToken == "" {
		return s.fail(ctx, name, &Error{Kind: KindAuth, Public: "No refresh token found"})
	}

	resp, err := s.backend.Do(ctx, http.MethodPost, "auth/refresh", "", map[string]any{"refresh_token": rec.RefreshToken})
	if err != nil {
		return s.fail(ctx, name, unexpected(err))
	}
	if !resp.OK() {
		s.sessions.Delete(ctx, jar)
		ev := events.NewAuthEvent(events.RefreshFailed, rec.User.Email)
		ev.UserID = rec.User.ID
		s.publish(ctx, ev)

		e := rejected(resp, "Failed to refresh session")
		e.Kind = KindAuth
		return s.fail(ctx, name, e)
	}

	var data authData
	if err := resp.DecodeData(&data); err != nil {
		return s.fail(ctx, name, unexpected(err))
	}
	access := data.accessToken()
	if access == "" {
		return s.fail(ctx, name, unexpected(errMissingToken))
	}

	if err := s.ApplyTokens(ctx, jar, access, data.RefreshToken); err != nil {
		return s.fail(ctx, name, unexpected(err))
	}

	ev := events.NewAuthEvent(events.RefreshSucceeded, rec.User.Email)
	ev.UserID = rec.User.ID
	s.publish(ctx, ev)

	return ok(map[string]any{"expiresAt": s.sessions.Now().Add(s.sessions.TTL()).UnixMilli()}, "Session refreshed")
}

// ApplyTokens writes a refreshed token pair into the session and the bearer cookie.
// An empty refresh keeps the current refresh token.
func (s *Service) ApplyTokens(ctx context.Context, jar *session.Cookies, access, refresh string) error {
	expiresAt := s.sessions.Now().Add(s.sessions.TTL()).UnixMilli()
	patch := session.Patch{AccessToken: &access, ExpiresAt: &expiresAt}
	if refresh != "" {
		patch.RefreshToken = &refresh
	}
	if err := s.sessions.Update(ctx, jar, patch); err != nil {
		return err
	}
	s.sessions.SetBearerCookie(jar, access)
	return nil
}

// ChangePassword sends current_password and new_password to users/change-password.
func (s *Service) ChangePassword(ctx context.Context, jar *session.Cookies, form Form) Result {
	p := newPayload(form).Required("current_password").Required("new_password")
	return s.submit(ctx, jar, call{
		name:     "change_password",
		method:   http.MethodPut,
		endpoint: "users/change-password",
		fallback: "Failed to change password",
		success:  "Password changed successfully",
		dropData: true,
	}, p)
}
