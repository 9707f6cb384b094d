package session

// User is the identity snapshot stored in the session.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role,omitempty"`
	IsActive  *bool  `json:"is_active,omitempty"`
}

// Organization is the tenant the user acts for.
type Organization struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Record is the session payload. ExpiresAt is epoch milliseconds.
type Record struct {
	User         User          `json:"user"`
	Organization *Organization `json:"organization,omitempty"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken,omitempty"`
	ExpiresAt    int64         `json:"expiresAt"`
}

// Patch is a shallow update for Record; nil fields are left untouched.
type Patch struct {
	User         *User
	Organization *Organization
	AccessToken  *string
	RefreshToken *string
	ExpiresAt    *int64
}

func (r Record) merge(p Patch) Record {
	if p.User != nil {
		r.User = *p.User
	}
	if p.Organization != nil {
		org := *p.Organization
		r.Organization = &org
	}
	if p.AccessToken != nil {
		r.AccessToken = *p.AccessToken
	}
	if p.RefreshToken != nil {
		r.RefreshToken = *p.RefreshToken
	}
	if p.ExpiresAt != nil {
		r.ExpiresAt = *p.ExpiresAt
	}
	return r
}
