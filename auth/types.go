package auth

import "time"

// DeviceAuthorization is issued once per device-code login and consumed by
// exactly one poll loop.
type DeviceAuthorization struct {
	DeviceCode      string        `json:"device_code"`
	UserCode        string        `json:"user_code"`
	VerificationURI string        `json:"verification_uri"`
	Message         string        `json:"message,omitempty"`
	Interval        time.Duration `json:"-"`
	ExpiresIn       time.Duration `json:"-"`
	IssuedAt        time.Time     `json:"-"`
}

func (d DeviceAuthorization) ExpiresAt() time.Time {
	return d.IssuedAt.Add(d.ExpiresIn)
}

type TokenSet struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

func (t TokenSet) Clone() TokenSet {
	return TokenSet{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresAt:    t.ExpiresAt,
	}
}

// FederatedIdentityToken is the user token returned by the first federation hop.
type FederatedIdentityToken struct {
	Token    string
	UserHash string
	NotAfter time.Time
}

// SecurityToken is scoped to the game service relying party.
type SecurityToken struct {
	Token    string
	UserHash string
	NotAfter time.Time
}

type GameAuthorization struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	Username    string    `json:"username,omitempty"`
	ExpiresIn   int64     `json:"expires_in,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	Roles       []string  `json:"roles,omitempty"`
}

func (g GameAuthorization) Expired(now time.Time) bool {
	if g.ExpiresAt.IsZero() {
		return false
	}

	return !now.Before(g.ExpiresAt)
}

type GameProfile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Identity is the outcome of a successful login.
type Identity struct {
	Profile       GameProfile       `json:"profile"`
	Authorization GameAuthorization `json:"mc"`
}
