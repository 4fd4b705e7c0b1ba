package minecraft

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/n1ntencube/CubicLauncher/auth"
	transporthttp "github.com/n1ntencube/CubicLauncher/transport/http"
)

const (
	DefaultLoginURL   = "https://api.minecraftservices.com/authentication/login_with_xbox"
	DefaultProfileURL = "https://api.minecraftservices.com/minecraft/profile"
)

type Config struct {
	LoginURL   string
	ProfileURL string
	HTTPClient *http.Client
}

// Client covers the game service: login with the XSTS token and the
// profile lookup that proves entitlement.
type Client struct {
	cfg  Config
	http *transporthttp.Client
	now  func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.LoginURL == "" {
		cfg.LoginURL = DefaultLoginURL
	}

	if cfg.ProfileURL == "" {
		cfg.ProfileURL = DefaultProfileURL
	}

	return &Client{
		cfg:  cfg,
		http: transporthttp.NewClient(cfg.HTTPClient, transporthttp.Config{}),
		now:  time.Now,
	}
}

type loginResponse struct {
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int64    `json:"expires_in"`
}

type profileResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IdentityToken composes the bearer string the game login expects.
func IdentityToken(sec auth.SecurityToken) string {
	return fmt.Sprintf("XBL3.0 x=%s;%s", sec.UserHash, sec.Token)
}

func (c *Client) Login(ctx context.Context, sec auth.SecurityToken) (auth.GameAuthorization, error) {
	body := map[string]string{"identityToken": IdentityToken(sec)}

	resp, err := c.http.PostJSON(ctx, c.cfg.LoginURL, body, nil)
	if err != nil {
		return auth.GameAuthorization{}, &auth.NetworkError{Hop: auth.HopGameLogin, Err: err}
	}

	if !resp.OK() {
		return auth.GameAuthorization{}, &auth.ProviderError{Hop: auth.HopGameLogin, Status: resp.StatusCode, Body: string(resp.Body)}
	}

	var lr loginResponse
	if err := resp.DecodeJSON(&lr); err != nil || lr.AccessToken == "" {
		return auth.GameAuthorization{}, &auth.ProviderError{Hop: auth.HopGameLogin, Status: resp.StatusCode, Body: string(resp.Body), Reason: "missing access_token"}
	}

	ga := auth.GameAuthorization{
		AccessToken: lr.AccessToken,
		TokenType:   lr.TokenType,
		Username:    lr.Username,
		ExpiresIn:   lr.ExpiresIn,
		Roles:       lr.Roles,
	}

	switch {
	case lr.ExpiresIn > 0:
		ga.ExpiresAt = c.now().Add(time.Duration(lr.ExpiresIn) * time.Second).UTC()
	default:
		ga.ExpiresAt = tokenExpiry(lr.AccessToken)
	}

	return ga, nil
}

// Profile fetches the player profile. A 404 means the account is valid but
// does not own the game and is reported as auth.ErrNotEntitled.
func (c *Client) Profile(ctx context.Context, ga auth.GameAuthorization) (auth.GameProfile, error) {
	resp, err := c.http.GetJSON(ctx, c.cfg.ProfileURL, transporthttp.StaticToken(ga.AccessToken))
	if err != nil {
		return auth.GameProfile{}, &auth.NetworkError{Hop: auth.HopProfile, Err: err}
	}

	if resp.StatusCode == http.StatusNotFound {
		return auth.GameProfile{}, auth.ErrNotEntitled
	}

	if !resp.OK() {
		return auth.GameProfile{}, &auth.ProviderError{Hop: auth.HopProfile, Status: resp.StatusCode, Body: string(resp.Body)}
	}

	var pr profileResponse
	if err := resp.DecodeJSON(&pr); err != nil || pr.ID == "" {
		return auth.GameProfile{}, &auth.ProviderError{Hop: auth.HopProfile, Status: resp.StatusCode, Body: string(resp.Body), Reason: "missing profile id"}
	}

	return auth.GameProfile{ID: pr.ID, Name: pr.Name}, nil
}

// tokenExpiry reads exp from the game token without verifying the signature.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}

	return exp.Time.UTC()
}
