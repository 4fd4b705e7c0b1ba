package xbox

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/n1ntencube/CubicLauncher/auth"
	transporthttp "github.com/n1ntencube/CubicLauncher/transport/http"
)

const (
	DefaultUserAuthenticateURL = "https://user.auth.xboxlive.com/user/authenticate"
	DefaultXSTSAuthorizeURL    = "https://xsts.auth.xboxlive.com/xsts/authorize"
	DefaultRelyingParty        = "rp://api.minecraftservices.com/"
)

type Config struct {
	UserAuthenticateURL string
	XSTSAuthorizeURL    string
	RelyingParty        string
	HTTPClient          *http.Client
}

// Client performs the two federation hops.
type Client struct {
	cfg  Config
	http *transporthttp.Client
}

func NewClient(cfg Config) *Client {
	if cfg.UserAuthenticateURL == "" {
		cfg.UserAuthenticateURL = DefaultUserAuthenticateURL
	}

	if cfg.XSTSAuthorizeURL == "" {
		cfg.XSTSAuthorizeURL = DefaultXSTSAuthorizeURL
	}

	if cfg.RelyingParty == "" {
		cfg.RelyingParty = DefaultRelyingParty
	}

	return &Client{cfg: cfg, http: transporthttp.NewClient(cfg.HTTPClient, transporthttp.Config{})}
}

type userAuthenticateRequest struct {
	Properties   userProperties `json:"Properties"`
	RelyingParty string         `json:"RelyingParty"`
	TokenType    string         `json:"TokenType"`
}

type userProperties struct {
	AuthMethod string `json:"AuthMethod"`
	SiteName   string `json:"SiteName"`
	RpsTicket  string `json:"RpsTicket"`
}

type xstsRequest struct {
	Properties   xstsProperties `json:"Properties"`
	RelyingParty string         `json:"RelyingParty"`
	TokenType    string         `json:"TokenType"`
}

type xstsProperties struct {
	SandboxID  string   `json:"SandboxId"`
	UserTokens []string `json:"UserTokens"`
}

type tokenResponse struct {
	Token         string    `json:"Token"`
	NotAfter      time.Time `json:"NotAfter"`
	DisplayClaims struct {
		Xui []struct {
			Uhs string `json:"uhs"`
		} `json:"xui"`
	} `json:"DisplayClaims"`
}

func (r tokenResponse) userHash() string {
	for _, claim := range r.DisplayClaims.Xui {
		if claim.Uhs != "" {
			return claim.Uhs
		}
	}

	return ""
}

// xstsError is the body XSTS returns with 401 for accounts it refuses
// (no Xbox profile, child account, region ban).
type xstsError struct {
	XErr     int64  `json:"XErr"`
	Message  string `json:"Message"`
	Redirect string `json:"Redirect"`
}

// Authenticate exchanges an identity access token for a user token and the
// user hash that every later hop needs.
func (c *Client) Authenticate(ctx context.Context, tokens auth.TokenSet) (auth.FederatedIdentityToken, error) {
	body := userAuthenticateRequest{
		Properties: userProperties{
			AuthMethod: "RPS",
			SiteName:   "user.auth.xboxlive.com",
			RpsTicket:  "d=" + tokens.AccessToken,
		},
		RelyingParty: "http://auth.xboxlive.com",
		TokenType:    "JWT",
	}

	resp, err := c.http.PostJSON(ctx, c.cfg.UserAuthenticateURL, body, nil)
	if err != nil {
		return auth.FederatedIdentityToken{}, &auth.NetworkError{Hop: auth.HopXBL, Err: err}
	}

	parsed, err := decode(auth.HopXBL, resp)
	if err != nil {
		return auth.FederatedIdentityToken{}, err
	}

	hash := parsed.userHash()
	if parsed.Token == "" || hash == "" {
		return auth.FederatedIdentityToken{}, &auth.ProviderError{Hop: auth.HopXBL, Status: resp.StatusCode, Body: string(resp.Body), Reason: "missing token or user hash"}
	}

	return auth.FederatedIdentityToken{Token: parsed.Token, UserHash: hash, NotAfter: parsed.NotAfter}, nil
}

// Authorize exchanges the user token for an XSTS token scoped to the game API.
func (c *Client) Authorize(ctx context.Context, fed auth.FederatedIdentityToken) (auth.SecurityToken, error) {
	body := xstsRequest{
		Properties: xstsProperties{
			SandboxID:  "RETAIL",
			UserTokens: []string{fed.Token},
		},
		RelyingParty: c.cfg.RelyingParty,
		TokenType:    "JWT",
	}

	resp, err := c.http.PostJSON(ctx, c.cfg.XSTSAuthorizeURL, body, nil)
	if err != nil {
		return auth.SecurityToken{}, &auth.NetworkError{Hop: auth.HopXSTS, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		var xe xstsError
		if json.Unmarshal(resp.Body, &xe) == nil && xe.XErr != 0 {
			return auth.SecurityToken{}, &auth.AuthorizationDenied{Reason: xstsReason(xe.XErr), Description: xe.Message}
		}
	}

	parsed, err := decode(auth.HopXSTS, resp)
	if err != nil {
		return auth.SecurityToken{}, err
	}

	if parsed.Token == "" {
		return auth.SecurityToken{}, &auth.ProviderError{Hop: auth.HopXSTS, Status: resp.StatusCode, Body: string(resp.Body), Reason: "missing token"}
	}

	hash := parsed.userHash()
	if hash == "" {
		hash = fed.UserHash
	}

	return auth.SecurityToken{Token: parsed.Token, UserHash: hash, NotAfter: parsed.NotAfter}, nil
}

func decode(hop string, resp transporthttp.Response) (tokenResponse, error) {
	if !resp.OK() {
		return tokenResponse{}, &auth.ProviderError{Hop: hop, Status: resp.StatusCode, Body: string(resp.Body)}
	}

	var parsed tokenResponse
	if err := resp.DecodeJSON(&parsed); err != nil {
		return tokenResponse{}, &auth.ProviderError{Hop: hop, Status: resp.StatusCode, Body: string(resp.Body), Reason: "malformed response"}
	}

	return parsed, nil
}

func xstsReason(code int64) string {
	switch code {
	case 2148916233:
		return "no_xbox_account"
	case 2148916235:
		return "region_unavailable"
	case 2148916236, 2148916237:
		return "adult_verification_required"
	case 2148916238:
		return "child_account"
	default:
		return "xsts_denied"
	}
}
