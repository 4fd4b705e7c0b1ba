package microsoft

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/n1ntencube/CubicLauncher/auth"
	"github.com/n1ntencube/CubicLauncher/logging"
	transporthttp "github.com/n1ntencube/CubicLauncher/transport/http"
)

const (
	defaultPollInterval = 5 * time.Second
	slowDownIncrement   = 5 * time.Second
)

// Client talks to the identity endpoints: device-code issuance, the token
// endpoint and the authorize redirect.
type Client struct {
	cfg   Config
	http  *transporthttp.Client
	oauth *oauth2.Config
	log   logging.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

func NewClient(cfg Config) *Client {
	cfg.setDefaults()

	return &Client{
		cfg:  cfg,
		http: transporthttp.NewClient(cfg.HTTPClient, transporthttp.Config{}),
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				AuthURL:       cfg.AuthorizeURL,
				TokenURL:      cfg.TokenURL,
				DeviceAuthURL: cfg.DeviceCodeURL,
				AuthStyle:     oauth2.AuthStyleInParams,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      []string{cfg.Scope},
		},
		log:   cfg.Logger,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       any    `json:"expires_in"`
	Interval        any    `json:"interval"`
	Message         string `json:"message"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    any    `json:"expires_in"`
}

func (c *Client) RequestDeviceCode(ctx context.Context) (auth.DeviceAuthorization, error) {
	values := url.Values{}
	values.Set("client_id", c.cfg.ClientID)
	values.Set("scope", c.cfg.Scope)

	resp, err := c.http.PostForm(ctx, c.cfg.DeviceCodeURL, values)
	if err != nil {
		return auth.DeviceAuthorization{}, &auth.NetworkError{Hop: auth.HopDeviceCode, Err: err}
	}

	if !resp.OK() {
		return auth.DeviceAuthorization{}, &auth.ProviderError{Hop: auth.HopDeviceCode, Status: resp.StatusCode, Body: string(resp.Body)}
	}

	var dr deviceCodeResponse
	if err := json.Unmarshal(resp.Body, &dr); err != nil {
		return auth.DeviceAuthorization{}, &auth.ProviderError{Hop: auth.HopDeviceCode, Status: resp.StatusCode, Body: string(resp.Body), Reason: "malformed response"}
	}

	expiresIn, expErr := parseSeconds(dr.ExpiresIn)
	interval, _ := parseSeconds(dr.Interval)
	if dr.DeviceCode == "" || dr.UserCode == "" || expErr != nil || expiresIn <= 0 {
		return auth.DeviceAuthorization{}, &auth.ProviderError{Hop: auth.HopDeviceCode, Status: resp.StatusCode, Body: string(resp.Body), Reason: "missing device_code, user_code or expires_in"}
	}

	da := auth.DeviceAuthorization{
		DeviceCode:      dr.DeviceCode,
		UserCode:        dr.UserCode,
		VerificationURI: dr.VerificationURI,
		Message:         dr.Message,
		Interval:        time.Duration(interval) * time.Second,
		ExpiresIn:       time.Duration(expiresIn) * time.Second,
		IssuedAt:        c.now(),
	}

	c.log.Debug("device code issued", logging.F("expires_in", da.ExpiresIn), logging.F("interval", da.Interval))

	return da, nil
}

// PollForGrant polls the token endpoint until the user completes the device
// login. The spacing between requests starts at da.Interval and only ever
// grows (on slow_down). Polling ends at the expiry boundary without issuing a
// request past it, so at most ceil(expires/interval) requests are made.
func (c *Client) PollForGrant(ctx context.Context, da auth.DeviceAuthorization) (auth.TokenSet, error) {
	interval := da.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	start := c.now()
	issued := da.IssuedAt
	if issued.IsZero() {
		issued = start
	}
	deadline := issued.Add(da.ExpiresIn)

	values := url.Values{}
	values.Set("grant_type", deviceCodeGrantType)
	values.Set("client_id", c.cfg.ClientID)
	values.Set("device_code", da.DeviceCode)

	attempt := 0
	for {
		if !c.now().Before(deadline) {
			return auth.TokenSet{}, auth.ErrTimeout
		}

		attempt++
		resp, err := c.http.PostForm(ctx, c.cfg.TokenURL, values)
		if err != nil {
			if ctx.Err() != nil {
				return auth.TokenSet{}, ctx.Err()
			}

			return auth.TokenSet{}, &auth.NetworkError{Hop: auth.HopToken, Err: err}
		}

		if resp.OK() {
			tokens, parseErr := parseTokenResponse(resp.Body, c.now())
			if parseErr != nil {
				return auth.TokenSet{}, &auth.ProviderError{Hop: auth.HopToken, Status: resp.StatusCode, Body: string(resp.Body), Reason: parseErr.Error()}
			}

			c.log.Debug("device code granted", logging.F("attempts", attempt))
			return tokens, nil
		}

		outcome, pollErr := classifyPollError(resp.StatusCode, resp.Body)
		switch outcome {
		case pollFailed:
			return auth.TokenSet{}, pollErr
		case pollSlowDown:
			interval += slowDownIncrement
			c.log.Debug("token endpoint asked to slow down", logging.F("interval", interval))
		}

		remaining := deadline.Sub(c.now())
		if remaining <= interval {
			if !c.sleepContext(ctx, remaining) {
				return auth.TokenSet{}, ctx.Err()
			}

			return auth.TokenSet{}, auth.ErrTimeout
		}

		if !c.sleepContext(ctx, interval) {
			return auth.TokenSet{}, ctx.Err()
		}
	}
}

// AuthCodeURL builds the browser authorize URL. verifier is the PKCE code
// verifier later passed to ExchangeCode.
func (c *Client) AuthCodeURL(state, verifier string) string {
	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("prompt", "select_account")}
	if verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}

	return c.oauth.AuthCodeURL(state, opts...)
}

func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (auth.TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.cfg.HTTPClient)

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := c.oauth.Exchange(ctx, code, opts...)
	if err != nil {
		return auth.TokenSet{}, exchangeError(err)
	}

	if token.AccessToken == "" {
		return auth.TokenSet{}, &auth.ProviderError{Hop: auth.HopToken, Reason: "missing access_token"}
	}

	return auth.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.Expiry.UTC(),
	}, nil
}

func parseTokenResponse(raw []byte, now time.Time) (auth.TokenSet, error) {
	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return auth.TokenSet{}, err
	}

	if tr.AccessToken == "" {
		return auth.TokenSet{}, fmt.Errorf("missing access_token")
	}

	tokens := auth.TokenSet{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
	}

	if seconds, err := parseSeconds(tr.ExpiresIn); err == nil && seconds > 0 {
		tokens.ExpiresAt = now.Add(time.Duration(seconds) * time.Second).UTC()
	}

	return tokens, nil
}

func parseSeconds(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("auth/microsoft: value is missing")
	case float64:
		return int64(n), nil
	case string:
		if n == "" {
			return 0, fmt.Errorf("auth/microsoft: value is empty")
		}

		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("auth/microsoft: unsupported type %T", v)
	}
}

func (c *Client) sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	done := make(chan struct{})
	go func() {
		c.sleep(d)
		close(done)
	}()

	select {
	case <-ctx.Done():
		return false
	case <-done:
		return true
	}
}
