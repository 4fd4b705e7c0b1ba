package microsoft

import (
	"net/http"

	"github.com/n1ntencube/CubicLauncher/logging"
)

const (
	DefaultClientID      = "d00dadd7-9890-45f1-b00f-93e2f9d7b52f"
	DefaultScope         = "XboxLive.signin offline_access"
	DefaultDeviceCodeURL = "https://login.microsoftonline.com/consumers/oauth2/v2.0/devicecode"
	DefaultTokenURL      = "https://login.microsoftonline.com/consumers/oauth2/v2.0/token"
	DefaultAuthorizeURL  = "https://login.microsoftonline.com/consumers/oauth2/v2.0/authorize"

	deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"
)

type Config struct {
	ClientID      string
	Scope         string
	DeviceCodeURL string
	TokenURL      string
	AuthorizeURL  string
	RedirectURL   string
	HTTPClient    *http.Client
	Logger        logging.Logger
}

func (c *Config) setDefaults() {
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}

	if c.Scope == "" {
		c.Scope = DefaultScope
	}

	if c.DeviceCodeURL == "" {
		c.DeviceCodeURL = DefaultDeviceCodeURL
	}

	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}

	if c.AuthorizeURL == "" {
		c.AuthorizeURL = DefaultAuthorizeURL
	}

	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}

	c.Logger = logging.With(c.Logger)
}
