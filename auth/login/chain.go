package login

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/n1ntencube/CubicLauncher/auth"
	"github.com/n1ntencube/CubicLauncher/auth/callback"
	"github.com/n1ntencube/CubicLauncher/events"
	"github.com/n1ntencube/CubicLauncher/logging"
)

type IdentityProvider interface {
	RequestDeviceCode(ctx context.Context) (auth.DeviceAuthorization, error)
	PollForGrant(ctx context.Context, da auth.DeviceAuthorization) (auth.TokenSet, error)
	AuthCodeURL(state, verifier string) string
	ExchangeCode(ctx context.Context, code, verifier string) (auth.TokenSet, error)
}

type Federation interface {
	Authenticate(ctx context.Context, tokens auth.TokenSet) (auth.FederatedIdentityToken, error)
	Authorize(ctx context.Context, fed auth.FederatedIdentityToken) (auth.SecurityToken, error)
}

type GameService interface {
	Login(ctx context.Context, sec auth.SecurityToken) (auth.GameAuthorization, error)
	Profile(ctx context.Context, ga auth.GameAuthorization) (auth.GameProfile, error)
}

type Config struct {
	Identity   IdentityProvider
	Federation Federation
	Game       GameService

	Callback    callback.Config
	OpenBrowser func(url string) error

	Events events.Emitter
	Logger logging.Logger
}

// Chain turns a user grant into a game identity. Every hop runs in order and
// the first failure ends the login; nothing is cached between calls.
type Chain struct {
	cfg Config
	log logging.Logger
}

func NewChain(cfg Config) (*Chain, error) {
	if cfg.Identity == nil || cfg.Federation == nil || cfg.Game == nil {
		return nil, fmt.Errorf("auth/login: identity, federation and game clients are required")
	}

	if cfg.OpenBrowser == nil {
		cfg.OpenBrowser = OpenURL
	}

	if cfg.Events == nil {
		cfg.Events = events.Discard
	}

	return &Chain{cfg: cfg, log: logging.With(cfg.Logger)}, nil
}

// LoginWithDeviceCode runs the device-code variant. prompt is called once
// with the code the user has to enter; it must not block.
func (c *Chain) LoginWithDeviceCode(ctx context.Context, prompt func(auth.DeviceAuthorization)) (auth.Identity, error) {
	da, err := c.cfg.Identity.RequestDeviceCode(ctx)
	if err != nil {
		return c.fail(err)
	}

	_ = c.cfg.Events.Emit(events.LoginCodeIssued{
		Base:            events.Now(),
		UserCode:        da.UserCode,
		VerificationURI: da.VerificationURI,
		ExpiresAt:       da.ExpiresAt(),
	})

	if prompt != nil {
		prompt(da)
	}

	tokens, err := c.cfg.Identity.PollForGrant(ctx, da)
	if err != nil {
		return c.fail(err)
	}

	return c.Complete(ctx, tokens)
}

// LoginWithBrowser runs the authorization-code variant through the loopback
// listener. The listener is bound before the browser is opened.
func (c *Chain) LoginWithBrowser(ctx context.Context) (auth.Identity, error) {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	ln, err := callback.Listen(c.cfg.Callback, state)
	if err != nil {
		return c.fail(err)
	}
	defer ln.Close()

	target := c.cfg.Identity.AuthCodeURL(state, verifier)
	c.log.Info("opening browser for login", logging.F("redirect", ln.RedirectURL()))

	if err := c.cfg.OpenBrowser(target); err != nil {
		c.log.Warn("could not open browser; open the login url manually", logging.F("url", target), logging.Err(err))
	}

	code, err := ln.Wait(ctx)
	if err != nil {
		return c.fail(err)
	}

	tokens, err := c.cfg.Identity.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return c.fail(err)
	}

	return c.Complete(ctx, tokens)
}

// Complete runs the federation, game login and profile hops.
func (c *Chain) Complete(ctx context.Context, tokens auth.TokenSet) (auth.Identity, error) {
	fed, err := c.cfg.Federation.Authenticate(ctx, tokens)
	if err != nil {
		return c.fail(err)
	}

	sec, err := c.cfg.Federation.Authorize(ctx, fed)
	if err != nil {
		return c.fail(err)
	}

	ga, err := c.cfg.Game.Login(ctx, sec)
	if err != nil {
		return c.fail(err)
	}

	profile, err := c.cfg.Game.Profile(ctx, ga)
	if err != nil {
		return c.fail(err)
	}

	c.log.Info("login complete", logging.F("profile", profile.Name))
	_ = c.cfg.Events.Emit(events.LoginSucceeded{Base: events.Now(), ProfileID: profile.ID, ProfileName: profile.Name})

	return auth.Identity{Profile: profile, Authorization: ga}, nil
}

func (c *Chain) fail(err error) (auth.Identity, error) {
	c.log.Warn("login failed", logging.Err(err))
	_ = c.cfg.Events.Emit(events.LoginFailed{Base: events.Now(), Err: err})

	return auth.Identity{}, err
}
