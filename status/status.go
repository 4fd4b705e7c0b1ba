package status

import (
	"context"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/n1ntencube/CubicLauncher/internal/backoff"
	"github.com/n1ntencube/CubicLauncher/logging"
)

const (
	DefaultTimeout  = 5 * time.Second
	DefaultInterval = 30 * time.Second
	DefaultRetryMin = 2 * time.Second
)

type Service struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

func DefaultServices() []Service {
	return []Service{
		{Name: "mojang", URL: "https://sessionserver.mojang.com/session/minecraft/profile/00000000000000000000000000000000"},
		{Name: "microsoft", URL: "https://login.live.com/oauth20_authorize.srf"},
		{Name: "nintencube", URL: "https://play.nintencube.fr/"},
	}
}

type Result struct {
	Name    string        `json:"name"`
	URL     string        `json:"url"`
	Online  bool          `json:"online"`
	Status  int           `json:"status,omitempty"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

type Config struct {
	Services   []Service
	HTTPClient *http.Client
	Timeout    time.Duration
	// RetryMin is the first early re-check delay in Watch.
	RetryMin time.Duration
	Logger   logging.Logger
}

type Checker struct {
	cfg Config
	log logging.Logger
}

func NewChecker(cfg Config) *Checker {
	if len(cfg.Services) == 0 {
		cfg.Services = DefaultServices()
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.RetryMin <= 0 {
		cfg.RetryMin = DefaultRetryMin
	}

	return &Checker{cfg: cfg, log: logging.With(cfg.Logger)}
}

// Check probes every service concurrently. A service is online when it
// answers with a status below 500 within the timeout.
func (c *Checker) Check(ctx context.Context) []Result {
	results := make([]Result, len(c.cfg.Services))

	var g errgroup.Group
	for i, svc := range c.cfg.Services {
		i, svc := i, svc
		g.Go(func() error {
			results[i] = c.probe(ctx, svc)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Checker) probe(ctx context.Context, svc Service) Result {
	res := Result{Name: svc.Name, URL: svc.URL}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.URL, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	start := time.Now()
	resp, err := c.cfg.HTTPClient.Do(req)
	res.Latency = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		c.log.Debug("service unreachable", logging.F("service", svc.Name), logging.Err(err))
		return res
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	res.Status = resp.StatusCode
	res.Online = resp.StatusCode < 500

	return res
}

// Watch checks immediately and then every interval until ctx ends. While a
// service is offline it re-checks sooner, backing off from RetryMin up to
// interval.
func (c *Checker) Watch(ctx context.Context, interval time.Duration, fn func([]Result)) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	retry := backoff.Schedule{Min: c.cfg.RetryMin, Max: interval}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		results := c.Check(ctx)
		fn(results)

		next := interval
		if anyOffline(results) {
			next = retry.Next()
			c.log.Debug("service offline, re-checking early", logging.F("in", next))
		} else {
			retry.Reset()
		}

		timer.Reset(next)
	}
}

func anyOffline(results []Result) bool {
	for _, r := range results {
		if !r.Online {
			return true
		}
	}

	return false
}
