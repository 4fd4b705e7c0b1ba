package transporthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"net/url"

	"github.com/google/uuid"
)

// ErrBodyTooLarge is returned when a response exceeds Config.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("transport/http: response body too large")

// TokenProvider supplies the bearer token for authenticated requests.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider returning a fixed token.
type StaticToken string

func (s StaticToken) AccessToken(context.Context) (string, error) {
	return string(s), nil
}

type Config struct {
	CorrelationIDHeader string
	CorrelationID       func() string
	UserAgent           string
	MaxBodyBytes        int64
}

type Request struct {
	Method        string
	URL           string
	Headers       map[string]string
	Body          []byte
	CorrelationID string
	Token         TokenProvider
}

type Response struct {
	StatusCode int
	Headers    stdhttp.Header
	Body       []byte
}

func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r Response) DecodeJSON(out any) error {
	return json.Unmarshal(r.Body, out)
}

// Client performs single-shot requests. It never retries; callers decide
// what a failed status means for their hop.
type Client struct {
	httpClient *stdhttp.Client
	cfg        Config
}

func NewClient(httpClient *stdhttp.Client, cfg Config) *Client {
	if httpClient == nil {
		httpClient = stdhttp.DefaultClient
	}

	if cfg.CorrelationIDHeader == "" {
		cfg.CorrelationIDHeader = "X-Correlation-Id"
	}

	if cfg.CorrelationID == nil {
		cfg.CorrelationID = uuid.NewString
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 4 << 20
	}

	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
	}
}

// HTTPClient exposes the underlying client for libraries that take one.
func (c *Client) HTTPClient() *stdhttp.Client {
	return c.httpClient
}

// Request sends req. A non-nil error means no response was received.
func (c *Client) Request(ctx context.Context, req Request) (Response, error) {
	httpReq, err := stdhttp.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, err
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if req.Token != nil && httpReq.Header.Get("Authorization") == "" {
		token, err := req.Token.AccessToken(ctx)
		if err != nil {
			return Response{}, err
		}

		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	if c.cfg.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = c.cfg.CorrelationID()
	}
	if correlationID != "" {
		httpReq.Header.Set(c.cfg.CorrelationIDHeader, correlationID)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return Response{}, err
	}

	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return Response{}, ErrBodyTooLarge
	}

	return Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header.Clone(),
		Body:       body,
	}, nil
}

// PostJSON encodes payload as the request body and asks for a JSON reply.
func (c *Client) PostJSON(ctx context.Context, target string, payload any, headers map[string]string) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("transport/http: encode body: %w", err)
	}

	merged := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	for k, v := range headers {
		merged[k] = v
	}

	return c.Request(ctx, Request{Method: stdhttp.MethodPost, URL: target, Headers: merged, Body: body})
}

// PostForm sends values as application/x-www-form-urlencoded.
func (c *Client) PostForm(ctx context.Context, target string, values url.Values) (Response, error) {
	return c.Request(ctx, Request{
		Method: stdhttp.MethodPost,
		URL:    target,
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"Accept":       "application/json",
		},
		Body: []byte(values.Encode()),
	})
}

// GetJSON issues an authenticated GET.
func (c *Client) GetJSON(ctx context.Context, target string, token TokenProvider) (Response, error) {
	return c.Request(ctx, Request{
		Method:  stdhttp.MethodGet,
		URL:     target,
		Headers: map[string]string{"Accept": "application/json"},
		Token:   token,
	})
}
