package transporthttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestRequestDoesNotRetryOn500(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), Config{})

	resp, err := c.Request(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != http.StatusInternalServerError || string(resp.Body) != "boom" {
		t.Fatalf("unexpected response: %d %q", resp.StatusCode, resp.Body)
	}

	if calls != 1 {
		t.Fatalf("expected exactly one call, got %d", calls)
	}
}

func TestRequestBearerFromTokenProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer mc-token" {
			t.Fatalf("unexpected authorization header: %q", got)
		}

		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), Config{})

	resp, err := c.GetJSON(context.Background(), srv.URL, StaticToken("mc-token"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := resp.DecodeJSON(&out); err != nil || out.ID != "abc" {
		t.Fatalf("decode: %v %#v", err, out)
	}
}

func TestPostJSONAndFormContentTypes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			if r.Header.Get("Content-Type") != "application/json" {
				t.Fatalf("unexpected content type: %s", r.Header.Get("Content-Type"))
			}
		case "/form":
			if r.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
				t.Fatalf("unexpected content type: %s", r.Header.Get("Content-Type"))
			}

			_ = r.ParseForm()
			if r.Form.Get("client_id") != "cid" {
				t.Fatalf("unexpected form: %v", r.Form)
			}
		}

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), Config{})

	if _, err := c.PostJSON(context.Background(), srv.URL+"/json", map[string]string{"a": "b"}, nil); err != nil {
		t.Fatalf("post json: %v", err)
	}

	if _, err := c.PostForm(context.Background(), srv.URL+"/form", url.Values{"client_id": {"cid"}}); err != nil {
		t.Fatalf("post form: %v", err)
	}
}

func TestRequestCorrelationIDHeaderInjection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Correlation-Id"); got != "corr-1" {
			t.Fatalf("unexpected correlation id: %q", got)
		}

		if got := r.Header.Get("User-Agent"); got != "cubic/test" {
			t.Fatalf("unexpected user agent: %q", got)
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), Config{
		CorrelationID: func() string { return "corr-1" },
		UserAgent:     "cubic/test",
	})

	if _, err := c.Request(context.Background(), Request{Method: http.MethodGet, URL: srv.URL}); err != nil {
		t.Fatalf("request failed: %v", err)
	}
}

func TestRequestBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), Config{MaxBodyBytes: 16})

	_, err := c.Request(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
}

func TestRequestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := NewClient(nil, Config{})

	var urlErr *url.Error
	_, err := c.Request(context.Background(), Request{Method: http.MethodGet, URL: addr})
	if !errors.As(err, &urlErr) {
		t.Fatalf("expected *url.Error, got %T %v", err, err)
	}
}
