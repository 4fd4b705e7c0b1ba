package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/n1ntencube/CubicLauncher/auth"
	"github.com/n1ntencube/CubicLauncher/logging"
)

const (
	DefaultAddr    = "127.0.0.1:53123"
	DefaultPath    = "/callback"
	DefaultTimeout = 2 * time.Minute
)

const (
	successPage = `<!doctype html><html><head><meta charset="utf-8"><title>Cubic Launcher</title></head>` +
		`<body style="font-family:sans-serif;text-align:center;padding-top:4em">` +
		`<h2>Login complete</h2><p>You can close this window and return to the launcher.</p></body></html>`
	failurePage = `<!doctype html><html><head><meta charset="utf-8"><title>Cubic Launcher</title></head>` +
		`<body style="font-family:sans-serif;text-align:center;padding-top:4em">` +
		`<h2>Login failed</h2><p>%s</p></body></html>`
)

var ErrClosed = errors.New("auth/callback: listener closed")

type Config struct {
	Addr    string
	Path    string
	Timeout time.Duration
	Logger  logging.Logger
}

type result struct {
	code string
	err  error
}

// Listener accepts exactly one authorization redirect on a loopback port.
type Listener struct {
	cfg   Config
	log   logging.Logger
	ln    net.Listener
	srv   *http.Server
	state string

	once    sync.Once
	results chan result

	closeOnce sync.Once
	closed    chan struct{}
}

// Listen binds the port immediately so a busy port is reported before any
// browser is opened. state is the value the redirect must echo back.
func Listen(cfg Config, state string) (*Listener, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("auth/callback: listen %s: %w", cfg.Addr, err)
	}

	l := &Listener{
		cfg:     cfg,
		log:     logging.With(cfg.Logger),
		ln:      ln,
		state:   state,
		results: make(chan result, 1),
		closed:  make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Get(cfg.Path, l.handleCallback)

	l.srv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.log.Warn("callback listener stopped", logging.Err(err))
		}
	}()

	return l, nil
}

// RedirectURL is the URI registered with the authorize request.
func (l *Listener) RedirectURL() string {
	return "http://" + l.ln.Addr().String() + l.cfg.Path
}

func (l *Listener) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if l.state != "" && q.Get("state") != l.state {
		l.log.Warn("callback with unexpected state ignored")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprintf(w, failurePage, "The login response did not match this launcher session.")
		return
	}

	var res result
	switch {
	case q.Get("error") != "":
		res.err = &auth.AuthorizationDenied{Reason: q.Get("error"), Description: q.Get("error_description")}
	case q.Get("code") != "":
		res.code = q.Get("code")
	default:
		res.err = &auth.AuthorizationDenied{Reason: "missing_code"}
	}

	accepted := false
	l.once.Do(func() {
		accepted = true
		l.results <- res
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch {
	case !accepted:
		w.WriteHeader(http.StatusGone)
		_, _ = fmt.Fprintf(w, failurePage, "This login link was already used.")
	case res.err != nil:
		_, _ = fmt.Fprintf(w, failurePage, "Authorization was denied.")
	default:
		_, _ = w.Write([]byte(successPage))
	}
}

// Wait blocks for the first redirect, the timeout, or ctx. The listener is
// shut down before Wait returns.
func (l *Listener) Wait(ctx context.Context) (string, error) {
	defer l.Close()

	timer := time.NewTimer(l.cfg.Timeout)
	defer timer.Stop()

	select {
	case res := <-l.results:
		return res.code, res.err
	case <-timer.C:
		return "", auth.ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	case <-l.closed:
		return "", ErrClosed
	}
}

func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		err = l.srv.Shutdown(ctx)
	})

	return err
}
