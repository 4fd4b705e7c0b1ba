package uibridge

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/n1ntencube/CubicLauncher/events"
	"github.com/n1ntencube/CubicLauncher/logging"
	"github.com/n1ntencube/CubicLauncher/status"
)

const (
	DefaultPingInterval  = 30 * time.Second
	DefaultWriteDeadline = 10 * time.Second
	DefaultSendBuffer    = 256
)

// StatusSource reports service availability for GET /status.
type StatusSource interface {
	Check(ctx context.Context) []status.Result
}

// StatusFunc adapts a plain function to StatusSource.
type StatusFunc func(ctx context.Context) []status.Result

func (f StatusFunc) Check(ctx context.Context) []status.Result { return f(ctx) }

type Config struct {
	Addr          string
	Bus           *events.Bus
	Status        StatusSource
	PingInterval  time.Duration
	WriteDeadline time.Duration
	SendBuffer    int
	Logger        logging.Logger
}

// Server streams launcher events to UI clients over websockets.
type Server struct {
	cfg      Config
	log      logging.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Bus == nil {
		return nil, errors.New("uibridge: event bus is required")
	}

	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}

	if cfg.WriteDeadline <= 0 {
		cfg.WriteDeadline = DefaultWriteDeadline
	}

	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultSendBuffer
	}

	s := &Server{
		cfg: cfg,
		log: logging.With(cfg.Logger),
		upgrader: websocket.Upgrader{
			CheckOrigin: localOrigin,
		},
	}

	r := chi.NewRouter()
	r.Use(RequestLogger(s.log))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", s.handleStatus)
	r.Get("/events", s.handleEvents)
	s.router = r

	return s, nil
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("ui bridge listening", logging.F("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Status == nil {
		http.Error(w, "status checks disabled", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.cfg.Status.Check(r.Context()))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sub, err := s.cfg.Bus.Subscribe(s.cfg.SendBuffer, relevant)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logging.Err(err))
		return
	}
	defer conn.Close()

	s.log.Info("ui client connected", logging.F("remote", r.RemoteAddr))

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = s.writeLoop(r.Context(), conn, sub, closed)
	s.log.Info("ui client disconnected",
		logging.F("remote", r.RemoteAddr),
		logging.F("dropped", sub.Dropped()),
		logging.Err(err))
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, sub *events.Subscription, closed <-chan struct{}) error {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-closed:
			return nil
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteDeadline)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return err
			}
		case evt, ok := <-sub.C:
			if !ok {
				deadline := time.Now().Add(s.cfg.WriteDeadline)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "launcher shutting down"), deadline)
				return nil
			}

			msg, ok := Translate(evt)
			if !ok {
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteDeadline))
			if err := conn.WriteJSON(msg); err != nil {
				return err
			}
		}
	}
}

func relevant(evt events.Event) bool {
	_, ok := Translate(evt)
	return ok
}

// localOrigin accepts loopback pages and clients that send no Origin,
// such as the desktop shell.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	if u.Scheme == "file" {
		return true
	}

	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
