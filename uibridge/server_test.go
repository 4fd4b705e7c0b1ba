package uibridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/n1ntencube/CubicLauncher/events"
	"github.com/n1ntencube/CubicLauncher/status"
)

type staticStatus []status.Result

func (s staticStatus) Check(context.Context) []status.Result { return s }

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}

	return msg
}

// waitSubscribed emits a probe until the connected client has received it.
func waitSubscribed(t *testing.T, bus *events.Bus, conn *websocket.Conn) {
	t.Helper()

	probe := events.LoginCodeIssued{Base: events.Now(), UserCode: "PROBE"}
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.SetReadDeadline(deadline)

	got := make(chan struct{})
	go func() {
		for time.Now().Before(deadline) {
			select {
			case <-got:
				return
			default:
			}
			_ = bus.Emit(probe)
			time.Sleep(20 * time.Millisecond)
		}
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for subscription: %v", err)
		}
		if msg.Type == TypeLoginCode && msg.UserCode == "PROBE" {
			close(got)
			time.Sleep(50 * time.Millisecond)
			return
		}
	}
}

func drainProbes(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	for {
		msg := readMessage(t, conn)
		if msg.UserCode != "PROBE" {
			return msg
		}
	}
}

func TestEventsStreamInstallAndGameMessages(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	s, err := NewServer(Config{Bus: bus})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	waitSubscribed(t, bus, conn)

	_ = bus.Emit(events.InstallProgress{Base: events.Now(), Stage: "mods", Status: "downloading-mod-1", Percent: 62.4, ModName: "a.jar"})
	_ = bus.Emit(events.GameStarted{Base: events.Now(), ProcessID: "p1", PID: 42})
	_ = bus.Emit(events.GameOutput{Base: events.Now(), ProcessID: "p1", Stream: "stdout", Line: "hello"})
	_ = bus.Emit(events.GameExited{Base: events.Now(), ProcessID: "p1", Code: 0})
	_ = bus.Emit(events.InstallFailed{Base: events.Now(), Stage: "mods", Err: errors.New(`mod "b.jar": status 500`)})

	msg := drainProbes(t, conn)
	if msg.Type != TypeInstallProgress || msg.Status != "downloading-mod-1" || msg.Progress == nil || *msg.Progress != 62 || msg.ModName != "a.jar" {
		t.Fatalf("unexpected progress message %#v", msg)
	}

	msg = readMessage(t, conn)
	if msg.Type != TypeGameLog || msg.Line != "hello" || msg.Stream != "stdout" {
		t.Fatalf("unexpected log message %#v", msg)
	}

	msg = readMessage(t, conn)
	if msg.Type != TypeGameExit || msg.Code == nil || *msg.Code != 0 || msg.Crashed {
		t.Fatalf("unexpected exit message %#v", msg)
	}

	msg = readMessage(t, conn)
	if msg.Type != TypeInstallProgress || msg.Status != "error" || !strings.Contains(msg.Error, "b.jar") {
		t.Fatalf("unexpected error message %#v", msg)
	}
}

func TestExitCodeZeroIsSerialized(t *testing.T) {
	msg, ok := Translate(events.GameExited{Code: 0})
	if !ok {
		t.Fatalf("expected translation")
	}

	raw, _ := json.Marshal(msg)
	if !strings.Contains(string(raw), `"code":0`) {
		t.Fatalf("exit code missing: %s", raw)
	}

	if _, ok := Translate(events.InstallProgress{Status: "error"}); ok {
		t.Fatalf("error progress should be carried by InstallFailed only")
	}
}

func TestBusCloseEndsStream(t *testing.T) {
	bus := events.NewBus()
	s, _ := NewServer(Config{Bus: bus})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	waitSubscribed(t, bus, conn)
	bus.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
			t.Fatalf("expected going-away close, got %v", err)
		}
		return
	}
}

func TestStatusAndHealth(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	s, _ := NewServer(Config{Bus: bus, Status: staticStatus{{Name: "mojang", Online: true}}})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	res, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", res, err)
	}
	res.Body.Close()

	res, err = srv.Client().Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	var results []status.Result
	if err := json.NewDecoder(res.Body).Decode(&results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || !results[0].Online {
		t.Fatalf("unexpected status %#v", results)
	}
}

func TestRejectsForeignOrigin(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	s, _ := NewServer(Config{Bus: bus})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	_, res, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if res == nil || res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", res)
	}
}

func TestServeShutsDownWithContext(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	s, _ := NewServer(Config{Bus: bus, Addr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("server did not stop")
	}
}
