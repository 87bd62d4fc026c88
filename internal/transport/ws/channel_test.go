package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-session-host/internal/domain"
)

// sessionServer is a minimal session endpoint for exercising the channel.
type sessionServer struct {
	*httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received [][]byte
	paths    []string
}

func newSessionServer(t *testing.T) *sessionServer {
	t.Helper()
	s := &sessionServer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.paths = append(s.paths, r.URL.Path)
		s.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, data)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *sessionServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *sessionServer) pushToClient(t *testing.T, raw string) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		t.Fatal("no client connected")
	}
	conn := s.conns[len(s.conns)-1]
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

func (s *sessionServer) dropClient(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		t.Fatal("no client connected")
	}
	_ = s.conns[len(s.conns)-1].Close()
}

func (s *sessionServer) firstReceived(t *testing.T) []byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		if len(s.received) > 0 {
			raw := s.received[0]
			s.mu.Unlock()
			return raw
		}
		s.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatal("server received nothing")
	return nil
}

func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestDialAnnouncesHostJoin(t *testing.T) {
	server := newSessionServer(t)
	ch := NewChannel(server.wsURL(), "session-1", "host")
	t.Cleanup(func() { _ = ch.Close() })

	if err := ch.Dial(context.Background()); err != nil {
		t.Fatalf("dial: %v", err)
	}

	var join struct {
		Type     string `json:"type"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(server.firstReceived(t), &join); err != nil {
		t.Fatalf("join frame not json: %v", err)
	}
	if join.Type != "join" || join.Username != "host" {
		t.Fatalf("expected join announcement, got %+v", join)
	}

	server.mu.Lock()
	path := server.paths[0]
	server.mu.Unlock()
	if path != "/api/v1/sessions/handle/id/session-1" {
		t.Fatalf("unexpected endpoint path %q", path)
	}
}

func TestDialIsIdempotentWhileOpen(t *testing.T) {
	server := newSessionServer(t)
	ch := NewChannel(server.wsURL(), "session-1", "host")
	t.Cleanup(func() { _ = ch.Close() })

	if err := ch.Dial(context.Background()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := ch.Dial(context.Background()); err != nil {
		t.Fatalf("second dial: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	server.mu.Lock()
	conns := len(server.conns)
	server.mu.Unlock()
	if conns != 1 {
		t.Fatalf("expected exactly one connection, got %d", conns)
	}
}

func TestInboundFramesReachCallback(t *testing.T) {
	server := newSessionServer(t)
	ch := NewChannel(server.wsURL(), "session-1", "host")
	t.Cleanup(func() { _ = ch.Close() })

	var mu sync.Mutex
	var frames []string
	ch.OnMessage(func(raw []byte) {
		mu.Lock()
		frames = append(frames, string(raw))
		mu.Unlock()
	})

	if err := ch.Dial(context.Background()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	server.pushToClient(t, `{"type":"join","participant_id":"p1"}`)

	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(frames) == 1
	}, "frame never delivered")

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(frames[0], `"p1"`) {
		t.Fatalf("unexpected frame %q", frames[0])
	}
}

func TestRemoteCloseFiresOnClose(t *testing.T) {
	server := newSessionServer(t)
	ch := NewChannel(server.wsURL(), "session-1", "host")
	t.Cleanup(func() { _ = ch.Close() })

	closed := make(chan error, 1)
	ch.OnClose(func(err error) { closed <- err })

	if err := ch.Dial(context.Background()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	server.dropClient(t)

	select {
	case err := <-closed:
		if err == nil {
			t.Fatal("expected a close cause")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose never fired")
	}
	if ch.IsOpen() {
		t.Fatal("channel should report closed")
	}
}

func TestLocalCloseDoesNotFireOnClose(t *testing.T) {
	server := newSessionServer(t)
	ch := NewChannel(server.wsURL(), "session-1", "host")

	closed := make(chan error, 1)
	ch.OnClose(func(err error) { closed <- err })

	if err := ch.Dial(context.Background()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-closed:
		t.Fatalf("OnClose fired for local close: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendWhileClosedFails(t *testing.T) {
	ch := NewChannel("ws://127.0.0.1:0", "session-1", "host")
	if err := ch.Send([]byte(`{"type":"start"}`)); !errors.Is(err, domain.ErrChannelClosed) {
		t.Fatalf("expected ErrChannelClosed, got %v", err)
	}
}

func TestRedialAfterCloseOpensNewConnection(t *testing.T) {
	server := newSessionServer(t)
	ch := NewChannel(server.wsURL(), "session-1", "host")
	t.Cleanup(func() { _ = ch.Close() })

	if err := ch.Dial(context.Background()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := ch.Dial(context.Background()); err != nil {
		t.Fatalf("redial: %v", err)
	}

	waitUntil(t, func() bool {
		server.mu.Lock()
		defer server.mu.Unlock()
		return len(server.conns) == 2
	}, "redial never reached the server")

	// The join announcement is replayed on every successful dial.
	waitUntil(t, func() bool {
		server.mu.Lock()
		defer server.mu.Unlock()
		return len(server.received) == 2
	}, "join was not replayed on redial")
}

func TestDialFailureReturnsError(t *testing.T) {
	ch := NewChannel("ws://127.0.0.1:1", "session-1", "host")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ch.Dial(ctx); err == nil {
		t.Fatal("expected dial error for unreachable endpoint")
	}
}
