package ui_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voice-chatbot/internal/domain"
	"voice-chatbot/internal/infra/ui"
)

type mockController struct {
	mu       sync.Mutex
	state    domain.SessionState
	presses  int
	releases int
	subs     []chan domain.SessionState
}

func newMockController() *mockController {
	return &mockController{state: domain.StateIdle}
}

func (m *mockController) set(state domain.SessionState) {
	m.state = state
	for _, ch := range m.subs {
		select {
		case ch <- state:
		default:
		}
	}
}

func (m *mockController) Press(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == domain.StateRecording {
		return false
	}
	m.presses++
	m.set(domain.StateRecording)
	return true
}

func (m *mockController) Release() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != domain.StateRecording {
		return false
	}
	m.releases++
	m.set(domain.StateIdle)
	return true
}

func (m *mockController) State() domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockController) Subscribe() (<-chan domain.SessionState, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan domain.SessionState, 4)
	m.subs = append(m.subs, ch)
	return ch, func() {}
}

func (m *mockController) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.presses, m.releases
}

func writeIcon(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mic_icon.png")
	if err := os.WriteFile(path, []byte("\x89PNG fake icon"), 0644); err != nil {
		t.Fatalf("writing icon: %v", err)
	}
	return path
}

func newTestServer(t *testing.T, controller ui.Controller) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := ui.NewServer(":0", writeIcon(t), controller, nil, logger)
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

type stateMessage struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg stateMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading state: %v", err)
	}
	if msg.Type != "state" {
		t.Fatalf("message type: got %q, want state", msg.Type)
	}
	return msg.State
}

func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewServer_MissingIcon(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := ui.NewServer(":0", filepath.Join(t.TempDir(), "missing.png"), newMockController(), nil, logger)
	if err == nil {
		t.Fatal("expected an error for a missing icon")
	}
}

func TestServer_ServesPageAndIcon(t *testing.T) {
	ts := newTestServer(t, newMockController())

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{"/icon.png", "/ws", "pointerdown", "pointerup"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page missing %q", want)
		}
	}

	resp, err = http.Get(ts.URL + "/icon.png")
	if err != nil {
		t.Fatalf("GET /icon.png: %v", err)
	}
	icon, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(icon) != "\x89PNG fake icon" {
		t.Errorf("icon: got %q", icon)
	}
}

func TestServer_GesturesDriveController(t *testing.T) {
	controller := newMockController()
	ts := newTestServer(t, controller)

	conn := dial(t, ts)
	defer conn.Close()

	if got := readState(t, conn); got != "idle" {
		t.Fatalf("initial state: got %q, want idle", got)
	}

	if err := conn.WriteJSON(map[string]string{"type": "press"}); err != nil {
		t.Fatalf("sending press: %v", err)
	}
	if got := readState(t, conn); got != "recording" {
		t.Errorf("state after press: got %q, want recording", got)
	}

	if err := conn.WriteJSON(map[string]string{"type": "release"}); err != nil {
		t.Fatalf("sending release: %v", err)
	}
	if got := readState(t, conn); got != "idle" {
		t.Errorf("state after release: got %q, want idle", got)
	}

	presses, releases := controller.counts()
	if presses != 1 || releases != 1 {
		t.Errorf("gestures: got %d presses and %d releases, want 1 and 1", presses, releases)
	}
}

func TestServer_DisconnectWhileHeldReleases(t *testing.T) {
	controller := newMockController()
	ts := newTestServer(t, controller)

	conn := dial(t, ts)
	readState(t, conn)

	if err := conn.WriteJSON(map[string]string{"type": "press"}); err != nil {
		t.Fatalf("sending press: %v", err)
	}
	readState(t, conn)
	conn.Close()

	eventually(t, func() bool {
		return controller.State() == domain.StateIdle
	}, "release after disconnect")
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, newMockController())

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code: got %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if !strings.Contains(string(body), `"state":"idle"`) {
		t.Errorf("health body: got %s", body)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := ui.NewRateLimiter(2, time.Minute)

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("third request in the window should be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("other clients have their own bucket")
	}
}

func TestRateLimiter_MiddlewareIgnoresForwardedFor(t *testing.T) {
	rl := ui.NewRateLimiter(1, time.Minute)
	handler := rl.Middleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.RemoteAddr = "127.0.0.1:5000" + strings.Repeat("1", i)
		req.Header.Set("X-Forwarded-For", "10.0.0."+strings.Repeat("9", i+1))
		w := httptest.NewRecorder()
		handler(w, req)

		if w.Code != want {
			t.Errorf("request %d: status got %d, want %d", i, w.Code, want)
		}
	}
}
