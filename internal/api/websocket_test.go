package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/library-core/internal/infrastructure/config"
)

// dialEvents connects a WebSocket client to the server's event stream.
func dialEvents(t *testing.T, srv *Server) (*httptest.Server, *websocket.Conn) {
	t.Helper()

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return ts, conn
}

// readMessage reads one message with a deadline.
func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func subscribe(t *testing.T, conn *websocket.Conn, channels ...string) {
	t.Helper()
	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: channels},
	}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != WSTypeResponse || msg.ID != "sub-1" {
		t.Fatalf("subscribe reply = %+v", msg)
	}
}

func TestWebSocket_ReceivesSubscribedChanges(t *testing.T) {
	srv := testServer(t)
	ts, conn := dialEvents(t, srv)
	subscribe(t, conn, "book")

	// A member change is not delivered to a book subscriber.
	post(t, ts.URL+"/api/member", `{"memberId": 1, "firstName": "Hans", "lastName": "Wiwi", "address": "Bergstraße 3"}`)
	post(t, ts.URL+"/api/book", `{"bookId": 9, "title": "Faust", "author": "Goethe"}`)

	msg := readMessage(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != "book.created" {
		t.Fatalf("event = %+v, want book.created", msg)
	}
	payload, ok := msg.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload type = %T", msg.Payload)
	}
	if payload["kind"] != "book" || payload["id"] != float64(9) {
		t.Errorf("payload = %+v", payload)
	}
}

func TestWebSocket_WildcardChannel(t *testing.T) {
	srv := testServer(t)
	ts, conn := dialEvents(t, srv)
	subscribe(t, conn, WSChannelAll)

	post(t, ts.URL+"/api/member", `{"memberId": 1, "firstName": "Hans", "lastName": "Wiwi", "address": "Bergstraße 3"}`)

	msg := readMessage(t, conn)
	if msg.EventType != "member.created" {
		t.Errorf("event type = %q, want member.created", msg.EventType)
	}
	if got := srv.Hub().ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}
}

func TestWebSocket_PingAndErrors(t *testing.T) {
	_, conn := dialEvents(t, testServer(t))

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("reply = %+v, want pong p1", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: "shout", ID: "x"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeError {
		t.Errorf("reply = %+v, want error", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeError {
		t.Errorf("reply = %+v, want error", msg)
	}
}

func TestWebSocket_Unsubscribe(t *testing.T) {
	srv := testServer(t)
	ts, conn := dialEvents(t, srv)
	subscribe(t, conn, "book", "member")

	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "u1",
		Payload: WSSubscribePayload{Channels: []string{"book"}},
	}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeResponse || msg.ID != "u1" {
		t.Fatalf("unsubscribe reply = %+v", msg)
	}

	post(t, ts.URL+"/api/book", `{"bookId": 9, "title": "Faust", "author": "Goethe"}`)
	post(t, ts.URL+"/api/member", `{"memberId": 1, "firstName": "Hans", "lastName": "Wiwi", "address": "Bergstraße 3"}`)

	if msg := readMessage(t, conn); msg.EventType != "member.created" {
		t.Errorf("event type = %q, want member.created", msg.EventType)
	}
}

func TestHub_ZeroConfigGetsDefaults(t *testing.T) {
	h := NewHub(config.WebSocketConfig{}, testServer(t).logger)
	if h.cfg.MaxMessageSize != defaultWSMaxMessageSize || h.cfg.PingInterval != defaultWSPingInterval || h.cfg.PongTimeout != defaultWSPongTimeout {
		t.Errorf("cfg = %+v", h.cfg)
	}
}

func TestEventsPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "", want: "/events"},
		{path: "/api", want: "/events"},
		{path: "/api/events", want: "/events"},
		{path: "/api/stream", want: "/stream"},
		{path: "changes", want: "/changes"},
	}

	for _, tt := range tests {
		if got := eventsPath(config.WebSocketConfig{Path: tt.path}); got != tt.want {
			t.Errorf("eventsPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

// post sends a JSON body to a live test server and expects 201.
func post(t *testing.T, url, body string) {
	t.Helper()
	resp, err := http.Post(url, contentTypeJSON, strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		var e ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		t.Fatalf("POST %s status = %d (%+v)", url, resp.StatusCode, e)
	}
}
