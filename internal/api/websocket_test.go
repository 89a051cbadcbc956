package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialWS connects a WebSocket client to the test server and waits until the
// hub has registered it.
func dialWS(t *testing.T, srv *Server, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	before := srv.hub.ClientCount()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	waitFor(t, "client registration", func() bool { return srv.hub.ClientCount() == before+1 })
	return conn
}

func readWSMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestWebSocket_ControlsUpdatedBroadcast(t *testing.T) {
	srv, db := testServer(t, nil)
	seed(t, db, "INSERT INTO components_control (component_name, dispense_amount, isActive) VALUES ('pump_a', 5, 1)")

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, srv, ts)

	resp, err := http.Post(ts.URL+"/api/update_controls", "application/json",
		strings.NewReader(`{"componentName":"pump_a","dispenseAmount":6.5}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	msg := readWSMessage(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != EventControlsUpdated {
		t.Fatalf("message = %+v, want controls.updated event", msg)
	}

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		t.Fatalf("re-marshal payload: %v", err)
	}
	want := `{"component_name":"pump_a","dispense_amount":6.5,"rows_affected":1}`
	if string(raw) != want {
		t.Errorf("payload = %s, want %s", raw, want)
	}
}

func TestWebSocket_Ping(t *testing.T) {
	srv, _ := testServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, srv, ts)

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	msg := readWSMessage(t, conn)
	if msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("reply = %+v, want pong p1", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	if msg := readWSMessage(t, conn); msg.Type != WSTypeError {
		t.Errorf("reply = %+v, want error", msg)
	}
}

func TestWebSocket_Disabled(t *testing.T) {
	srv, _ := testServer(t, func(d *Deps) { d.WS.Enabled = false })

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/ws", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHub_DisconnectAndShutdown(t *testing.T) {
	srv, _ := testServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go srv.hub.Run(ctx)

	conn := dialWS(t, srv, ts)
	dialWS(t, srv, ts)

	conn.Close()
	waitFor(t, "client removal", func() bool { return srv.hub.ClientCount() == 1 })

	cancel()
	waitFor(t, "hub shutdown", func() bool { return srv.hub.ClientCount() == 0 })

	// Broadcasting with no clients is a no-op.
	srv.hub.Broadcast(EventControlsUpdated, nil)
}
