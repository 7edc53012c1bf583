package api

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/devicesim/internal/device"
)

// dialWS connects to the server's WebSocket endpoint.
func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // Deadline only bounds the test
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return msg
}

func subscribe(t *testing.T, conn *websocket.Conn, channels ...string) {
	t.Helper()
	err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: channels},
	})
	if err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if resp := readWS(t, conn); resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Fatalf("subscribe response = %+v", resp)
	}
}

func TestWebSocket_Ping(t *testing.T) {
	srv, _, _ := testServer(t, nil)
	conn := dialWS(t, srv)

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if resp := readWS(t, conn); resp.Type != WSTypePong || resp.ID != "p1" {
		t.Errorf("response = %+v, want pong p1", resp)
	}
}

func TestWebSocket_UnknownType(t *testing.T) {
	srv, _, _ := testServer(t, nil)
	conn := dialWS(t, srv)

	if err := conn.WriteJSON(WSMessage{Type: "dance", ID: "x"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if resp := readWS(t, conn); resp.Type != WSTypeError {
		t.Errorf("response type = %q, want error", resp.Type)
	}
}

func TestWebSocket_TelemetryRelay(t *testing.T) {
	srv, manager, pub := testServer(t, nil)
	conn := dialWS(t, srv)
	subscribe(t, conn, TelemetryChannel("LUZTEST00001"))

	d, _ := manager.Get("LUZTEST00001") //nolint:errcheck // Created by testServer
	d.Tick(t.Context())

	if pub.published() != 1 {
		t.Errorf("broker publishes = %d, want 1", pub.published())
	}

	event := readWS(t, conn)
	if event.Type != WSTypeEvent || event.EventType != TelemetryChannel("LUZTEST00001") {
		t.Fatalf("event = %+v", event)
	}

	raw, err := json.Marshal(event.Payload)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var msg device.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if msg.SerialNumber != "LUZTEST00001" || msg.Estado != device.EstadoActivo {
		t.Errorf("relayed message = %+v", msg)
	}
	if _, ok := msg.Parametros["consumo_w"]; !ok {
		t.Errorf("relayed parameters = %v, want consumo_w", msg.Parametros)
	}
}

func TestWebSocket_Unsubscribe(t *testing.T) {
	srv, _, _ := testServer(t, nil)
	conn := dialWS(t, srv)
	subscribe(t, conn, ChannelTelemetry)

	err := conn.WriteJSON(WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "u1",
		Payload: WSSubscribePayload{Channels: []string{ChannelTelemetry}},
	})
	if err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if resp := readWS(t, conn); resp.ID != "u1" {
		t.Fatalf("unsubscribe response = %+v", resp)
	}

	srv.hub.Broadcast(ChannelTelemetry, map[string]string{"serial_number": "X"})

	// A ping answered first proves the broadcast was not queued for us.
	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p2"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if resp := readWS(t, conn); resp.Type != WSTypePong {
		t.Errorf("next message = %+v, want pong", resp)
	}
}

func TestTee_ForwardsPublishError(t *testing.T) {
	srv, _, _ := testServer(t, nil)
	pub := &mockPublisher{err: errors.New("broker down")}
	tee := srv.hub.Tee(pub)

	err := tee.PublishDefault("dispositivos/estado", []byte(`{"serial_number":"A","estado":"activo","parametros":{}}`))
	if err == nil || err.Error() != "broker down" {
		t.Errorf("PublishDefault() error = %v, want broker down", err)
	}
	if pub.published() != 1 {
		t.Errorf("forwarded = %d, want 1", pub.published())
	}

	if err := srv.hub.Tee(&mockPublisher{}).PublishDefault("t", []byte("not json")); err != nil {
		t.Errorf("non-JSON payload should still publish cleanly, got %v", err)
	}
}

func TestHub_ClientCount(t *testing.T) {
	srv, _, _ := testServer(t, nil)
	conn := dialWS(t, srv)
	subscribe(t, conn, ChannelTelemetry)

	if got := srv.hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := srv.hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount() after close = %d, want 0", got)
	}
}
