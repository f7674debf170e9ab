package api

import (
	"encoding/json"
	"testing"

	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
	"github.com/hearth-home/hearth-core/internal/infrastructure/logging"
)

func newTestHub() *Hub {
	logger := logging.New(config.LoggingConfig{Level: "error", Format: "json"}, "test")
	return NewHub(config.WebSocketConfig{MaxMessageSize: 4096, PingInterval: 30, PongTimeout: 10}, logger)
}

func newHubClient(hub *Hub, channels ...string) *WSClient {
	c := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
	return c
}

func TestHub_BroadcastOnlyToSubscribed(t *testing.T) {
	hub := newTestHub()

	subscribed := newHubClient(hub, "automations")
	other := newHubClient(hub, "devices")
	hub.Register(subscribed)
	hub.Register(other)

	hub.Broadcast("automations", map[string]any{"automation_id": "a1"})

	select {
	case data := <-subscribed.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("broadcast payload not JSON: %v", err)
		}
		if msg.Type != WSTypeEvent {
			t.Errorf("type = %q, want event", msg.Type)
		}
		if msg.EventType != "automations" {
			t.Errorf("event_type = %q, want automations", msg.EventType)
		}
	default:
		t.Fatal("subscribed client received nothing")
	}

	select {
	case <-other.send:
		t.Fatal("unsubscribed client received broadcast")
	default:
	}
}

func TestHub_UnregisterClosesSendOnce(t *testing.T) {
	hub := newTestHub()
	client := newHubClient(hub, "automations")
	hub.Register(client)

	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() after unregister = %d, want 0", hub.ClientCount())
	}

	// Channel is closed.
	if _, ok := <-client.send; ok {
		t.Error("send channel still open after unregister")
	}

	// A second unregister must not panic on double close.
	hub.Unregister(client)
}

func TestHub_BroadcastSkipsFullBuffer(t *testing.T) {
	hub := newTestHub()
	client := newHubClient(hub, "automations")
	// Shrink the buffer so it fills immediately.
	client.send = make(chan []byte, 1)
	hub.Register(client)

	hub.Broadcast("automations", map[string]any{"n": 1})
	hub.Broadcast("automations", map[string]any{"n": 2})
	hub.Broadcast("automations", map[string]any{"n": 3})

	// Only the first message fits; the rest are dropped, not blocked on.
	if got := len(client.send); got != 1 {
		t.Errorf("buffered messages = %d, want 1", got)
	}
}

func TestClient_HandleSubscribeMessage(t *testing.T) {
	hub := newTestHub()
	client := newHubClient(hub)
	hub.Register(client)

	raw, _ := json.Marshal(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "req-1",
		Payload: WSSubscribePayload{Channels: []string{"automations"}},
	})
	client.handleMessage(raw)

	if !client.isSubscribed("automations") {
		t.Error("client not subscribed after subscribe message")
	}

	// Response went to the send channel.
	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("response not JSON: %v", err)
		}
		if msg.Type != WSTypeResponse || msg.ID != "req-1" {
			t.Errorf("response = %+v", msg)
		}
	default:
		t.Fatal("no response sent")
	}

	// Unsubscribe reverses it.
	raw, _ = json.Marshal(WSMessage{
		Type:    WSTypeUnsubscribe,
		Payload: WSSubscribePayload{Channels: []string{"automations"}},
	})
	client.handleMessage(raw)
	if client.isSubscribed("automations") {
		t.Error("client still subscribed after unsubscribe message")
	}
}

func TestClient_UnknownMessageType(t *testing.T) {
	hub := newTestHub()
	client := newHubClient(hub)

	client.handleMessage([]byte(`{"type":"teleport","id":"x"}`))

	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("error response not JSON: %v", err)
		}
		if msg.Type != WSTypeError {
			t.Errorf("type = %q, want error", msg.Type)
		}
	default:
		t.Fatal("no error response sent")
	}
}
