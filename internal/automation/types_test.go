package automation

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestActionJSON_SharedPayloadKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Action
	}{
		{
			"mqtt_publish string payload",
			`{"type":"mqtt_publish","topic":"zigbee2mqtt/lamp/set","payload":"ON"}`,
			Action{Type: ActionMQTTPublish, Topic: "zigbee2mqtt/lamp/set", RawPayload: "ON"},
		},
		{
			"mqtt_publish empty payload",
			`{"type":"mqtt_publish","topic":"a/b","payload":""}`,
			Action{Type: ActionMQTTPublish, Topic: "a/b"},
		},
		{
			"mqtt_publish payload absent",
			`{"type":"mqtt_publish","topic":"a/b"}`,
			Action{Type: ActionMQTTPublish, Topic: "a/b"},
		},
		{
			"device_set object payload",
			`{"type":"device_set","device":"lamp-1","entity":"main","payload":{"power":"ON","brightness":200}}`,
			Action{
				Type: ActionDeviceSet, Device: "lamp-1", Entity: "main",
				Payload: map[string]any{"power": "ON", "brightness": float64(200)},
			},
		},
		{
			"device_set payload absent",
			`{"type":"device_set","device":"lamp-1","entity":"main"}`,
			Action{Type: ActionDeviceSet, Device: "lamp-1", Entity: "main"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Action
			if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Unmarshal mismatch:\n got %+v\nwant %+v", got, tt.want)
			}

			// Re-encoding must stay on the "payload" key for both kinds.
			data, err := json.Marshal(got)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if strings.Contains(string(data), "raw_payload") {
				t.Errorf("Marshal() = %s, payload must serialize under \"payload\"", data)
			}
			var back Action
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal(re-encoded) error = %v", err)
			}
			if !reflect.DeepEqual(back, tt.want) {
				t.Errorf("re-encode mismatch:\n got %+v\nwant %+v", back, tt.want)
			}
		})
	}
}

func TestActionJSON_PayloadShapeMismatch(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"mqtt_publish with object", `{"type":"mqtt_publish","topic":"a/b","payload":{"k":"v"}}`},
		{"device_set with string", `{"type":"device_set","device":"d","payload":"ON"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Action
			if err := json.Unmarshal([]byte(tt.in), &a); err == nil {
				t.Errorf("Unmarshal(%s) = nil error, want payload shape error", tt.in)
			}
		})
	}
}

func TestActionJSON_NestedConditional(t *testing.T) {
	in := `{
		"type": "conditional",
		"condition": {"type": "time_range", "after": "08:00", "before": "10:00"},
		"then": [{"type": "mqtt_publish", "topic": "a/b", "payload": "ON"}],
		"else": [{"type": "device_set", "device": "d", "entity": "main", "payload": {"power": "OFF"}}]
	}`

	var got Action
	if err := json.Unmarshal([]byte(in), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Then[0].RawPayload != "ON" {
		t.Errorf("then[0].RawPayload = %q, want %q", got.Then[0].RawPayload, "ON")
	}
	if got.Else[0].Payload["power"] != "OFF" {
		t.Errorf("else[0].Payload = %+v, want power=OFF", got.Else[0].Payload)
	}
}
