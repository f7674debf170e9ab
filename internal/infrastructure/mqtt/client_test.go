package mqtt

import (
	"strings"
	"testing"
	"time"

	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "hearth-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device state", topics.DeviceState("lamp-living"), "hearth/state/lamp-living"},
		{"device command", topics.DeviceCommand("lamp-living"), "hearth/command/lamp-living"},
		{"system status", topics.SystemStatus(), "hearth/system/status"},
		{"all device states", topics.AllDeviceStates(), "hearth/state/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("Servers = %d, want 1", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("broker URL = %q", got)
	}
	if opts.ClientID != "hearth-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v", opts.MaxReconnectInterval)
	}
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("scheme = %q, want ssl", got)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig not set with TLS enabled")
	}
}

func TestBuildClientOptionsAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "hearth"
	cfg.Auth.Password = "secret"
	opts := buildClientOptions(cfg)

	if opts.Username != "hearth" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
}

func TestConfigureLWT(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if opts.WillTopic != "hearth/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, new subscribers must see the last status")
	}
	payload := string(opts.WillPayload)
	if !strings.Contains(payload, `"status":"offline"`) || !strings.Contains(payload, "unexpected_disconnect") {
		t.Errorf("WillPayload = %q", payload)
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("hearth-test")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, "hearth-test") {
		t.Errorf("online payload = %q", online)
	}

	offline := buildOfflinePayload("hearth-test")
	if !strings.Contains(offline, `"status":"offline"`) || !strings.Contains(offline, "graceful_shutdown") {
		t.Errorf("offline payload = %q", offline)
	}
}
