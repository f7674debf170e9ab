package transport

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hearth-home/hearth-core/internal/infrastructure/mqtt"
)

// MQTTClient is the interface the bridge needs from the MQTT wrapper.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// EventSink receives the two inbound event streams the automation
// engine consumes. Satisfied by automation.Engine.
type EventSink interface {
	HandleStateChange(deviceID string, newState, previous map[string]any)
	HandleRawMessage(topic, payload string)
}

// StateCache applies reported device state and returns the previous
// snapshot. Satisfied by device.Registry.
type StateCache interface {
	ApplyState(deviceID string, state map[string]any) (previous map[string]any)
}

// Logger defines the logging interface used by the Bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config controls the bridge's topic mapping.
type Config struct {
	// StatePattern is the subscription for device state reports. The
	// device ID is the final topic segment (e.g. "hearth/state/+").
	StatePattern string

	// CommandPrefix is prepended to the device ID for outgoing commands
	// (e.g. "hearth/command/").
	CommandPrefix string

	// RawSubscriptions are extra patterns delivered to the engine
	// verbatim for mqtt-trigger matching (e.g. "zigbee2mqtt/#").
	RawSubscriptions []string

	// QoS for all publishes and subscriptions.
	QoS byte
}

// Bridge wires the MQTT bus to the automation engine.
//
// Inbound, it subscribes to device state reports (merged into the state
// cache, then forwarded with the previous snapshot) and to the raw
// patterns (forwarded verbatim). Outbound, it implements the engine's
// Commander: device commands as JSON on the command topic, raw
// publishes untouched.
type Bridge struct {
	mqtt   MQTTClient
	sink   EventSink
	states StateCache
	cfg    Config
	logger Logger
}

// NewBridge creates a transport bridge. Call Start to subscribe.
func NewBridge(mqtt MQTTClient, sink EventSink, states StateCache, cfg Config, logger Logger) *Bridge {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bridge{
		mqtt:   mqtt,
		sink:   sink,
		states: states,
		cfg:    cfg,
		logger: logger,
	}
}

// Start subscribes to the state pattern and every raw pattern.
func (b *Bridge) Start() error {
	if err := b.mqtt.Subscribe(b.cfg.StatePattern, b.cfg.QoS, b.handleState); err != nil {
		return fmt.Errorf("subscribing to state pattern: %w", err)
	}
	for _, pattern := range b.cfg.RawSubscriptions {
		if err := b.mqtt.Subscribe(pattern, b.cfg.QoS, b.handleRaw); err != nil {
			return fmt.Errorf("subscribing to raw pattern %q: %w", pattern, err)
		}
	}
	b.logger.Info("transport bridge started",
		"state_pattern", b.cfg.StatePattern, "raw_subscriptions", len(b.cfg.RawSubscriptions))
	return nil
}

// handleState decodes a device state report, merges it into the cache
// and forwards the change with its previous snapshot.
func (b *Bridge) handleState(topic string, payload []byte) error {
	deviceID := topic[strings.LastIndex(topic, "/")+1:]
	if deviceID == "" {
		return fmt.Errorf("state topic %q has no device segment", topic)
	}

	var state map[string]any
	if err := json.Unmarshal(payload, &state); err != nil {
		return fmt.Errorf("state payload for %s: %w", deviceID, err)
	}

	previous := b.states.ApplyState(deviceID, state)
	b.sink.HandleStateChange(deviceID, state, previous)
	return nil
}

// handleRaw forwards a raw bus message to the engine verbatim.
func (b *Bridge) handleRaw(topic string, payload []byte) error {
	b.sink.HandleRawMessage(topic, string(payload))
	return nil
}

// SendCommand publishes a command payload as JSON on the device's
// command topic.
func (b *Bridge) SendCommand(deviceID string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding command for %s: %w", deviceID, err)
	}
	topic := b.cfg.CommandPrefix + deviceID
	if err := b.mqtt.Publish(topic, data, b.cfg.QoS, false); err != nil {
		return fmt.Errorf("publishing command for %s: %w", deviceID, err)
	}
	b.logger.Debug("command sent", "device", deviceID, "topic", topic)
	return nil
}

// PublishRaw publishes a string payload to a topic unmodified.
func (b *Bridge) PublishRaw(topic, payload string) error {
	if err := b.mqtt.Publish(topic, []byte(payload), b.cfg.QoS, false); err != nil {
		return fmt.Errorf("publishing raw message: %w", err)
	}
	return nil
}
