package automation

import "strings"

// matcher tests event-based triggers against incoming transport events.
type matcher struct {
	resolver PropertyResolver
	logger   Logger
}

// matchesStateChange reports whether a device_state or device_event
// trigger fires for a state change on deviceID. Other trigger types
// never match here.
func (m *matcher) matchesStateChange(t Trigger, deviceID string, newState, previous map[string]any) bool {
	switch t.Type {
	case TriggerDeviceState:
		return m.matchDeviceState(t, deviceID, newState, previous)
	case TriggerDeviceEvent:
		return matchDeviceEvent(t, deviceID, newState)
	default:
		return false
	}
}

// matchDeviceState resolves the trigger's canonical property to the
// device's wire property and checks the optional to/from constraints.
// Resolution failure is a non-match, never an error.
func (m *matcher) matchDeviceState(t Trigger, deviceID string, newState, previous map[string]any) bool {
	if t.Device != deviceID {
		return false
	}

	wire, err := m.resolver.ResolveWireProperty(t.Device, t.Entity, t.Property)
	if err != nil {
		m.logger.Debug("trigger entity resolution failed",
			"device", t.Device, "entity", t.Entity, "property", t.Property, "error", err)
		return false
	}

	newValue, ok := newState[wire]
	if !ok {
		return false
	}
	if t.To != nil && !valuesEqual(newValue, t.To) {
		return false
	}
	if t.From != nil {
		if previous == nil {
			return false
		}
		prevValue, ok := previous[wire]
		if !ok || !valuesEqual(prevValue, t.From) {
			return false
		}
	}
	return true
}

// matchDeviceEvent reads the raw wire property straight from the new
// state, bypassing entity resolution. This supports input-only devices
// (buttons, contact and motion sensors) with no controllable entities.
func matchDeviceEvent(t Trigger, deviceID string, newState map[string]any) bool {
	if t.Device != deviceID {
		return false
	}
	value, ok := newState[t.Property]
	if !ok {
		return false
	}
	if t.Value != nil && !valuesEqual(value, t.Value) {
		return false
	}
	return true
}

// matchesRawMessage reports whether an mqtt trigger fires for a raw bus
// message.
func matchesRawMessage(t Trigger, topic, payload string) bool {
	if t.Type != TriggerMQTT {
		return false
	}
	if !topicMatch(t.Topic, topic) {
		return false
	}
	if t.PayloadContains != "" && !strings.Contains(payload, t.PayloadContains) {
		return false
	}
	return true
}

// topicMatch implements MQTT-style wildcard matching. A "#" segment
// matches the remainder of the topic and ends matching immediately; a
// "+" segment matches exactly one segment; anything else must match
// literally. When the pattern runs out without a "#", the topic must be
// exactly exhausted too.
func topicMatch(pattern, topic string) bool {
	patternParts := strings.Split(pattern, "/")
	topicParts := strings.Split(topic, "/")

	for i, p := range patternParts {
		if p == "#" {
			return true
		}
		if i >= len(topicParts) {
			return false
		}
		if p != "+" && p != topicParts[i] {
			return false
		}
	}
	return len(patternParts) == len(topicParts)
}
