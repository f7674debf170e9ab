package automation

import (
	"encoding/json"
	"fmt"
)

// Automation is a user-defined rule: when any trigger matches and every
// condition holds, the actions run in order.
type Automation struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Configuration
	Enabled bool `json:"enabled"`

	// MaxRuns caps the number of completed firings. When RunCount reaches
	// MaxRuns the automation is removed from the store. Nil means unlimited.
	MaxRuns *int `json:"max_runs,omitempty"`

	// RunCount is the number of completed firings. Engine-managed,
	// monotonically non-decreasing for the life of the automation.
	RunCount int `json:"run_count"`

	// Triggers are OR-combined: any single match starts an evaluation.
	Triggers []Trigger `json:"triggers"`

	// Conditions are AND-combined and may be empty (always true).
	Conditions []Condition `json:"conditions,omitempty"`

	// Actions execute sequentially, each completing before the next.
	Actions []Action `json:"actions"`
}

// Trigger type discriminators.
const (
	TriggerDeviceState = "device_state"
	TriggerDeviceEvent = "device_event"
	TriggerMQTT        = "mqtt"
	TriggerCron        = "cron"
	TriggerTime        = "time"
	TriggerDateTime    = "datetime"
	TriggerInterval    = "interval"
)

// Trigger is a tagged variant describing an event or schedule that can
// start an automation. Type selects the variant; only that variant's
// fields are meaningful.
type Trigger struct {
	Type string `json:"type"`

	// device_state: fires when Device's Entity canonical Property changes,
	// optionally constrained to a new value (To) and/or previous value (From).
	// device_event: fires on a raw wire Property match on Device, bypassing
	// entity resolution (input-only devices).
	Device   string `json:"device,omitempty"`
	Entity   string `json:"entity,omitempty"`
	Property string `json:"property,omitempty"`
	To       any    `json:"to,omitempty"`
	From     any    `json:"from,omitempty"`
	Value    any    `json:"value,omitempty"`

	// mqtt: fires on a bus message matching Topic (wildcard pattern),
	// optionally requiring PayloadContains as a substring.
	Topic           string `json:"topic,omitempty"`
	PayloadContains string `json:"payload_contains,omitempty"`

	// cron: fires on Expression's schedule.
	Expression string `json:"expression,omitempty"`

	// time: fires daily at At (HH:MM or HH:MM:SS).
	// datetime: fires once at At (local "2006-01-02 15:04[:05]").
	At string `json:"at,omitempty"`

	// interval: fires every Every seconds.
	Every int `json:"every,omitempty"`
}

// Condition type discriminators.
const (
	ConditionTimeRange   = "time_range"
	ConditionDayOfWeek   = "day_of_week"
	ConditionDeviceState = "device_state"
	ConditionAnd         = "and"
	ConditionOr          = "or"
	ConditionXor         = "xor"
)

// Condition is a recursive tagged variant evaluated against wall-clock
// time and live device state. Combinators (and/or/xor) hold nested
// children in Conditions.
type Condition struct {
	Type string `json:"type"`

	// time_range: pass when time-of-day is within [After, Before).
	// After > Before wraps midnight.
	After  string `json:"after,omitempty"`
	Before string `json:"before,omitempty"`

	// day_of_week: pass when the current weekday is in Days
	// ("sun".."sat", lowercase three-letter).
	Days []string `json:"days,omitempty"`

	// device_state: resolve Entity's canonical Property on Device and
	// compare the live wire value against Equals. Resolution failure is
	// false, never an error.
	Device   string `json:"device,omitempty"`
	Entity   string `json:"entity,omitempty"`
	Property string `json:"property,omitempty"`
	Equals   any    `json:"equals,omitempty"`

	// and/or/xor children. xor passes when exactly one child passes.
	Conditions []Condition `json:"conditions,omitempty"`
}

// Action type discriminators.
const (
	ActionDeviceSet   = "device_set"
	ActionMQTTPublish = "mqtt_publish"
	ActionDelay       = "delay"
	ActionConditional = "conditional"
	ActionTool        = "tool"
)

// Action is a recursive tagged variant: one effect in an automation's
// ordered action list. Conditional actions nest further Actions in
// Then/Else to unbounded depth.
type Action struct {
	Type string `json:"type"`

	// device_set: translate Payload's canonical keys to wire names for
	// Entity on Device and send as a command. If the entity cannot be
	// resolved the payload is sent unmodified.
	Device  string         `json:"device,omitempty"`
	Entity  string         `json:"entity,omitempty"`
	Payload map[string]any `json:"-"`

	// mqtt_publish: publish RawPayload to Topic verbatim. Both action
	// kinds share the "payload" JSON key; MarshalJSON/UnmarshalJSON
	// split on Type.
	Topic      string `json:"topic,omitempty"`
	RawPayload string `json:"-"`

	// delay: suspend this action sequence for Seconds.
	Seconds int `json:"seconds,omitempty"`

	// conditional: evaluate Condition; run Then when true, Else (if
	// present) when false.
	Condition *Condition `json:"condition,omitempty"`
	Then      []Action   `json:"then,omitempty"`
	Else      []Action   `json:"else,omitempty"`

	// tool: invoke the named external tool with Params. Failures are
	// logged and never abort the remaining actions.
	Tool   string `json:"tool,omitempty"`
	Params any    `json:"params,omitempty"`
}

// MarshalJSON emits the action's payload under the "payload" key:
// a string for mqtt_publish, an object for device_set.
func (a Action) MarshalJSON() ([]byte, error) {
	type alias Action
	out := struct {
		alias
		Payload any `json:"payload,omitempty"`
	}{alias: alias(a)}
	switch a.Type {
	case ActionMQTTPublish:
		// An empty publish payload is legal MQTT; always emit it.
		out.Payload = a.RawPayload
	default:
		if a.Payload != nil {
			out.Payload = a.Payload
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the shared "payload" key into RawPayload for
// mqtt_publish actions and into the canonical key map otherwise.
func (a *Action) UnmarshalJSON(data []byte) error {
	type alias Action
	aux := struct {
		*alias
		Payload json.RawMessage `json:"payload,omitempty"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Payload) == 0 {
		return nil
	}
	switch a.Type {
	case ActionMQTTPublish:
		if err := json.Unmarshal(aux.Payload, &a.RawPayload); err != nil {
			return fmt.Errorf("mqtt_publish payload: %w", err)
		}
	default:
		if err := json.Unmarshal(aux.Payload, &a.Payload); err != nil {
			return fmt.Errorf("device_set payload: %w", err)
		}
	}
	return nil
}

// DeepCopy returns an independent copy of the automation, isolating
// callers from later mutation of nested slices and maps.
func (a Automation) DeepCopy() Automation {
	out := a
	if a.MaxRuns != nil {
		v := *a.MaxRuns
		out.MaxRuns = &v
	}
	if a.Triggers != nil {
		out.Triggers = make([]Trigger, len(a.Triggers))
		copy(out.Triggers, a.Triggers)
	}
	if a.Conditions != nil {
		out.Conditions = make([]Condition, len(a.Conditions))
		for i, c := range a.Conditions {
			out.Conditions[i] = c.deepCopy()
		}
	}
	if a.Actions != nil {
		out.Actions = make([]Action, len(a.Actions))
		for i, act := range a.Actions {
			out.Actions[i] = act.deepCopy()
		}
	}
	return out
}

func (c Condition) deepCopy() Condition {
	out := c
	if c.Days != nil {
		out.Days = make([]string, len(c.Days))
		copy(out.Days, c.Days)
	}
	if c.Conditions != nil {
		out.Conditions = make([]Condition, len(c.Conditions))
		for i, child := range c.Conditions {
			out.Conditions[i] = child.deepCopy()
		}
	}
	return out
}

func (a Action) deepCopy() Action {
	out := a
	if a.Payload != nil {
		out.Payload = make(map[string]any, len(a.Payload))
		for k, v := range a.Payload {
			out.Payload[k] = v
		}
	}
	if a.Condition != nil {
		c := a.Condition.deepCopy()
		out.Condition = &c
	}
	if a.Then != nil {
		out.Then = make([]Action, len(a.Then))
		for i, child := range a.Then {
			out.Then[i] = child.deepCopy()
		}
	}
	if a.Else != nil {
		out.Else = make([]Action, len(a.Else))
		for i, child := range a.Else {
			out.Else[i] = child.deepCopy()
		}
	}
	return out
}
