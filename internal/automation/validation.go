package automation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var timeOfDayPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

var validDays = map[string]bool{
	"sun": true, "mon": true, "tue": true, "wed": true,
	"thu": true, "fri": true, "sat": true,
}

// GenerateID returns a new unique automation identifier.
func GenerateID() string {
	return uuid.New().String()
}

// Validate checks an automation for structural errors. It does not
// verify that referenced devices or tools exist.
func Validate(a Automation) error {
	if a.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if a.MaxRuns != nil && *a.MaxRuns <= 0 {
		return fmt.Errorf("%w: max_runs must be positive", ErrInvalid)
	}
	if a.RunCount < 0 {
		return fmt.Errorf("%w: run_count cannot be negative", ErrInvalid)
	}
	if len(a.Triggers) == 0 {
		return fmt.Errorf("%w: at least one trigger is required", ErrInvalid)
	}
	for i, t := range a.Triggers {
		if err := ValidateTrigger(t); err != nil {
			return fmt.Errorf("trigger %d: %w", i, err)
		}
	}
	for i, c := range a.Conditions {
		if err := ValidateCondition(c); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	if len(a.Actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", ErrInvalid)
	}
	for i, act := range a.Actions {
		if err := ValidateAction(act); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

// ValidateTrigger checks a single trigger definition.
func ValidateTrigger(t Trigger) error {
	switch t.Type {
	case TriggerDeviceState:
		if t.Device == "" || t.Entity == "" || t.Property == "" {
			return fmt.Errorf("%w: device_state requires device, entity and property", ErrInvalidTrigger)
		}
	case TriggerDeviceEvent:
		if t.Device == "" || t.Property == "" {
			return fmt.Errorf("%w: device_event requires device and property", ErrInvalidTrigger)
		}
	case TriggerMQTT:
		if t.Topic == "" {
			return fmt.Errorf("%w: mqtt requires topic", ErrInvalidTrigger)
		}
	case TriggerCron:
		if t.Expression == "" {
			return fmt.Errorf("%w: cron requires expression", ErrInvalidTrigger)
		}
	case TriggerTime:
		if !timeOfDayPattern.MatchString(t.At) {
			return fmt.Errorf("%w: time requires at in HH:MM or HH:MM:SS form", ErrInvalidTrigger)
		}
	case TriggerDateTime:
		if t.At == "" {
			return fmt.Errorf("%w: datetime requires at", ErrInvalidTrigger)
		}
	case TriggerInterval:
		if t.Every <= 0 {
			return fmt.Errorf("%w: interval requires every > 0", ErrInvalidTrigger)
		}
	case "":
		return fmt.Errorf("%w: type is required", ErrInvalidTrigger)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTrigger, t.Type)
	}
	return nil
}

// ValidateCondition checks a condition tree depth-first.
func ValidateCondition(c Condition) error {
	switch c.Type {
	case ConditionTimeRange:
		if !timeOfDayPattern.MatchString(c.After) || !timeOfDayPattern.MatchString(c.Before) {
			return fmt.Errorf("%w: time_range requires after and before in HH:MM[:SS] form", ErrInvalidCondition)
		}
	case ConditionDayOfWeek:
		if len(c.Days) == 0 {
			return fmt.Errorf("%w: day_of_week requires at least one day", ErrInvalidCondition)
		}
		for _, d := range c.Days {
			if !validDays[strings.ToLower(d)] {
				return fmt.Errorf("%w: unknown day %q", ErrInvalidCondition, d)
			}
		}
	case ConditionDeviceState:
		if c.Device == "" || c.Entity == "" || c.Property == "" {
			return fmt.Errorf("%w: device_state requires device, entity and property", ErrInvalidCondition)
		}
	case ConditionAnd, ConditionOr, ConditionXor:
		if len(c.Conditions) == 0 {
			return fmt.Errorf("%w: %s requires at least one child", ErrInvalidCondition, c.Type)
		}
		for i, child := range c.Conditions {
			if err := ValidateCondition(child); err != nil {
				return fmt.Errorf("%s child %d: %w", c.Type, i, err)
			}
		}
	case "":
		return fmt.Errorf("%w: type is required", ErrInvalidCondition)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCondition, c.Type)
	}
	return nil
}

// ValidateAction checks an action tree depth-first.
func ValidateAction(a Action) error {
	switch a.Type {
	case ActionDeviceSet:
		if a.Device == "" || a.Entity == "" {
			return fmt.Errorf("%w: device_set requires device and entity", ErrInvalidAction)
		}
		if len(a.Payload) == 0 {
			return fmt.Errorf("%w: device_set requires a payload", ErrInvalidAction)
		}
	case ActionMQTTPublish:
		if a.Topic == "" {
			return fmt.Errorf("%w: mqtt_publish requires topic", ErrInvalidAction)
		}
	case ActionDelay:
		if a.Seconds <= 0 {
			return fmt.Errorf("%w: delay requires seconds > 0", ErrInvalidAction)
		}
	case ActionConditional:
		if a.Condition == nil {
			return fmt.Errorf("%w: conditional requires a condition", ErrInvalidAction)
		}
		if err := ValidateCondition(*a.Condition); err != nil {
			return fmt.Errorf("conditional: %w", err)
		}
		if len(a.Then) == 0 {
			return fmt.Errorf("%w: conditional requires at least one then action", ErrInvalidAction)
		}
		for i, child := range a.Then {
			if err := ValidateAction(child); err != nil {
				return fmt.Errorf("then %d: %w", i, err)
			}
		}
		for i, child := range a.Else {
			if err := ValidateAction(child); err != nil {
				return fmt.Errorf("else %d: %w", i, err)
			}
		}
	case ActionTool:
		if a.Tool == "" {
			return fmt.Errorf("%w: tool requires a tool name", ErrInvalidAction)
		}
	case "":
		return fmt.Errorf("%w: type is required", ErrInvalidAction)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
	}
	return nil
}
