package automation

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// StateReader exposes the live state cache for a device. The second
// return is false when the device is unknown or has reported no state.
type StateReader interface {
	StateOf(deviceID string) (map[string]any, bool)
}

// PropertyResolver maps a canonical property name to a device-specific
// wire property name.
type PropertyResolver interface {
	ResolveWireProperty(deviceID, entityKey, canonical string) (string, error)
}

// Evaluator evaluates condition trees against wall-clock time and live
// device state. Evaluation is pure: no side effects, no caching.
type Evaluator struct {
	states   StateReader
	resolver PropertyResolver
	logger   Logger
}

// NewEvaluator creates a condition evaluator.
func NewEvaluator(states StateReader, resolver PropertyResolver, logger Logger) *Evaluator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Evaluator{states: states, resolver: resolver, logger: logger}
}

// EvaluateAll reports whether every condition in the list passes.
// An empty list is true. This is the AND-combination applied to an
// automation's top-level conditions immediately before its actions run.
func (e *Evaluator) EvaluateAll(conditions []Condition, now time.Time) bool {
	for _, c := range conditions {
		if !e.Evaluate(c, now) {
			return false
		}
	}
	return true
}

// Evaluate reports whether a single condition passes at the given time.
// Unknown condition types and unresolvable device references evaluate
// false (fail-closed).
func (e *Evaluator) Evaluate(c Condition, now time.Time) bool {
	switch c.Type {
	case ConditionTimeRange:
		return e.evaluateTimeRange(c, now)
	case ConditionDayOfWeek:
		return e.evaluateDayOfWeek(c, now)
	case ConditionDeviceState:
		return e.evaluateDeviceState(c)
	case ConditionAnd:
		for _, child := range c.Conditions {
			if !e.Evaluate(child, now) {
				return false
			}
		}
		return true
	case ConditionOr:
		for _, child := range c.Conditions {
			if e.Evaluate(child, now) {
				return true
			}
		}
		return false
	case ConditionXor:
		// Exactly one true child, not a pairwise reduction.
		trueCount := 0
		for _, child := range c.Conditions {
			if e.Evaluate(child, now) {
				trueCount++
			}
		}
		return trueCount == 1
	default:
		e.logger.Warn("unknown condition type", "type", c.Type)
		return false
	}
}

// evaluateTimeRange checks now's time-of-day against [after, before).
// A range with after > before wraps midnight.
func (e *Evaluator) evaluateTimeRange(c Condition, now time.Time) bool {
	after, err := parseTimeOfDay(c.After)
	if err != nil {
		e.logger.Warn("invalid time_range after", "value", c.After, "error", err)
		return false
	}
	before, err := parseTimeOfDay(c.Before)
	if err != nil {
		e.logger.Warn("invalid time_range before", "value", c.Before, "error", err)
		return false
	}

	current := now.Hour()*3600 + now.Minute()*60 + now.Second()
	if after <= before {
		return current >= after && current < before
	}
	return current >= after || current < before
}

// weekdayNames maps time.Weekday (Sunday=0) to the condition's
// three-letter day names.
var weekdayNames = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

func (e *Evaluator) evaluateDayOfWeek(c Condition, now time.Time) bool {
	today := weekdayNames[now.Weekday()]
	for _, d := range c.Days {
		if strings.ToLower(d) == today {
			return true
		}
	}
	return false
}

func (e *Evaluator) evaluateDeviceState(c Condition) bool {
	wire, err := e.resolver.ResolveWireProperty(c.Device, c.Entity, c.Property)
	if err != nil {
		e.logger.Debug("condition entity resolution failed",
			"device", c.Device, "entity", c.Entity, "property", c.Property, "error", err)
		return false
	}

	state, ok := e.states.StateOf(c.Device)
	if !ok {
		return false
	}

	value, ok := state[wire]
	if !ok {
		return false
	}
	return valuesEqual(value, c.Equals)
}

// parseTimeOfDay converts "HH:MM" or "HH:MM:SS" into seconds since
// midnight.
func parseTimeOfDay(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("want HH:MM or HH:MM:SS, got %q", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	second := 0
	if len(parts) == 3 {
		second, err = strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return 0, fmt.Errorf("invalid second in %q", s)
		}
	}
	return hour*3600 + minute*60 + second, nil
}

// valuesEqual deep-compares two state values. Numeric values compare by
// magnitude across Go types, since JSON decoding yields float64 while
// in-process callers may supply ints.
func valuesEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
