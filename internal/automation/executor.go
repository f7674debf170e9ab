package automation

import (
	"context"
	"time"
)

// Commander delivers outgoing device commands and raw bus publishes.
// Satisfied by the MQTT transport; faked in tests.
type Commander interface {
	SendCommand(deviceID string, payload map[string]any) error
	PublishRaw(topic, payload string) error
}

// ToolInvoker invokes a named external capability. Satisfied by the MCP
// tool runner.
type ToolInvoker interface {
	Invoke(ctx context.Context, tool string, params any) (any, error)
}

// Executor runs an automation's action list in order, each action
// completing before the next begins. Conditional branches recurse to
// unbounded depth.
type Executor struct {
	commander Commander
	tools     ToolInvoker
	evaluator *Evaluator
	resolver  PropertyResolver
	logger    Logger
}

// NewExecutor creates an action executor. tools may be nil when no tool
// runner is configured; tool actions then log a warning and continue.
func NewExecutor(commander Commander, tools ToolInvoker, evaluator *Evaluator, resolver PropertyResolver, logger Logger) *Executor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Executor{
		commander: commander,
		tools:     tools,
		evaluator: evaluator,
		resolver:  resolver,
		logger:    logger,
	}
}

// ExecuteActions runs the list sequentially. Individual action failures
// are logged and never abort the remaining actions; the only early
// return is context cancellation, which reports ctx.Err().
func (e *Executor) ExecuteActions(ctx context.Context, actions []Action) error {
	for _, a := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch a.Type {
		case ActionDeviceSet:
			e.executeDeviceSet(a)
		case ActionMQTTPublish:
			if err := e.commander.PublishRaw(a.Topic, a.RawPayload); err != nil {
				e.logger.Error("mqtt_publish failed", "topic", a.Topic, "error", err)
			}
		case ActionDelay:
			// Suspends only this sequence; other firings keep running.
			select {
			case <-time.After(time.Duration(a.Seconds) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		case ActionConditional:
			if err := e.executeConditional(ctx, a); err != nil {
				return err
			}
		case ActionTool:
			e.executeTool(ctx, a)
		default:
			e.logger.Warn("unknown action type", "type", a.Type)
		}
	}
	return nil
}

// executeDeviceSet translates the payload's canonical keys to wire
// property names and sends the command. A key that cannot be resolved is
// passed through unchanged, so an unresolvable entity degrades to
// sending the payload unmodified (best effort, not an error).
func (e *Executor) executeDeviceSet(a Action) {
	payload := make(map[string]any, len(a.Payload))
	for key, value := range a.Payload {
		wire, err := e.resolver.ResolveWireProperty(a.Device, a.Entity, key)
		if err != nil {
			e.logger.Debug("payload key not resolvable, sending raw",
				"device", a.Device, "entity", a.Entity, "key", key)
			wire = key
		}
		payload[wire] = value
	}

	if err := e.commander.SendCommand(a.Device, payload); err != nil {
		e.logger.Error("device_set command failed", "device", a.Device, "error", err)
	}
}

// executeConditional evaluates the condition fresh and recurses into the
// matching branch. A false condition with no else branch is a no-op.
func (e *Executor) executeConditional(ctx context.Context, a Action) error {
	if a.Condition == nil {
		e.logger.Warn("conditional action without condition")
		return nil
	}
	if e.evaluator.Evaluate(*a.Condition, time.Now()) {
		return e.ExecuteActions(ctx, a.Then)
	}
	if len(a.Else) > 0 {
		return e.ExecuteActions(ctx, a.Else)
	}
	return nil
}

// executeTool invokes the named tool. Failures are logged; a failing
// tool never aborts the remaining actions or the firing as a whole.
func (e *Executor) executeTool(ctx context.Context, a Action) {
	if e.tools == nil {
		e.logger.Warn("tool action with no tool runner configured", "tool", a.Tool)
		return
	}
	if _, err := e.tools.Invoke(ctx, a.Tool, a.Params); err != nil {
		e.logger.Error("tool invocation failed", "tool", a.Tool, "error", err)
	}
}
