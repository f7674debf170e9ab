package automation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Hub is the interface for broadcasting WebSocket events.
type Hub interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// TelemetryWriter records firing metrics to a time-series backend.
// Implementations must not block the firing path.
type TelemetryWriter interface {
	RecordFiring(automationID, trigger string, duration time.Duration, success bool)
}

// Engine orchestrates automation firings.
//
// Timer triggers arrive from the Scheduler, event triggers from the
// transport via HandleStateChange and HandleRawMessage. A match snapshots
// the automation, evaluates its pre-conditions fresh, runs the action
// list, then updates run bookkeeping and retires the automation when its
// run budget is spent.
//
// Concurrency: each firing runs in its own goroutine. There is no mutual
// exclusion between automations and no reentrancy guard within one: if a
// trigger recurs while a prior firing (say, one holding a long delay) is
// still executing, a second independent execution starts and both
// increment the run count. With max_runs set this can overshoot the
// budget. In-flight sequences cannot be cancelled except by engine
// shutdown.
type Engine struct {
	store     *Store
	evaluator *Evaluator
	executor  *Executor
	matcher   *matcher
	scheduler *Scheduler
	hub       Hub
	repo      Repository
	telemetry TelemetryWriter
	logger    Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine creates an automation engine. hub and repo may be nil; the
// corresponding broadcast and history features are then disabled.
func NewEngine(store *Store, evaluator *Evaluator, executor *Executor, resolver PropertyResolver, hub Hub, repo Repository, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	e := &Engine{
		store:     store,
		evaluator: evaluator,
		executor:  executor,
		matcher:   &matcher{resolver: resolver, logger: logger},
		hub:       hub,
		repo:      repo,
		logger:    logger,
	}
	e.scheduler = NewScheduler(store, e.Fire, logger)
	return e
}

// SetTelemetry attaches an optional firing telemetry writer. Must be
// called before Start.
func (e *Engine) SetTelemetry(w TelemetryWriter) {
	e.telemetry = w
}

// Start builds the trigger schedule and begins accepting events. The
// context bounds every in-flight firing; cancelling it is the only way
// to interrupt a running action sequence.
func (e *Engine) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.scheduler.Rebuild()
	if e.hub != nil {
		e.store.Subscribe(func() {
			e.hub.Broadcast("automations", map[string]any{
				"type": "automation.changed",
			})
		})
	}
	e.logger.Info("automation engine started", "automations", len(e.store.All()))
}

// Stop tears down all scheduled triggers and cancels in-flight firings.
func (e *Engine) Stop() {
	e.scheduler.Stop()
	if e.cancel != nil {
		e.cancel()
	}
	e.logger.Info("automation engine stopped")
}

// HandleStateChange feeds a device state change into trigger matching.
// previous may be nil when no earlier state is known; triggers with a
// from constraint then never match.
//
// Matching is independent per automation: one event can fire zero, one,
// or many automations. Within one automation the triggers are
// OR-combined, so the first match fires it and the rest are skipped.
func (e *Engine) HandleStateChange(deviceID string, newState, previous map[string]any) {
	for _, a := range e.store.All() {
		if !a.Enabled {
			continue
		}
		for _, t := range a.Triggers {
			if e.matcher.matchesStateChange(t, deviceID, newState, previous) {
				e.Fire(a.ID, t.Type+":"+deviceID)
				break
			}
		}
	}
}

// HandleRawMessage feeds a raw bus message into mqtt trigger matching.
func (e *Engine) HandleRawMessage(topic, payload string) {
	for _, a := range e.store.All() {
		if !a.Enabled {
			continue
		}
		for _, t := range a.Triggers {
			if matchesRawMessage(t, topic, payload) {
				e.Fire(a.ID, "mqtt:"+topic)
				break
			}
		}
	}
}

// Fire starts one firing of the automation, tagged with a human-readable
// trigger description. The snapshot, condition evaluation and action run
// all happen asynchronously; Fire returns immediately.
//
// Unknown or disabled automations are ignored: triggers can outlive an
// edit by a moment, and a stale fire is not an error.
func (e *Engine) Fire(automationID, trigger string) {
	a, err := e.store.Get(automationID)
	if err != nil {
		e.logger.Debug("fire for unknown automation", "id", automationID, "trigger", trigger)
		return
	}
	if !a.Enabled {
		return
	}

	ctx := e.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	go e.runFiring(ctx, a, trigger)
}

// runFiring is one end-to-end execution: fresh condition evaluation,
// the sequential action list, then run bookkeeping and retirement.
func (e *Engine) runFiring(ctx context.Context, a Automation, trigger string) {
	rec := FiringRecord{
		ID:           GenerateID(),
		AutomationID: a.ID,
		Trigger:      trigger,
		StartedAt:    time.Now(),
		ActionsTotal: len(a.Actions),
	}

	if !e.evaluator.EvaluateAll(a.Conditions, time.Now()) {
		e.logger.Debug("conditions not met", "automation", a.ID, "trigger", trigger)
		rec.CompletedAt = time.Now()
		e.saveFiring(rec)
		return
	}
	rec.ConditionsMet = true

	e.logger.Info("automation firing", "automation", a.ID, "name", a.Name, "trigger", trigger)

	err := e.executor.ExecuteActions(ctx, a.Actions)
	rec.CompletedAt = time.Now()
	rec.DurationMS = rec.CompletedAt.Sub(rec.StartedAt).Milliseconds()

	if err != nil {
		// Only shutdown cancellation aborts a sequence; an aborted firing
		// does not count as a completed run.
		msg := err.Error()
		rec.Error = &msg
		e.logger.Warn("firing interrupted", "automation", a.ID, "error", err)
		e.saveFiring(rec)
		return
	}

	updated, err := e.store.IncrementRunCount(a.ID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			e.logger.Error("run count update failed", "automation", a.ID, "error", err)
		}
		e.saveFiring(rec)
		return
	}

	if updated.MaxRuns != nil && updated.RunCount >= *updated.MaxRuns {
		if err := e.store.Remove(a.ID); err != nil && !errors.Is(err, ErrNotFound) {
			e.logger.Error("retirement failed", "automation", a.ID, "error", err)
		} else {
			e.logger.Info("automation retired",
				"automation", a.ID, "run_count", updated.RunCount, "max_runs", *updated.MaxRuns)
		}
	}

	e.saveFiring(rec)

	if e.hub != nil {
		e.hub.Broadcast("automations", map[string]any{
			"type":          "automation.fired",
			"automation_id": a.ID,
			"trigger":       trigger,
			"run_count":     updated.RunCount,
			"duration_ms":   rec.DurationMS,
		})
	}
	if e.telemetry != nil {
		e.telemetry.RecordFiring(a.ID, trigger, rec.CompletedAt.Sub(rec.StartedAt), true)
	}
}

// saveFiring appends a firing record to the history. History failures
// never affect the firing itself.
func (e *Engine) saveFiring(rec FiringRecord) {
	if e.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.repo.SaveFiring(ctx, rec); err != nil {
		e.logger.Error("saving firing record failed",
			"automation", rec.AutomationID, "error", fmt.Errorf("history: %w", err))
	}
}
