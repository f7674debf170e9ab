// Package automation implements the Hearth rule engine.
//
// An Automation combines triggers (OR-combined), conditions
// (AND-combined) and an ordered action list. The package owns the full
// pipeline: the Store persists the rule list as a JSON file and fans out
// change notifications; the Scheduler runs timer triggers (cron, daily
// time, one-shot datetime, interval) as cron jobs, rebuilt in full on
// every store change; event triggers (device state, device event, raw
// MQTT) are matched against incoming transport events; the Evaluator
// decides boolean condition trees against wall-clock time and live
// device state; the Executor runs actions sequentially, including
// delays, recursion into conditional branches, device commands, raw
// publishes and external tool calls; and the Engine ties it together
// with per-firing run bookkeeping, max_runs retirement and an optional
// SQLite firing history.
//
// Collaborators (device transport, entity resolution, tool invocation,
// WebSocket broadcast) enter through small interfaces so the engine is
// testable with fakes.
package automation
