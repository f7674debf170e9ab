package automation

import (
	"context"
	"time"
)

// FiringRecord captures one end-to-end execution attempt of an
// automation, including attempts stopped by failing pre-conditions.
type FiringRecord struct {
	ID           string    `json:"id"`
	AutomationID string    `json:"automation_id"`
	Trigger      string    `json:"trigger"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`

	// ConditionsMet is false when pre-conditions stopped the firing
	// before any action ran.
	ConditionsMet bool `json:"conditions_met"`

	// ActionsTotal is the length of the top-level action list.
	ActionsTotal int `json:"actions_total"`

	// Error is set when the sequence was interrupted (engine shutdown).
	Error *string `json:"error,omitempty"`

	DurationMS int64 `json:"duration_ms"`
}

// Repository persists the firing history.
//
// Implementations must be safe for concurrent use; firings append
// records from independent goroutines.
type Repository interface {
	// SaveFiring appends one firing record.
	SaveFiring(ctx context.Context, rec FiringRecord) error

	// ListFirings returns the most recent records for an automation,
	// newest first, capped at limit.
	ListFirings(ctx context.Context, automationID string, limit int) ([]FiringRecord, error)
}
