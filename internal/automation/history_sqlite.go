package automation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// firingColumns is the SELECT column list for firing queries.
const firingColumns = `id, automation_id, trigger_desc, started_at, completed_at,
			conditions_met, actions_total, error, duration_ms`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed firing history.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SaveFiring appends one firing record.
func (r *SQLiteRepository) SaveFiring(ctx context.Context, rec FiringRecord) error {
	query := `INSERT INTO firings (` + firingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.AutomationID,
		rec.Trigger,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.CompletedAt.UTC().Format(time.RFC3339Nano),
		boolToInt(rec.ConditionsMet),
		rec.ActionsTotal,
		nullableString(rec.Error),
		rec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting firing: %w", err)
	}
	return nil
}

// ListFirings returns the most recent records for an automation, newest
// first.
func (r *SQLiteRepository) ListFirings(ctx context.Context, automationID string, limit int) ([]FiringRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + firingColumns + ` FROM firings
		WHERE automation_id = ?
		ORDER BY started_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, automationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying firings: %w", err)
	}
	defer rows.Close()

	var records []FiringRecord
	for rows.Next() {
		rec, err := scanFiringRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning firing: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating firings: %w", err)
	}
	return records, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFiringRow(scanner rowScanner) (FiringRecord, error) {
	var (
		rec           FiringRecord
		startedAt     string
		completedAt   string
		conditionsMet int
		errText       sql.NullString
	)

	err := scanner.Scan(
		&rec.ID,
		&rec.AutomationID,
		&rec.Trigger,
		&startedAt,
		&completedAt,
		&conditionsMet,
		&rec.ActionsTotal,
		&errText,
		&rec.DurationMS,
	)
	if err != nil {
		return FiringRecord{}, err
	}

	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return FiringRecord{}, fmt.Errorf("parsing started_at: %w", err)
	}
	if rec.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt); err != nil {
		return FiringRecord{}, fmt.Errorf("parsing completed_at: %w", err)
	}
	rec.ConditionsMet = conditionsMet != 0
	if errText.Valid {
		rec.Error = &errText.String
	}
	return rec, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
