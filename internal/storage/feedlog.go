package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Feed log phases.
const (
	PhaseStart = "start"
	PhaseEnd   = "end"
)

// FeedLogEntry is one recorded grain output phase.
type FeedLogEntry struct {
	ID         int64     `json:"id"`
	RecordedAt time.Time `json:"recorded_at"`
	Phase      string    `json:"phase"`
	OutputType string    `json:"output_type"`
	PlanID     *int      `json:"plan_id,omitempty"`
	Expected   int       `json:"expected"`
	Actual     *int      `json:"actual,omitempty"`
	Mismatch   bool      `json:"mismatch"`
}

// FeedLogFilter controls which entries List returns.
type FeedLogFilter struct {
	Phase  string    // optional: start or end
	Since  time.Time // optional: entries recorded at or after
	Limit  int       // default 50, max 200
	Offset int       // pagination offset
}

// FeedLogPage is a page of feed log entries, newest first.
type FeedLogPage struct {
	Entries []FeedLogEntry `json:"entries"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// RecordFeed appends e to the feed log. ID is filled in; RecordedAt is set
// to now when zero.
func (s *Store) RecordFeed(ctx context.Context, e *FeedLogEntry) error {
	if e.Phase != PhaseStart && e.Phase != PhaseEnd {
		return fmt.Errorf("%w: %q", ErrInvalidPhase, e.Phase)
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = s.now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO feed_log (recorded_at, phase, output_type, plan_id, expected, actual, mismatch)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RecordedAt.UTC().Format(time.RFC3339), e.Phase, e.OutputType,
		nullableInt(e.PlanID), e.Expected, nullableInt(e.Actual), e.Mismatch,
	)
	if err != nil {
		return fmt.Errorf("inserting feed log entry: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading feed log id: %w", err)
	}
	return nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// ListFeeds returns feed log entries matching filter, most recent first.
func (s *Store) ListFeeds(ctx context.Context, filter FeedLogFilter) (*FeedLogPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for feed log queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Phase != "" {
		conditions = append(conditions, "phase = ?")
		args = append(args, filter.Phase)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.RFC3339))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM feed_log " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting feed log: %w", err)
	}

	query := "SELECT id, recorded_at, phase, output_type, plan_id, expected, actual, mismatch FROM feed_log " +
		where + " ORDER BY recorded_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying feed log: %w", err)
	}
	defer rows.Close()

	entries := []FeedLogEntry{}
	for rows.Next() {
		var e FeedLogEntry
		var recordedAt string
		var planID, actual sql.NullInt64
		if err := rows.Scan(&e.ID, &recordedAt, &e.Phase, &e.OutputType, &planID, &e.Expected, &actual, &e.Mismatch); err != nil {
			return nil, fmt.Errorf("scanning feed log entry: %w", err)
		}
		t, err := time.Parse(time.RFC3339, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing feed log timestamp %q: %w", recordedAt, err)
		}
		e.RecordedAt = t
		if planID.Valid {
			v := int(planID.Int64)
			e.PlanID = &v
		}
		if actual.Valid {
			v := int(actual.Int64)
			e.Actual = &v
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feed log: %w", err)
	}

	return &FeedLogPage{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// PruneFeeds deletes entries recorded before cutoff and returns how many
// were removed.
func (s *Store) PruneFeeds(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM feed_log WHERE recorded_at < ?", cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("pruning feed log: %w", err)
	}
	return res.RowsAffected()
}
