package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/plaf203-core/internal/feeding"
	"github.com/nerrad567/plaf203-core/internal/infrastructure/database"
	"github.com/nerrad567/plaf203-core/internal/protocol"
)

// KeyManualFeedQuantity is the settings key for the default manual feed size.
const KeyManualFeedQuantity = "manual_feed_quantity"

// Store reads and writes feeder state in SQLite.
type Store struct {
	db  *database.DB
	now func() time.Time
}

// NewStore creates a store over an open, migrated database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// LoadFoodPlans returns the stored plans in the order they were added.
func (s *Store) LoadFoodPlans(ctx context.Context) ([]feeding.Plan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT plan_id, hour, minute, weekdays, enable_audio, audio_times, grain_num
		 FROM food_plans ORDER BY position, plan_id`)
	if err != nil {
		return nil, fmt.Errorf("querying food plans: %w", err)
	}
	defer rows.Close()

	var plans []feeding.Plan
	for rows.Next() {
		var p feeding.Plan
		var hour, minute int
		var days string
		if err := rows.Scan(&p.ID, &hour, &minute, &days, &p.EnableAudio, &p.AudioTimes, &p.GrainNum); err != nil {
			return nil, fmt.Errorf("scanning food plan: %w", err)
		}
		p.Time = protocol.TimeOfDay{Hour: hour, Minute: minute}
		if err := json.Unmarshal([]byte(days), &p.Days); err != nil {
			return nil, fmt.Errorf("decoding weekdays of plan %d: %w", p.ID, err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating food plans: %w", err)
	}
	return plans, nil
}

// SaveFoodPlans replaces every stored plan with plans in one transaction.
// Position follows the slice order.
func (s *Store) SaveFoodPlans(ctx context.Context, plans []feeding.Plan) error {
	updated := s.now().UTC().Format(time.RFC3339)
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM food_plans"); err != nil {
			return fmt.Errorf("clearing food plans: %w", err)
		}
		for i, p := range plans {
			days, err := json.Marshal(p.Days)
			if err != nil {
				return fmt.Errorf("encoding weekdays of plan %d: %w", p.ID, err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO food_plans (plan_id, position, hour, minute, weekdays, enable_audio, audio_times, grain_num, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID, i, p.Time.Hour, p.Time.Minute, string(days), p.EnableAudio, p.AudioTimes, p.GrainNum, updated,
			)
			if err != nil {
				return fmt.Errorf("inserting food plan %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

// Setting returns the raw value stored under key. ok is false when the key
// has never been written.
func (s *Store) Setting(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("querying setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores value under key, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting setting %s: %w", key, err)
	}
	return nil
}

// LoadManualFeedQuantity returns the stored manual feed size.
func (s *Store) LoadManualFeedQuantity(ctx context.Context) (int, bool, error) {
	raw, ok, err := s.Setting(ctx, KeyManualFeedQuantity)
	if err != nil || !ok {
		return 0, false, err
	}
	qty, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s=%q", ErrInvalidSetting, KeyManualFeedQuantity, raw)
	}
	return qty, true, nil
}

// SaveManualFeedQuantity stores the manual feed size.
func (s *Store) SaveManualFeedQuantity(ctx context.Context, qty int) error {
	return s.SetSetting(ctx, KeyManualFeedQuantity, strconv.Itoa(qty))
}
