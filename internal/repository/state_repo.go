package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lamp_control/internal/models"
)

type StateSQLite struct {
	db *sql.DB
	// now is swapped in tests
	now func() time.Time
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db, now: time.Now}
}

const (
	upsertStateSQL = `
		INSERT INTO device_state (device_id, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			state=excluded.state,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT state FROM device_state WHERE device_id=?
	`

	selectAllStatesSQL = `
		SELECT device_id, state, updated_at FROM device_state ORDER BY device_id ASC
	`
)

// marshalState converts the state to its stored JSON text. The distance readout is
// kept; it is part of what clients get replayed on connect.
func marshalState(s models.DeviceState) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalState(s string) (models.DeviceState, error) {
	var st models.DeviceState
	if err := json.Unmarshal([]byte(s), &st); err != nil {
		return models.DeviceState{}, err
	}
	return st, nil
}

// Save upserts the row for deviceID.
func (r *StateSQLite) Save(ctx context.Context, deviceID string, state models.DeviceState) error {
	if deviceID == "" {
		return errors.New("save state: empty device id")
	}
	raw, err := marshalState(state)
	if err != nil {
		return fmt.Errorf("marshal state for %q: %w", deviceID, err)
	}
	_, err = r.db.ExecContext(ctx, upsertStateSQL, deviceID, raw, r.now().UTC())
	return err
}

// Load fetches the stored state. ok is false when the device never reported.
func (r *StateSQLite) Load(ctx context.Context, deviceID string) (models.DeviceState, bool, error) {
	var raw string
	if err := r.db.QueryRowContext(ctx, selectStateSQL, deviceID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DeviceState{}, false, nil
		}
		return models.DeviceState{}, false, err
	}
	st, err := unmarshalState(raw)
	if err != nil {
		return models.DeviceState{}, false, fmt.Errorf("decode state for %q: %w", deviceID, err)
	}
	return st, true, nil
}

// List returns every stored device ordered by id. Online is left false; the hub fills it.
func (r *StateSQLite) List(ctx context.Context) ([]models.DeviceRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectAllStatesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.DeviceRecord, 0, 4)
	for rows.Next() {
		var (
			rec models.DeviceRecord
			raw string
		)
		if err := rows.Scan(&rec.DeviceID, &raw, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		if rec.State, err = unmarshalState(raw); err != nil {
			return nil, fmt.Errorf("decode state for %q: %w", rec.DeviceID, err)
		}
		rec.UpdatedAt = rec.UpdatedAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
