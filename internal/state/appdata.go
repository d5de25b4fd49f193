package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// appDataEntry is a small JSON setting with the time it was written.
type appDataEntry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
}

var appData = &collection[appDataEntry]{
	name:   "app_data",
	key:    func(e *appDataEntry) string { return e.Key },
	values: func(*appDataEntry) []any { return nil },
}

// SetAppData stores value as JSON under key.
func (s *Store) SetAppData(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding app data %q: %w", key, err)
	}
	e := &appDataEntry{Key: key, Value: raw, Timestamp: s.now().UTC()}
	return s.update(ctx, "set app data", func(tx *sql.Tx) error {
		return appData.put(ctx, tx, e)
	})
}

// GetAppData decodes the value stored under key into dest. It returns false
// when the key is unknown or, with a positive maxAge, when the value is
// older than maxAge.
func (s *Store) GetAppData(ctx context.Context, key string, maxAge time.Duration, dest any) (bool, error) {
	var e *appDataEntry
	err := s.update(ctx, "get app data", func(tx *sql.Tx) error {
		var err error
		e, err = appData.get(ctx, tx, key)
		return err
	})
	if err != nil || e == nil {
		return false, err
	}
	if maxAge > 0 && s.now().Sub(e.Timestamp) > maxAge {
		return false, nil
	}
	if err := json.Unmarshal(e.Value, dest); err != nil {
		return false, fmt.Errorf("decoding app data %q: %w", key, err)
	}
	return true, nil
}
