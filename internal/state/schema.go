package state

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
)

// schemaVersion is stored in PRAGMA user_version.
const schemaVersion = 3

const schemaV1 = `
CREATE TABLE IF NOT EXISTS offline_bookings (
    key        TEXT PRIMARY KEY,
    data       TEXT    NOT NULL,
    hotel_id   INTEGER NOT NULL DEFAULT 0,
    status     TEXT    NOT NULL DEFAULT '',
    created_at TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_offline_bookings_hotel_id   ON offline_bookings (hotel_id);
CREATE INDEX IF NOT EXISTS idx_offline_bookings_status     ON offline_bookings (status);
CREATE INDEX IF NOT EXISTS idx_offline_bookings_created_at ON offline_bookings (created_at);

CREATE TABLE IF NOT EXISTS guest_directory (
    key       TEXT PRIMARY KEY,
    data      TEXT NOT NULL,
    name      TEXT NOT NULL DEFAULT '',
    last_stay TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_guest_directory_name      ON guest_directory (name);
CREATE INDEX IF NOT EXISTS idx_guest_directory_last_stay ON guest_directory (last_stay);

CREATE TABLE IF NOT EXISTS cached_rooms (
    key          TEXT PRIMARY KEY,
    data         TEXT    NOT NULL,
    hotel_id     INTEGER NOT NULL DEFAULT 0,
    room_type    TEXT    NOT NULL DEFAULT '',
    last_updated TEXT    NOT NULL DEFAULT '',
    room_number  TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_cached_rooms_hotel_id     ON cached_rooms (hotel_id);
CREATE INDEX IF NOT EXISTS idx_cached_rooms_room_type    ON cached_rooms (room_type);
CREATE INDEX IF NOT EXISTS idx_cached_rooms_last_updated ON cached_rooms (last_updated);
CREATE INDEX IF NOT EXISTS idx_cached_rooms_room_number  ON cached_rooms (room_number);

CREATE TABLE IF NOT EXISTS app_data (
    key  TEXT PRIMARY KEY,
    data TEXT NOT NULL
);
`

const schemaV2 = `
CREATE TABLE IF NOT EXISTS cached_bookings (
    key       TEXT PRIMARY KEY,
    data      TEXT    NOT NULL,
    hotel_id  INTEGER NOT NULL DEFAULT 0,
    room_id   INTEGER NOT NULL DEFAULT 0,
    check_in  TEXT    NOT NULL DEFAULT '',
    check_out TEXT    NOT NULL DEFAULT '',
    status    TEXT    NOT NULL DEFAULT '',
    source    TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_cached_bookings_hotel_id  ON cached_bookings (hotel_id);
CREATE INDEX IF NOT EXISTS idx_cached_bookings_room_id   ON cached_bookings (room_id);
CREATE INDEX IF NOT EXISTS idx_cached_bookings_check_in  ON cached_bookings (check_in);
CREATE INDEX IF NOT EXISTS idx_cached_bookings_check_out ON cached_bookings (check_out);
CREATE INDEX IF NOT EXISTS idx_cached_bookings_status    ON cached_bookings (status);
CREATE INDEX IF NOT EXISTS idx_cached_bookings_source    ON cached_bookings (source);

CREATE TABLE IF NOT EXISTS staff_sessions (
    key        TEXT PRIMARY KEY,
    data       TEXT    NOT NULL,
    user_id    INTEGER NOT NULL DEFAULT 0,
    email      TEXT    NOT NULL DEFAULT '',
    hotel_id   INTEGER NOT NULL DEFAULT 0,
    is_active  INTEGER NOT NULL DEFAULT 0,
    expires_at TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_staff_sessions_user_id    ON staff_sessions (user_id);
CREATE INDEX IF NOT EXISTS idx_staff_sessions_email      ON staff_sessions (email);
CREATE INDEX IF NOT EXISTS idx_staff_sessions_hotel_id   ON staff_sessions (hotel_id);
CREATE INDEX IF NOT EXISTS idx_staff_sessions_is_active  ON staff_sessions (is_active);
CREATE INDEX IF NOT EXISTS idx_staff_sessions_expires_at ON staff_sessions (expires_at);

ALTER TABLE cached_rooms ADD COLUMN is_available   INTEGER NOT NULL DEFAULT 0;
ALTER TABLE cached_rooms ADD COLUMN offline_status TEXT    NOT NULL DEFAULT '';
ALTER TABLE cached_rooms ADD COLUMN occupied_by    TEXT    NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS idx_cached_rooms_is_available   ON cached_rooms (is_available);
CREATE INDEX IF NOT EXISTS idx_cached_rooms_offline_status ON cached_rooms (offline_status);
CREATE INDEX IF NOT EXISTS idx_cached_rooms_occupied_by    ON cached_rooms (occupied_by);
`

// Room keys changed from room numbers to server ids; old snapshots are
// unusable and get refetched.
const schemaV3 = `DELETE FROM cached_rooms;`

var migrations = []struct {
	version int
	ddl     string
}{
	{1, schemaV1},
	{2, schemaV2},
	{3, schemaV3},
}

// requiredCollections must all exist after migration; anything less means
// the file is damaged and gets rebuilt.
var requiredCollections = []string{
	"offline_bookings",
	"guest_directory",
	"cached_rooms",
	"app_data",
	"cached_bookings",
	"staff_sessions",
}

// migrate brings the database up to schemaVersion inside one transaction.
func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := userVersion(ctx, tx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.ddl); err != nil {
			if name, ok := missingTable(err); ok {
				err = &SchemaError{Collection: name}
			}
			return fmt.Errorf("migrating to version %d: %w", m.version, err)
		}
	}
	if current < schemaVersion {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}
	}
	return tx.Commit()
}

func userVersion(ctx context.Context, q queryer) (int, error) {
	var v int
	if err := q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

func existingCollections(ctx context.Context, q queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func missingCollections(ctx context.Context, q queryer) ([]string, error) {
	have, err := existingCollections(ctx, q)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, name := range requiredCollections {
		if !slices.Contains(have, name) {
			missing = append(missing, name)
		}
	}
	return missing, nil
}
