package feeder

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for feeder state persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// InsertScheduleIfAbsent inserts a schedule entry unless one with an
	// identical tuple (source, hour, minute, portion) already exists.
	// Returns true if a row was inserted, false if the tuple was already
	// present. Idempotent under bus redelivery.
	InsertScheduleIfAbsent(ctx context.Context, entry *ScheduleEntry) (bool, error)

	// DeleteScheduleByTuple removes the entry whose tuple exactly matches.
	// Returns the number of rows removed (0 or 1). Removal of an absent
	// tuple is not an error.
	DeleteScheduleByTuple(ctx context.Context, source string, hour, minute, portion int) (int64, error)

	// DeleteSchedulesBySource removes every schedule for a source.
	// Used when the owning pond is deleted. Returns rows removed.
	DeleteSchedulesBySource(ctx context.Context, source string) (int64, error)

	// ListSchedulesBySource returns all schedules for a source in
	// insertion order.
	ListSchedulesBySource(ctx context.Context, source string) ([]ScheduleEntry, error)

	// AppendControl records a control action. The store assigns ID and
	// CreatedAt. Appends are unconditional: control history is never
	// deduplicated.
	AppendControl(ctx context.Context, record *ControlRecord) error

	// ListControlsBySource returns control history for a source in
	// chronological order.
	ListControlsBySource(ctx context.Context, source string) ([]ControlRecord, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// InsertScheduleIfAbsent inserts a schedule entry unless its tuple exists.
//
// The UNIQUE(source, hour, minute, portion) constraint backs the
// ON CONFLICT clause, so a replayed ADD lands as a zero-row insert
// rather than an error or a duplicate.
func (r *SQLiteRepository) InsertScheduleIfAbsent(ctx context.Context, entry *ScheduleEntry) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, err
	}

	action := entry.Action
	if action == "" {
		action = ActionAdd
	}
	createdAt := time.Now().UTC()

	query := `
		INSERT INTO schedules (source, hour, minute, portion, action, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, hour, minute, portion) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		entry.Source, entry.Hour, entry.Minute, entry.Portion,
		action, createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("%w: inserting schedule: %w", ErrStoreUnavailable, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: inserting schedule: %w", ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return false, nil
	}

	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}
	entry.Action = action
	entry.CreatedAt = createdAt
	return true, nil
}

// DeleteScheduleByTuple removes the entry matching the exact tuple.
func (r *SQLiteRepository) DeleteScheduleByTuple(ctx context.Context, source string, hour, minute, portion int) (int64, error) {
	query := `
		DELETE FROM schedules
		WHERE source = ? AND hour = ? AND minute = ? AND portion = ?`

	result, err := r.db.ExecContext(ctx, query, source, hour, minute, portion)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting schedule: %w", ErrStoreUnavailable, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: deleting schedule: %w", ErrStoreUnavailable, err)
	}
	return affected, nil
}

// DeleteSchedulesBySource removes every schedule owned by a source.
func (r *SQLiteRepository) DeleteSchedulesBySource(ctx context.Context, source string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE source = ?`, source)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting schedules for source: %w", ErrStoreUnavailable, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: deleting schedules for source: %w", ErrStoreUnavailable, err)
	}
	return affected, nil
}

// ListSchedulesBySource returns schedules for a source in insertion order.
func (r *SQLiteRepository) ListSchedulesBySource(ctx context.Context, source string) ([]ScheduleEntry, error) {
	query := `
		SELECT id, source, hour, minute, portion, action, created_at
		FROM schedules
		WHERE source = ?
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, source)
	if err != nil {
		return nil, fmt.Errorf("%w: querying schedules: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var entries []ScheduleEntry
	for rows.Next() {
		var entry ScheduleEntry
		var createdAt string
		if err := rows.Scan(&entry.ID, &entry.Source, &entry.Hour, &entry.Minute,
			&entry.Portion, &entry.Action, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scanning schedule: %w", ErrStoreUnavailable, err)
		}
		entry.CreatedAt = parseTimestamp(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating schedules: %w", ErrStoreUnavailable, err)
	}
	return entries, nil
}

// AppendControl records a control action with a fresh ID and timestamp.
func (r *SQLiteRepository) AppendControl(ctx context.Context, record *ControlRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	record.ID = uuid.NewString()
	record.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO controls (id, source, action, portion, created_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.Source, record.Action, record.Portion,
		record.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: appending control: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// ListControlsBySource returns control history in chronological order.
func (r *SQLiteRepository) ListControlsBySource(ctx context.Context, source string) ([]ControlRecord, error) {
	query := `
		SELECT id, source, action, portion, created_at
		FROM controls
		WHERE source = ?
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, source)
	if err != nil {
		return nil, fmt.Errorf("%w: querying controls: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var records []ControlRecord
	for rows.Next() {
		var record ControlRecord
		var createdAt string
		if err := rows.Scan(&record.ID, &record.Source, &record.Action,
			&record.Portion, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scanning control: %w", ErrStoreUnavailable, err)
		}
		record.CreatedAt = parseTimestamp(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating controls: %w", ErrStoreUnavailable, err)
	}
	return records, nil
}

// parseTimestamp parses a stored RFC3339 timestamp, tolerating legacy
// rows without sub-second precision.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
