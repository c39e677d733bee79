package pond

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for pond persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Create inserts a new pond and its blank feeder info record in one
	// transaction. Assigns ID and timestamps when missing.
	// Returns ErrPondExists if the ID is already taken.
	Create(ctx context.Context, p *Pond) error

	// GetByID retrieves a pond by its unique identifier.
	// Returns ErrPondNotFound if the pond does not exist.
	GetByID(ctx context.Context, id string) (*Pond, error)

	// List retrieves all ponds ordered by name.
	List(ctx context.Context) ([]Pond, error)

	// Update modifies an existing pond.
	// Returns ErrPondNotFound if the pond does not exist.
	Update(ctx context.Context, p *Pond) error

	// Delete removes a pond by ID and returns its source so the caller
	// can cascade schedule cleanup. The feeder info row goes with the
	// pond via the schema's ON DELETE CASCADE.
	// Returns ErrPondNotFound if the pond does not exist.
	Delete(ctx context.Context, id string) (source string, err error)

	// GetFeederInfo retrieves the feed description for a pond.
	// Returns ErrPondNotFound if the pond does not exist.
	GetFeederInfo(ctx context.Context, pondID string) (*FeederInfo, error)

	// UpdateFeederInfo replaces the feed description for a pond.
	// Returns ErrPondNotFound if the pond does not exist.
	UpdateFeederInfo(ctx context.Context, info *FeederInfo) error
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

// Create inserts a pond and its blank feeder info in one transaction.
func (r *SQLiteRepository) Create(ctx context.Context, p *Pond) error {
	if err := p.Validate(); err != nil {
		return err
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning create transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ponds (id, name, commodity, total_stock, stocked_at, area,
			source, feeder_count, output_total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Commodity, p.TotalStock, p.StockedAt, p.Area,
		p.Source, p.FeederCount, p.OutputTotal,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPondExists
		}
		return fmt.Errorf("inserting pond: %w", err)
	}

	// Blank feed description, filled in later via UpdateFeederInfo.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO feeder_info (pond_id, feed_type, feed_size, updated_at)
		VALUES (?, '', '', ?)`,
		p.ID, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting feeder info: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing create transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a pond by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Pond, error) {
	query := `
		SELECT id, name, commodity, total_stock, stocked_at, area,
			source, feeder_count, output_total, created_at, updated_at
		FROM ponds
		WHERE id = ?`

	p, err := scanPond(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPondNotFound
		}
		return nil, fmt.Errorf("querying pond by id: %w", err)
	}
	return p, nil
}

// List retrieves all ponds ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Pond, error) {
	query := `
		SELECT id, name, commodity, total_stock, stocked_at, area,
			source, feeder_count, output_total, created_at, updated_at
		FROM ponds
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying ponds: %w", err)
	}
	defer rows.Close()

	var ponds []Pond
	for rows.Next() {
		p, err := scanPond(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pond: %w", err)
		}
		ponds = append(ponds, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ponds: %w", err)
	}
	return ponds, nil
}

// Update modifies an existing pond.
func (r *SQLiteRepository) Update(ctx context.Context, p *Pond) error {
	if err := p.Validate(); err != nil {
		return err
	}

	p.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE ponds
		SET name = ?, commodity = ?, total_stock = ?, stocked_at = ?,
			area = ?, source = ?, feeder_count = ?, output_total = ?,
			updated_at = ?
		WHERE id = ?`,
		p.Name, p.Commodity, p.TotalStock, p.StockedAt,
		p.Area, p.Source, p.FeederCount, p.OutputTotal,
		p.UpdatedAt.Format(time.RFC3339Nano), p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating pond: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating pond: %w", err)
	}
	if affected == 0 {
		return ErrPondNotFound
	}
	return nil
}

// Delete removes a pond and returns its source for cascade cleanup.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) (string, error) {
	var source string
	err := r.db.QueryRowContext(ctx,
		`SELECT source FROM ponds WHERE id = ?`, id).Scan(&source)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrPondNotFound
		}
		return "", fmt.Errorf("querying pond source: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM ponds WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("deleting pond: %w", err)
	}
	return source, nil
}

// GetFeederInfo retrieves the feed description for a pond.
func (r *SQLiteRepository) GetFeederInfo(ctx context.Context, pondID string) (*FeederInfo, error) {
	var info FeederInfo
	var updatedAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT pond_id, feed_type, feed_size, updated_at
		FROM feeder_info
		WHERE pond_id = ?`, pondID,
	).Scan(&info.PondID, &info.FeedType, &info.FeedSize, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPondNotFound
		}
		return nil, fmt.Errorf("querying feeder info: %w", err)
	}
	info.UpdatedAt = parseTimestamp(updatedAt)
	return &info, nil
}

// UpdateFeederInfo replaces the feed description for a pond.
func (r *SQLiteRepository) UpdateFeederInfo(ctx context.Context, info *FeederInfo) error {
	info.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE feeder_info
		SET feed_type = ?, feed_size = ?, updated_at = ?
		WHERE pond_id = ?`,
		info.FeedType, info.FeedSize,
		info.UpdatedAt.Format(time.RFC3339Nano), info.PondID,
	)
	if err != nil {
		return fmt.Errorf("updating feeder info: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating feeder info: %w", err)
	}
	if affected == 0 {
		return ErrPondNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanPond(s scanner) (*Pond, error) {
	var p Pond
	var createdAt, updatedAt string
	err := s.Scan(&p.ID, &p.Name, &p.Commodity, &p.TotalStock, &p.StockedAt,
		&p.Area, &p.Source, &p.FeederCount, &p.OutputTotal,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = parseTimestamp(createdAt)
	p.UpdatedAt = parseTimestamp(updatedAt)
	return &p, nil
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

// isUniqueViolation reports whether an error is a SQLite unique
// constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
