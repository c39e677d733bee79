package pond

import (
	"context"
	"fmt"

	"github.com/nerrad567/aquafeed-core/internal/infrastructure/logging"
)

// ScheduleStore is the slice of the feeder store the service needs for
// cascade cleanup. Satisfied by feeder.SQLiteRepository.
type ScheduleStore interface {
	DeleteSchedulesBySource(ctx context.Context, source string) (int64, error)
}

// Service wraps the repository with cross-domain behaviour: deleting a
// pond also removes every schedule owned by its source.
type Service struct {
	repo      Repository
	schedules ScheduleStore
	logger    *logging.Logger
}

// NewService creates a pond service.
func NewService(repo Repository, schedules ScheduleStore, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, schedules: schedules, logger: logger}
}

// Create inserts a new pond with its blank feeder info.
func (s *Service) Create(ctx context.Context, p *Pond) error {
	return s.repo.Create(ctx, p)
}

// GetByID retrieves a pond.
func (s *Service) GetByID(ctx context.Context, id string) (*Pond, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves all ponds.
func (s *Service) List(ctx context.Context) ([]Pond, error) {
	return s.repo.List(ctx)
}

// Update modifies an existing pond.
func (s *Service) Update(ctx context.Context, p *Pond) error {
	return s.repo.Update(ctx, p)
}

// Delete removes a pond and cascades schedule cleanup for its source.
//
// The pond row and its feeder info go first; a failure there aborts
// the whole operation. Schedule cleanup failure after the pond is gone
// is logged but not returned: the schedules reference a source that no
// longer has an owner, and a retry would need the already-deleted row.
func (s *Service) Delete(ctx context.Context, id string) error {
	source, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	removed, err := s.schedules.DeleteSchedulesBySource(ctx, source)
	if err != nil {
		s.logger.Warn("schedule cleanup failed after pond delete",
			"pond_id", id,
			"source", source,
			"error", err,
		)
		return nil
	}

	if removed > 0 {
		s.logger.Info("cascaded schedule cleanup",
			"pond_id", id,
			"source", source,
			"removed", removed,
		)
	}
	return nil
}

// GetFeederInfo retrieves the feed description for a pond.
func (s *Service) GetFeederInfo(ctx context.Context, pondID string) (*FeederInfo, error) {
	return s.repo.GetFeederInfo(ctx, pondID)
}

// UpdateFeederInfo replaces the feed description for a pond.
func (s *Service) UpdateFeederInfo(ctx context.Context, info *FeederInfo) error {
	if info.PondID == "" {
		return fmt.Errorf("%w: pond_id is required", ErrInvalidPond)
	}
	return s.repo.UpdateFeederInfo(ctx, info)
}
