package feeder

import (
	"fmt"
	"time"
)

// Schedule mutation actions carried on the feeder/schedule topic.
// Values match the device firmware wire format exactly.
const (
	// ActionAdd requests insertion of a schedule tuple.
	ActionAdd = "ADD"

	// ActionRemove requests deletion of a schedule tuple.
	ActionRemove = "REMOVE"
)

// ScheduleEntry is one recurring feeding action for a source.
//
// The tuple (Source, Hour, Minute, Portion) is the natural key: two
// entries with an identical tuple are indistinguishable, and the store
// never holds more than one row per tuple. ID is a storage-assigned
// surrogate used only for stable insertion ordering.
type ScheduleEntry struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	Hour      int       `json:"hour"`
	Minute    int       `json:"minute"`
	Portion   int       `json:"portion"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the entry's fields against the firmware's accepted ranges.
func (e *ScheduleEntry) Validate() error {
	if e.Source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidSchedule)
	}
	if e.Hour < 0 || e.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range 0-23", ErrInvalidSchedule, e.Hour)
	}
	if e.Minute < 0 || e.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range 0-59", ErrInvalidSchedule, e.Minute)
	}
	if e.Portion <= 0 {
		return fmt.Errorf("%w: portion must be positive", ErrInvalidSchedule)
	}
	return nil
}

// Tuple returns the natural key as a printable string, used in log fields.
func (e *ScheduleEntry) Tuple() string {
	return fmt.Sprintf("%s/%02d:%02d/%d", e.Source, e.Hour, e.Minute, e.Portion)
}

// ControlRecord is one manual control action observed on the bus.
//
// Controls are append-only history: every bus control event is recorded
// as a new fact, never deduplicated. ID and CreatedAt are assigned by
// the store at append time.
type ControlRecord struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Action    string    `json:"action"`
	Portion   int       `json:"portion"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the record carries the minimum fields worth persisting.
// Action is a free-form token the firmware defines; devices may omit it,
// so only the source is required.
func (r *ControlRecord) Validate() error {
	if r.Source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidControl)
	}
	return nil
}
