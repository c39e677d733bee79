package pond

import (
	"fmt"
	"time"
)

// Pond is a stocked body of water served by one or more feeder devices.
type Pond struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Commodity  string  `json:"commodity"`
	TotalStock int     `json:"total_stock"`
	StockedAt  string  `json:"stocked_at"`
	Area       float64 `json:"area"`

	// Source names the feeder device serving this pond. It is the
	// cascade key for schedule cleanup when the pond is deleted.
	Source string `json:"source"`

	FeederCount int `json:"feeder_count"`
	OutputTotal int `json:"output_total"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks required fields before persistence.
func (p *Pond) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPond)
	}
	if p.Source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidPond)
	}
	if p.TotalStock < 0 {
		return fmt.Errorf("%w: total_stock cannot be negative", ErrInvalidPond)
	}
	if p.Area < 0 {
		return fmt.Errorf("%w: area cannot be negative", ErrInvalidPond)
	}
	if p.FeederCount < 1 {
		return fmt.Errorf("%w: feeder_count must be at least 1", ErrInvalidPond)
	}
	return nil
}

// FeederInfo describes the feed loaded into a pond's feeder.
// One record exists per pond, created blank alongside it.
type FeederInfo struct {
	PondID    string    `json:"pond_id"`
	FeedType  string    `json:"feed_type"`
	FeedSize  string    `json:"feed_size"`
	UpdatedAt time.Time `json:"updated_at"`
}
