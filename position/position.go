package position

import (
	"fmt"
	"time"

	"github.com/dnldd/dojo/shared"
	"github.com/google/uuid"
)

// PositionStatus represents the status of a position.
type PositionStatus int

const (
	Active PositionStatus = iota
	Closed
)

// String stringifies the provided position status.
func (s PositionStatus) String() string {
	switch s {
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Position represents an open market position.
type Position struct {
	ID         string
	Direction  shared.Direction
	Size       float64
	EntryPrice float64
	EntryTime  time.Time
	Status     PositionStatus
}

// Trade represents a closed position.
type Trade struct {
	Position
	ExitPrice float64
	ExitTime  time.Time
	PNL       float64
}

// NewPosition initializes a new single unit position.
func NewPosition(direction shared.Direction, price float64, at time.Time) (*Position, error) {
	if direction != shared.Long && direction != shared.Short {
		return nil, fmt.Errorf("unknown direction for position: %s", direction.String())
	}

	return &Position{
		ID:         uuid.New().String(),
		Direction:  direction,
		Size:       1,
		EntryPrice: price,
		EntryTime:  at,
		Status:     Active,
	}, nil
}

// PNL returns the profit or loss of the position at the provided price.
func (p *Position) PNL(price float64) float64 {
	return (price - p.EntryPrice) * p.Direction.Sign() * p.Size
}

// PNLPercent returns the percentage change of the position at the provided price.
func (p *Position) PNLPercent(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}

	return ((price - p.EntryPrice) * p.Direction.Sign() / p.EntryPrice) * 100
}

// Close closes the position at the provided price.
func (p *Position) Close(price float64, at time.Time) Trade {
	p.Status = Closed

	return Trade{
		Position:  *p,
		ExitPrice: price,
		ExitTime:  at,
		PNL:       p.PNL(price),
	}
}
