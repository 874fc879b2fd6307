package collab

import (
	"fmt"
	"time"
)

// ClockHeights derives block heights from wall-clock time for deployments
// without a chain to follow.
type ClockHeights struct {
	Genesis  time.Time
	Interval time.Duration
	Now      func() time.Time
}

// NewClockHeights returns a height source starting at genesisUnix and
// advancing one block every blockSeconds.
func NewClockHeights(genesisUnix int64, blockSeconds uint64) *ClockHeights {
	return &ClockHeights{
		Genesis:  time.Unix(genesisUnix, 0),
		Interval: time.Duration(blockSeconds) * time.Second,
		Now:      time.Now,
	}
}

// CurrentHeight implements claims.HeightSource.
func (h *ClockHeights) CurrentHeight() (uint64, error) {
	if h.Interval <= 0 {
		return 0, fmt.Errorf("collab: block interval must be positive")
	}
	now := h.Now()
	if now.Before(h.Genesis) {
		return 0, nil
	}
	return uint64(now.Sub(h.Genesis) / h.Interval), nil
}
