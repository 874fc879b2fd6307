package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrQuotaCounterOverflow = errors.New("quota counter overflow")
)

// QuotaNow captures the usage counter of one address in one epoch.
type QuotaNow struct {
	Count   uint32
	EpochID uint64
}

// Quota bounds how many operations an address may perform per epoch. A zero
// MaxPerEpoch disables the limit.
type Quota struct {
	MaxPerEpoch  uint32
	EpochSeconds uint32
}

// Enabled reports whether the quota limits anything.
func (q Quota) Enabled() bool {
	return q.MaxPerEpoch > 0 && q.EpochSeconds > 0
}

// Epoch maps a unix timestamp onto the quota epoch containing it.
func (q Quota) Epoch(unix uint64) uint64 {
	if q.EpochSeconds == 0 {
		return 0
	}
	return unix / uint64(q.EpochSeconds)
}

// CheckQuota verifies whether add more operations fit within the quota. The
// returned QuotaNow reflects the updated counter when the quota is not
// exceeded; on denial prev is returned unchanged.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, add uint32) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}
	if add > 0 {
		if next.Count > math.MaxUint32-add {
			return prev, ErrQuotaCounterOverflow
		}
		next.Count += add
	}
	if q.MaxPerEpoch > 0 && next.Count > q.MaxPerEpoch {
		return prev, ErrQuotaExceeded
	}
	return next, nil
}
