package credit

import "github.com/holiman/uint256"

// MinCeilingDuration is the smallest accepted ceiling (one week, in seconds).
const MinCeilingDuration uint64 = 7 * 24 * 60 * 60

// LockRecord is a snapshot of a user's position in the external lock pool.
// LockEndTime >= LockStartTime whenever Locked is set.
type LockRecord struct {
	User          [20]byte
	LockedAmount  *uint256.Int
	LockStartTime uint64
	LockEndTime   uint64
	Locked        bool
}

// LockPool exposes read-only access to lock positions.
type LockPool interface {
	LockRecord(user [20]byte) (LockRecord, error)
}
