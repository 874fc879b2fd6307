package credit

import "github.com/holiman/uint256"

// Credit values a lock position. Credit grows linearly with the lock duration
// and saturates at the locked amount once the duration reaches ceiling:
//
//	credit = lockedAmount                              if duration >= ceiling
//	credit = floor(lockedAmount * duration / ceiling)  otherwise
//
// Unlocked or expired (now > LockEndTime) positions are worth nothing. The
// product is computed with a 512-bit intermediate so it cannot overflow.
func Credit(lock LockRecord, ceiling uint64, now uint64) *uint256.Int {
	if !lock.Locked || now > lock.LockEndTime || lock.LockedAmount == nil {
		return new(uint256.Int)
	}
	if lock.LockEndTime < lock.LockStartTime {
		// The pool guarantees end >= start for locked positions.
		panic("credit: locked position ends before it starts")
	}
	duration := lock.LockEndTime - lock.LockStartTime
	if duration >= ceiling {
		return new(uint256.Int).Set(lock.LockedAmount)
	}
	out, _ := new(uint256.Int).MulDivOverflow(lock.LockedAmount, uint256.NewInt(duration), uint256.NewInt(ceiling))
	return out
}
