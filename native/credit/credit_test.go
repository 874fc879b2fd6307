package credit

import (
	"testing"

	"github.com/holiman/uint256"
)

const week = MinCeilingDuration

func lockFor(amount uint64, start, end uint64) LockRecord {
	return LockRecord{
		LockedAmount:  uint256.NewInt(amount),
		LockStartTime: start,
		LockEndTime:   end,
		Locked:        true,
	}
}

func TestCreditHalfCeiling(t *testing.T) {
	lock := lockFor(1000, 0, 302400)
	got := Credit(lock, week, 100)
	if got.Uint64() != 500 {
		t.Fatalf("expected 500, got %s", got)
	}
}

func TestCreditZeroWhenUnlockedOrExpired(t *testing.T) {
	lock := lockFor(1000, 0, week)
	lock.Locked = false
	if got := Credit(lock, week, 10); !got.IsZero() {
		t.Fatalf("unlocked position must be worth 0, got %s", got)
	}
	lock.Locked = true
	if got := Credit(lock, week, week+1); !got.IsZero() {
		t.Fatalf("expired position must be worth 0, got %s", got)
	}
	if got := Credit(lock, week, week); got.Uint64() != 1000 {
		t.Fatalf("position at its end time still counts, got %s", got)
	}
}

func TestCreditMonotonicAndSaturating(t *testing.T) {
	const amount = 1_000_003
	prev := uint256.NewInt(0)
	for duration := uint64(0); duration < week; duration += 3607 {
		got := Credit(lockFor(amount, 1000, 1000+duration), week, 1000)
		if got.Lt(prev) {
			t.Fatalf("credit decreased at duration %d: %s < %s", duration, got, prev)
		}
		if got.Uint64() > amount {
			t.Fatalf("credit exceeds locked amount at duration %d", duration)
		}
		prev = got
	}
	for _, duration := range []uint64{week, week + 1, 10 * week} {
		got := Credit(lockFor(amount, 0, duration), week, 0)
		if got.Uint64() != amount {
			t.Fatalf("expected saturation at duration %d, got %s", duration, got)
		}
	}
}

func TestCreditFloorsDivision(t *testing.T) {
	got := Credit(lockFor(7, 0, 1), 3, 0)
	if got.Uint64() != 2 {
		t.Fatalf("expected floor(7/3)=2, got %s", got)
	}
}

func TestCreditLargeAmountDoesNotOverflow(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	lock := LockRecord{LockedAmount: max, LockStartTime: 0, LockEndTime: week / 2, Locked: true}
	got := Credit(lock, week, 0)
	want := new(uint256.Int).Rsh(max, 1)
	if !got.Eq(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestCreditPanicsOnInvertedLock(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for inverted lock")
		}
	}()
	Credit(lockFor(10, 100, 50), week, 0)
}
