package common

import (
	"errors"
	"math"
	"testing"
)

func TestCheckQuotaLimit(t *testing.T) {
	q := Quota{MaxPerEpoch: 10, EpochSeconds: 60}
	prev := QuotaNow{EpochID: 1}

	next, err := CheckQuota(q, 1, prev, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Count != 10 {
		t.Fatalf("unexpected count: %d", next.Count)
	}

	denied, err := CheckQuota(q, 1, next, 1)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if denied != next {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 2, next, 1)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.EpochID != 2 || rollover.Count != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckQuotaOverflow(t *testing.T) {
	prev := QuotaNow{Count: math.MaxUint32, EpochID: 3}
	if _, err := CheckQuota(Quota{}, 3, prev, 1); !errors.Is(err, ErrQuotaCounterOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestQuotaEpoch(t *testing.T) {
	q := Quota{MaxPerEpoch: 1, EpochSeconds: 3600}
	if !q.Enabled() {
		t.Fatalf("expected quota enabled")
	}
	if got := q.Epoch(7200); got != 2 {
		t.Fatalf("unexpected epoch %d", got)
	}
	if (Quota{}).Enabled() || (Quota{}).Epoch(100) != 0 {
		t.Fatalf("zero quota must be disabled")
	}
}
