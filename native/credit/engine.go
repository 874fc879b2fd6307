package credit

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"lockdrop/core/events"
	nativecommon "lockdrop/native/common"
)

const (
	roleCreditAdmin = "ROLE_CREDIT_ADMIN"
	moduleName      = "credit"
)

var ceilingKey = []byte("credit/ceiling")

type engineState interface {
	HasRole(role string, addr []byte) bool
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	Atomic(fn func() error) error
	Emit(events.Event)
}

// Engine owns the credit ceiling and values positions read from the lock
// pool.
type Engine struct {
	st             engineState
	pool           LockPool
	pauses         nativecommon.PauseView
	clock          func() time.Time
	defaultCeiling uint64
}

// NewEngine creates a credit engine. defaultCeiling is reported until a
// ceiling has been written to state.
func NewEngine(st engineState, pool LockPool, defaultCeiling uint64) *Engine {
	return &Engine{st: st, pool: pool, clock: time.Now, defaultCeiling: defaultCeiling}
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetClock overrides the time source, primarily for deterministic tests.
func (e *Engine) SetClock(clock func() time.Time) {
	if e == nil || clock == nil {
		return
	}
	e.clock = clock
}

// InitGenesis stores the initial ceiling when none has been written yet.
func (e *Engine) InitGenesis(ceiling uint64) error {
	if ceiling < MinCeilingDuration {
		return fmt.Errorf("%w: %d below minimum %d", ErrInvalidCeiling, ceiling, MinCeilingDuration)
	}
	return e.st.Atomic(func() error {
		var existing uint64
		found, err := e.st.KVGet(ceilingKey, &existing)
		if err != nil || found {
			return err
		}
		return e.st.KVPut(ceilingKey, ceiling)
	})
}

// Ceiling returns the active ceiling in seconds.
func (e *Engine) Ceiling() (uint64, error) {
	var ceiling uint64
	found, err := e.st.KVGet(ceilingKey, &ceiling)
	if err != nil {
		return 0, err
	}
	if !found {
		return e.defaultCeiling, nil
	}
	return ceiling, nil
}

// UpdateCeiling replaces the ceiling. The new value must be at least
// MinCeilingDuration and differ from the current one.
func (e *Engine) UpdateCeiling(caller [20]byte, newCeiling uint64) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := nativecommon.RequireRole(e.st, roleCreditAdmin, caller); err != nil {
		return ErrUnauthorized
	}
	return e.st.Atomic(func() error {
		current, err := e.Ceiling()
		if err != nil {
			return err
		}
		if newCeiling < MinCeilingDuration {
			return fmt.Errorf("%w: %d below minimum %d", ErrInvalidCeiling, newCeiling, MinCeilingDuration)
		}
		if newCeiling == current {
			return fmt.Errorf("%w: unchanged", ErrInvalidCeiling)
		}
		if err := e.st.KVPut(ceilingKey, newCeiling); err != nil {
			return err
		}
		e.st.Emit(events.CreditCeilingUpdated{Old: current, New: newCeiling})
		return nil
	})
}

// CreditOf values the user's current lock position.
func (e *Engine) CreditOf(user [20]byte) (*uint256.Int, error) {
	if user == ([20]byte{}) {
		return nil, ErrInvalidAddress
	}
	if e.pool == nil {
		return nil, ErrNoLockPool
	}
	lock, err := e.pool.LockRecord(user)
	if err != nil {
		return nil, fmt.Errorf("credit: load lock: %w", err)
	}
	ceiling, err := e.Ceiling()
	if err != nil {
		return nil, err
	}
	return Credit(lock, ceiling, uint64(e.clock().Unix())), nil
}
