package whitelist

import (
	"fmt"

	"lockdrop/core/events"
	nativecommon "lockdrop/native/common"
)

const (
	roleWhitelistOwner = "ROLE_WHITELIST_OWNER"
	moduleName         = "whitelist"
)

var restrictionPrefix = []byte("whitelist/restricted/")

func restrictionKey(category uint8) []byte {
	key := make([]byte, len(restrictionPrefix)+1)
	copy(key, restrictionPrefix)
	key[len(restrictionPrefix)] = category
	return key
}

type engineState interface {
	HasRole(role string, addr []byte) bool
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	Atomic(fn func() error) error
	Emit(events.Event)
}

// CollectionResolver maps a listed asset to its category.
type CollectionResolver interface {
	CategoryOf(assetID uint64) (uint8, error)
}

// Engine maintains the set of asset categories barred from listing.
type Engine struct {
	st       engineState
	resolver CollectionResolver
	pauses   nativecommon.PauseView
}

func NewEngine(st engineState, resolver CollectionResolver) *Engine {
	return &Engine{st: st, resolver: resolver}
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// AddRestriction restricts every category in ids. The batch is rejected as a
// whole when any category is already restricted or repeated.
func (e *Engine) AddRestriction(caller [20]byte, ids []uint8) error {
	return e.apply(caller, ids, true)
}

// RemoveRestriction lifts the restriction on every category in ids. The batch
// is rejected as a whole when any category is not currently restricted.
func (e *Engine) RemoveRestriction(caller [20]byte, ids []uint8) error {
	return e.apply(caller, ids, false)
}

func (e *Engine) apply(caller [20]byte, ids []uint8, restrict bool) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := nativecommon.RequireRole(e.st, roleWhitelistOwner, caller); err != nil {
		return ErrUnauthorized
	}
	if len(ids) == 0 {
		return ErrEmptyBatch
	}
	return e.st.Atomic(func() error {
		seen := make(map[uint8]struct{}, len(ids))
		for _, id := range ids {
			current, err := e.IsRestricted(id)
			if err != nil {
				return err
			}
			_, repeated := seen[id]
			seen[id] = struct{}{}
			switch {
			case restrict && (current || repeated):
				return fmt.Errorf("%w: %d", ErrDuplicateRestriction, id)
			case !restrict && (!current || repeated):
				return fmt.Errorf("%w: %d", ErrNotRestricted, id)
			}
			if err := e.st.KVPut(restrictionKey(id), restrict); err != nil {
				return err
			}
		}
		categories := append([]uint8(nil), ids...)
		if restrict {
			e.st.Emit(events.RestrictionsAdded{Categories: categories})
		} else {
			e.st.Emit(events.RestrictionsRemoved{Categories: categories})
		}
		return nil
	})
}

// IsRestricted reports whether category is currently restricted.
func (e *Engine) IsRestricted(category uint8) (bool, error) {
	var restricted bool
	ok, err := e.st.KVGet(restrictionKey(category), &restricted)
	if err != nil {
		return false, err
	}
	return ok && restricted, nil
}

// Restricted lists the restricted categories in ascending order.
func (e *Engine) Restricted() ([]uint8, error) {
	out := make([]uint8, 0)
	for id := 0; id <= 255; id++ {
		restricted, err := e.IsRestricted(uint8(id))
		if err != nil {
			return nil, err
		}
		if restricted {
			out = append(out, uint8(id))
		}
	}
	return out, nil
}

// CanList reports whether assetID belongs to an unrestricted category.
func (e *Engine) CanList(assetID uint64) (bool, error) {
	if e.resolver == nil {
		return false, ErrNoResolver
	}
	category, err := e.resolver.CategoryOf(assetID)
	if err != nil {
		return false, fmt.Errorf("whitelist: resolve asset %d: %w", assetID, err)
	}
	restricted, err := e.IsRestricted(category)
	if err != nil {
		return false, err
	}
	return !restricted, nil
}
