package common

import "errors"

var (
	ErrModulePaused = errors.New("module paused")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidAddress is returned when a zero address is supplied where a
	// concrete account is required.
	ErrInvalidAddress = errors.New("invalid address")
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// RoleView exposes role membership lookups.
type RoleView interface {
	HasRole(role string, addr []byte) bool
}

// RequireRole returns ErrUnauthorized unless caller holds role.
func RequireRole(v RoleView, role string, caller [20]byte) error {
	if v == nil || caller == ([20]byte{}) || !v.HasRole(role, caller[:]) {
		return ErrUnauthorized
	}
	return nil
}
