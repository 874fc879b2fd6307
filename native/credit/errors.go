package credit

import (
	"errors"
	"fmt"

	nativecommon "lockdrop/native/common"
)

var (
	ErrUnauthorized   = fmt.Errorf("credit: %w", nativecommon.ErrUnauthorized)
	ErrInvalidAddress = fmt.Errorf("credit: %w", nativecommon.ErrInvalidAddress)
	ErrInvalidCeiling = errors.New("credit: invalid ceiling")
	ErrNoLockPool     = errors.New("credit: lock pool not configured")
)
