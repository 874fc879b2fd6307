package whitelist

import (
	"errors"
	"fmt"

	nativecommon "lockdrop/native/common"
)

var (
	ErrUnauthorized         = fmt.Errorf("whitelist: %w", nativecommon.ErrUnauthorized)
	ErrEmptyBatch           = errors.New("whitelist: empty batch")
	ErrDuplicateRestriction = errors.New("whitelist: category already restricted")
	ErrNotRestricted        = errors.New("whitelist: category not restricted")
	ErrNoResolver           = errors.New("whitelist: collection resolver not configured")
)
