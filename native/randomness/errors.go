package randomness

import (
	"errors"
	"fmt"

	nativecommon "lockdrop/native/common"
)

var (
	ErrUnauthorized     = fmt.Errorf("randomness: %w", nativecommon.ErrUnauthorized)
	ErrInvalidAddress   = fmt.Errorf("randomness: %w", nativecommon.ErrInvalidAddress)
	ErrUnknownConsumer  = errors.New("randomness: unknown consumer")
	ErrUnknownRequest   = errors.New("randomness: unknown request")
	ErrAlreadyFulfilled = errors.New("randomness: request already fulfilled")
	ErrNoFulfiller      = errors.New("randomness: fulfiller not configured")
)
