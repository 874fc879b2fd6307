package claims

import (
	"errors"
	"fmt"

	nativecommon "lockdrop/native/common"
)

var (
	ErrInvalidAddress         = fmt.Errorf("claims: %w", nativecommon.ErrInvalidAddress)
	ErrUnauthorized           = fmt.Errorf("claims: %w", nativecommon.ErrUnauthorized)
	ErrInvalidCampaign        = errors.New("claims: invalid campaign")
	ErrCampaignIDReserved     = errors.New("claims: campaign id reserved")
	ErrCampaignAlreadyCreated = errors.New("claims: campaign already created")
	ErrCampaignNotFound       = errors.New("claims: campaign not found")
	ErrCampaignInactive       = errors.New("claims: campaign inactive")
	ErrAlreadyClaimed         = errors.New("claims: already claimed")
	ErrUserNotRegistered      = errors.New("claims: user not registered")
	ErrUserNotActive          = errors.New("claims: user not active")
	ErrUserNotEligible        = errors.New("claims: user not eligible")
	ErrDeadlinePassed         = errors.New("claims: deadline passed")
	ErrBatchTooLarge          = errors.New("claims: batch too large")
	ErrTimedNotConfigured     = errors.New("claims: timed campaign not configured")
	ErrCollaboratorMissing    = errors.New("claims: collaborator not configured")
	ErrPaymentFailed          = errors.New("claims: payment failed")
	ErrMintFailed             = errors.New("claims: mint failed")
	ErrPointsFailed           = errors.New("claims: point accrual failed")
)
