package server

import (
	"errors"
	"log/slog"
	"net/http"

	"lockdrop/native/claims"
	nativecommon "lockdrop/native/common"
	"lockdrop/native/credit"
	"lockdrop/native/randomness"
	"lockdrop/native/whitelist"
	"lockdrop/services/claimsd/collab"
)

// statusFor maps module errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusLocked
	case errors.Is(err, nativecommon.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, nativecommon.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, nativecommon.ErrInvalidAddress),
		errors.Is(err, claims.ErrInvalidCampaign),
		errors.Is(err, claims.ErrCampaignIDReserved),
		errors.Is(err, claims.ErrBatchTooLarge),
		errors.Is(err, credit.ErrInvalidCeiling),
		errors.Is(err, whitelist.ErrEmptyBatch),
		errors.Is(err, randomness.ErrUnknownConsumer):
		return http.StatusBadRequest
	case errors.Is(err, claims.ErrCampaignNotFound),
		errors.Is(err, randomness.ErrUnknownRequest),
		errors.Is(err, collab.ErrUnknownAsset):
		return http.StatusNotFound
	case errors.Is(err, claims.ErrCampaignAlreadyCreated),
		errors.Is(err, claims.ErrAlreadyClaimed),
		errors.Is(err, whitelist.ErrDuplicateRestriction),
		errors.Is(err, whitelist.ErrNotRestricted),
		errors.Is(err, randomness.ErrAlreadyFulfilled):
		return http.StatusConflict
	case errors.Is(err, claims.ErrCampaignInactive),
		errors.Is(err, claims.ErrUserNotRegistered),
		errors.Is(err, claims.ErrUserNotActive),
		errors.Is(err, claims.ErrUserNotEligible),
		errors.Is(err, claims.ErrDeadlinePassed),
		errors.Is(err, claims.ErrTimedNotConfigured),
		errors.Is(err, claims.ErrPaymentFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, claims.ErrCollaboratorMissing),
		errors.Is(err, credit.ErrNoLockPool),
		errors.Is(err, whitelist.ErrNoResolver),
		errors.Is(err, randomness.ErrNoFulfiller):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// outcomeFor labels err for the claim counters.
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, claims.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, claims.ErrUserNotEligible),
		errors.Is(err, claims.ErrUserNotRegistered),
		errors.Is(err, claims.ErrUserNotActive):
		return "ineligible"
	case errors.Is(err, claims.ErrDeadlinePassed):
		return "deadline"
	case errors.Is(err, claims.ErrPaymentFailed):
		return "payment_failed"
	case errors.Is(err, claims.ErrMintFailed):
		return "mint_failed"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	default:
		return "rejected"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
