package claims

import (
	"errors"
	"fmt"
)

// Eligibility answers read-only claim predicates. Every answer reflects the
// ledger, so a pair that has been claimed is never reported as claimable.
type Eligibility struct {
	registry      *Registry
	ledger        *Ledger
	timed         *TimedStore
	profiles      ProfileService
	vault         VaultLedger
	maxViewLength uint32
}

func NewEligibility(registry *Registry, ledger *Ledger, timed *TimedStore, profiles ProfileService, vault VaultLedger, maxViewLength uint32) *Eligibility {
	if maxViewLength == 0 {
		maxViewLength = DefaultMaxViewLength
	}
	return &Eligibility{
		registry:      registry,
		ledger:        ledger,
		timed:         timed,
		profiles:      profiles,
		vault:         vault,
		maxViewLength: maxViewLength,
	}
}

// MaxViewLength returns the batch query limit.
func (e *Eligibility) MaxViewLength() uint32 { return e.maxViewLength }

// activeProfile returns the user's profile when the user is registered and
// active. ok is false otherwise.
func (e *Eligibility) activeProfile(user [20]byte) (Profile, bool, error) {
	if e.profiles == nil {
		return Profile{}, false, fmt.Errorf("%w: profile service", ErrCollaboratorMissing)
	}
	registered, err := e.profiles.IsRegistered(user)
	if err != nil || !registered {
		return Profile{}, false, err
	}
	profile, err := e.profiles.Profile(user)
	if err != nil {
		return Profile{}, false, err
	}
	return profile, profile.Active, nil
}

// campaignOpen applies the per-campaign predicate for a user whose profile is
// already known to be active.
func (e *Eligibility) campaignOpen(user [20]byte, id uint8, profile Profile) (bool, error) {
	claimed, err := e.ledger.HasClaimed(user, id)
	if err != nil || claimed {
		return false, err
	}
	campaign, ok, err := e.registry.Campaign(id)
	if err != nil || !ok {
		return false, err
	}
	if !campaign.Active {
		return false, nil
	}
	return profile.TierID < campaign.TierThreshold, nil
}

// CanClaim reports whether user could claim campaign id right now.
func (e *Eligibility) CanClaim(user [20]byte, id uint8) (bool, error) {
	if user == ([20]byte{}) {
		return false, ErrInvalidAddress
	}
	profile, ok, err := e.activeProfile(user)
	if err != nil || !ok {
		return false, err
	}
	return e.campaignOpen(user, id, profile)
}

// CanClaimBatch evaluates CanClaim for each id. An unregistered or inactive
// user yields an empty slice rather than a slice of false values.
func (e *Eligibility) CanClaimBatch(user [20]byte, ids []uint8) ([]bool, error) {
	if user == ([20]byte{}) {
		return nil, ErrInvalidAddress
	}
	if uint64(len(ids)) > uint64(e.maxViewLength) {
		return nil, fmt.Errorf("%w: %d ids exceeds %d", ErrBatchTooLarge, len(ids), e.maxViewLength)
	}
	profile, ok, err := e.activeProfile(user)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []bool{}, nil
	}
	out := make([]bool, len(ids))
	for i, id := range ids {
		open, err := e.campaignOpen(user, id, profile)
		if err != nil {
			return nil, err
		}
		out[i] = open
	}
	return out, nil
}

// CanClaimTimed reports whether user could claim the time-boxed campaign at
// the supplied block height.
func (e *Eligibility) CanClaimTimed(user [20]byte, height uint64) (bool, error) {
	if user == ([20]byte{}) {
		return false, ErrInvalidAddress
	}
	cfg, configured, err := e.timed.Config()
	if err != nil || !configured {
		return false, err
	}
	if height >= cfg.EndBlock {
		return false, nil
	}
	profile, ok, err := e.activeProfile(user)
	if err != nil || !ok {
		return false, err
	}
	open, err := e.campaignOpen(user, cfg.CampaignID, profile)
	if err != nil || !open {
		return false, err
	}
	return e.depositQualifies(user, cfg)
}

func (e *Eligibility) depositQualifies(user [20]byte, cfg TimedCampaign) (bool, error) {
	err := e.checkDeposit(user, cfg)
	if errors.Is(err, ErrUserNotEligible) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// checkDeposit requires a vault deposit made strictly before the threshold.
// A zero deposit time means the user never deposited.
func (e *Eligibility) checkDeposit(user [20]byte, cfg TimedCampaign) error {
	if e.vault == nil {
		return fmt.Errorf("%w: vault ledger", ErrCollaboratorMissing)
	}
	deposit, err := e.vault.Deposit(user)
	if err != nil {
		return err
	}
	if deposit.LastDepositedTime == 0 {
		return fmt.Errorf("%w: no deposit", ErrUserNotEligible)
	}
	if deposit.LastDepositedTime >= cfg.ThresholdTimestamp {
		return fmt.Errorf("%w: deposit at %d, threshold %d", ErrUserNotEligible, deposit.LastDepositedTime, cfg.ThresholdTimestamp)
	}
	return nil
}
