package claims

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"lockdrop/core/events"
	nativecommon "lockdrop/native/common"
)

// Processor executes claims. Each claim runs inside one state transaction:
// the ledger entry is staged before any collaborator is called, so a
// reentrant claim observes it, and any failure discards the entry again.
type Processor struct {
	st          claimsState
	registry    *Registry
	ledger      *Ledger
	timed       *TimedStore
	eligibility *Eligibility
	deps        Dependencies
	pauses      nativecommon.PauseView
}

func NewProcessor(st claimsState, registry *Registry, ledger *Ledger, timed *TimedStore, eligibility *Eligibility, deps Dependencies) *Processor {
	return &Processor{
		st:          st,
		registry:    registry,
		ledger:      ledger,
		timed:       timed,
		eligibility: eligibility,
		deps:        deps,
	}
}

func (p *Processor) SetPauses(v nativecommon.PauseView) {
	if p == nil {
		return
	}
	p.pauses = v
}

// Claim issues the reward of campaign id to user.
func (p *Processor) Claim(user [20]byte, id uint8) (*Receipt, error) {
	if err := p.preflight(user); err != nil {
		return nil, err
	}
	points, err := p.timed.ClaimPoints()
	if err != nil {
		return nil, err
	}
	return p.execute(user, id, points, uint64(id), nil)
}

// ClaimTimed issues the reward of the time-boxed campaign to user. The claim
// must happen before the configured end block and the user's first vault
// deposit must predate the configured threshold.
func (p *Processor) ClaimTimed(user [20]byte) (*Receipt, error) {
	if err := p.preflight(user); err != nil {
		return nil, err
	}
	cfg, configured, err := p.timed.Config()
	if err != nil {
		return nil, err
	}
	if !configured {
		return nil, ErrTimedNotConfigured
	}
	if p.deps.Heights == nil {
		return nil, fmt.Errorf("%w: height source", ErrCollaboratorMissing)
	}
	height, err := p.deps.Heights.CurrentHeight()
	if err != nil {
		return nil, fmt.Errorf("claims: current height: %w", err)
	}
	if height >= cfg.EndBlock {
		return nil, fmt.Errorf("%w: height %d, end %d", ErrDeadlinePassed, height, cfg.EndBlock)
	}
	depositGate := func() error {
		return p.eligibility.checkDeposit(user, cfg)
	}
	return p.execute(user, cfg.CampaignID, cfg.Points, cfg.PointsCampaignID, depositGate)
}

func (p *Processor) preflight(user [20]byte) error {
	if user == ([20]byte{}) {
		return ErrInvalidAddress
	}
	if err := nativecommon.Guard(p.pauses, moduleName); err != nil {
		return err
	}
	if p.deps.Collector == nil {
		return fmt.Errorf("%w: minting collector", ErrCollaboratorMissing)
	}
	if p.deps.Profiles == nil {
		return fmt.Errorf("%w: profile service", ErrCollaboratorMissing)
	}
	return nil
}

// execute runs the validation gates in order and then performs the effects.
// extra, when set, is evaluated after the tier gate.
func (p *Processor) execute(user [20]byte, id uint8, points uint64, pointsCampaign uint64, extra func() error) (*Receipt, error) {
	var receipt *Receipt
	err := p.st.Atomic(func() error {
		campaign, err := p.validate(user, id)
		if err != nil {
			return err
		}
		if extra != nil {
			if err := extra(); err != nil {
				return err
			}
		}
		if err := p.ledger.markClaimed(user, id); err != nil {
			return err
		}
		cost := cloneBigInt(campaign.Cost)
		paid := false
		if cost.Sign() > 0 {
			if p.deps.Payments == nil {
				return fmt.Errorf("%w: token transfer", ErrCollaboratorMissing)
			}
			if err := p.deps.Payments.Collect(user, cost); err != nil {
				return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
			}
			paid = true
		}
		issued, err := p.deps.Collector.Mint(user, campaign.RewardMetadata, id)
		if err != nil {
			mintErr := fmt.Errorf("%w: %v", ErrMintFailed, err)
			if paid {
				if refundErr := p.deps.Payments.Refund(user, cost); refundErr != nil {
					return errors.Join(mintErr, fmt.Errorf("claims: refund: %w", refundErr))
				}
			}
			return mintErr
		}
		receipt = &Receipt{User: user, CampaignID: id, IssuedID: issued, CostPaid: cost}
		if points > 0 {
			if err := p.deps.Profiles.AddPoints(user, points, pointsCampaign); err != nil {
				receipt.PointsErr = fmt.Errorf("%w: %v", ErrPointsFailed, err)
				p.st.Emit(events.ClaimPointsFailed{
					User:       common.Address(user),
					CampaignID: id,
					Points:     points,
					Reason:     err.Error(),
				})
			} else {
				receipt.Points = points
			}
		}
		p.st.Emit(events.RewardClaimed{User: common.Address(user), IssuedID: issued, CampaignID: id})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// validate applies the structural, idempotency, identity and tier gates in
// that order.
func (p *Processor) validate(user [20]byte, id uint8) (*Campaign, error) {
	if id < p.registry.ReservedFloor() {
		return nil, fmt.Errorf("%w: id %d", ErrCampaignIDReserved, id)
	}
	campaign, ok, err := p.registry.Campaign(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrCampaignNotFound, id)
	}
	if !campaign.Active {
		return nil, fmt.Errorf("%w: %d", ErrCampaignInactive, id)
	}
	claimed, err := p.ledger.HasClaimed(user, id)
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, fmt.Errorf("%w: campaign %d", ErrAlreadyClaimed, id)
	}
	registered, err := p.deps.Profiles.IsRegistered(user)
	if err != nil {
		return nil, fmt.Errorf("claims: profile lookup: %w", err)
	}
	if !registered {
		return nil, ErrUserNotRegistered
	}
	profile, err := p.deps.Profiles.Profile(user)
	if err != nil {
		return nil, fmt.Errorf("claims: profile lookup: %w", err)
	}
	if !profile.Active {
		return nil, ErrUserNotActive
	}
	if profile.TierID >= campaign.TierThreshold {
		return nil, fmt.Errorf("%w: tier %d, threshold %d", ErrUserNotEligible, profile.TierID, campaign.TierThreshold)
	}
	return campaign, nil
}
