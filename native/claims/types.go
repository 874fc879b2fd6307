package claims

import "math/big"

// Campaign is an admin-defined reward rule. ID and Created are immutable once
// the campaign exists; the remaining fields may be updated freely without any
// effect on past claims.
type Campaign struct {
	ID             uint8
	RewardMetadata string
	TierThreshold  uint64
	Cost           *big.Int
	Active         bool
	Created        bool
}

// Clone returns a deep copy of the campaign.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	out := *c
	out.Cost = cloneBigInt(c.Cost)
	return &out
}

// Profile is the externally owned view of a registered user. Lower tier ids
// are more senior.
type Profile struct {
	TierID uint64
	Active bool
}

// Deposit is the vault ledger view of a user's position. A zero
// LastDepositedTime means the user never deposited.
type Deposit struct {
	LastDepositedTime uint64
	Shares            *big.Int
}

// TimedCampaign configures the time-boxed claim variant. CampaignID selects
// the registry campaign being claimed; PointsCampaignID is the identifier
// forwarded to the profile service with the point grant.
type TimedCampaign struct {
	CampaignID         uint8
	PointsCampaignID   uint64
	Points             uint64
	EndBlock           uint64
	ThresholdTimestamp uint64
}

// Receipt summarises a completed claim.
//
// Point accrual is the only step after the mint and the only one that does
// not abort the claim: the minted item cannot be recalled, and discarding the
// ledger entry would let the same pair mint again. A rejected grant is
// reported through PointsErr and a claims.points.failed event instead.
type Receipt struct {
	User       [20]byte
	CampaignID uint8
	IssuedID   uint64
	CostPaid   *big.Int
	Points     uint64
	// PointsErr is set when the reward was issued but point accrual failed.
	PointsErr error
}

// ProfileService is the external user-profile and point-accrual service.
type ProfileService interface {
	IsRegistered(user [20]byte) (bool, error)
	Profile(user [20]byte) (Profile, error)
	AddPoints(user [20]byte, amount uint64, campaignID uint64) error
}

// MintingCollector issues the collectible reward and returns its identifier.
type MintingCollector interface {
	Mint(to [20]byte, metadata string, campaignID uint8) (uint64, error)
}

// TokenTransfer moves claim costs into custody. Refund reverses a Collect
// when the claim aborts after payment.
type TokenTransfer interface {
	Collect(from [20]byte, amount *big.Int) error
	Refund(to [20]byte, amount *big.Int) error
}

// VaultLedger exposes read-only vault deposits.
type VaultLedger interface {
	Deposit(user [20]byte) (Deposit, error)
}

// HeightSource reports the current block height used by deadline checks.
type HeightSource interface {
	CurrentHeight() (uint64, error)
}

// Dependencies bundles the external collaborators injected into the module.
type Dependencies struct {
	Profiles  ProfileService
	Collector MintingCollector
	Payments  TokenTransfer
	Vault     VaultLedger
	Heights   HeightSource
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
