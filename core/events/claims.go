package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypeCampaignCreated is emitted when a claim campaign is registered.
	TypeCampaignCreated = "claims.campaign.created"
	// TypeCampaignUpdated is emitted when the mutable fields of a campaign
	// change.
	TypeCampaignUpdated = "claims.campaign.updated"
	// TypeRewardClaimed is emitted once a claim has been committed and the
	// reward delegated to the collector.
	TypeRewardClaimed = "claims.reward.claimed"
	// TypeClaimPointsUpdated is emitted when the points granted per claim
	// change.
	TypeClaimPointsUpdated = "claims.points.updated"
	// TypeTimedCampaignUpdated is emitted when any parameter of the
	// time-boxed campaign changes.
	TypeTimedCampaignUpdated = "claims.timed.updated"
	// TypeClaimPointsFailed is emitted when a reward was issued but the
	// profile service rejected the point grant.
	TypeClaimPointsFailed = "claims.points.failed"
)

// CampaignCreated captures the initial configuration of a campaign.
type CampaignCreated struct {
	CampaignID     uint8
	RewardMetadata string
	TierThreshold  uint64
	Cost           *big.Int
	Count          uint64
}

// EventType implements the Event interface.
func (CampaignCreated) EventType() string { return TypeCampaignCreated }

// CampaignUpdated captures the mutable configuration of a campaign after an
// update.
type CampaignUpdated struct {
	CampaignID    uint8
	TierThreshold uint64
	Cost          *big.Int
	Active        bool
}

// EventType implements the Event interface.
func (CampaignUpdated) EventType() string { return TypeCampaignUpdated }

// RewardClaimed records a completed claim.
type RewardClaimed struct {
	User       common.Address
	IssuedID   uint64
	CampaignID uint8
}

// EventType implements the Event interface.
func (RewardClaimed) EventType() string { return TypeRewardClaimed }

// ClaimPointsUpdated carries the new per-claim point grant.
type ClaimPointsUpdated struct {
	Points uint64
}

// EventType implements the Event interface.
func (ClaimPointsUpdated) EventType() string { return TypeClaimPointsUpdated }

// TimedCampaignUpdated names the changed field and its new value.
type TimedCampaignUpdated struct {
	Field string
	Value uint64
}

// EventType implements the Event interface.
func (TimedCampaignUpdated) EventType() string { return TypeTimedCampaignUpdated }

// ClaimPointsFailed reports a point grant that could not be applied after the
// reward was issued.
type ClaimPointsFailed struct {
	User       common.Address
	CampaignID uint8
	Points     uint64
	Reason     string
}

// EventType implements the Event interface.
func (ClaimPointsFailed) EventType() string { return TypeClaimPointsFailed }
