package claims

import (
	"fmt"
	"math/big"
	"strings"

	"lockdrop/core/events"
	nativecommon "lockdrop/native/common"
)

// Registry stores campaign definitions keyed by their uint8 identifier.
type Registry struct {
	st     claimsState
	pauses nativecommon.PauseView
	floor  uint8
}

// NewRegistry constructs a registry that rejects ids below floor.
func NewRegistry(st claimsState, floor uint8) *Registry {
	return &Registry{st: st, floor: floor}
}

func (r *Registry) SetPauses(p nativecommon.PauseView) {
	if r == nil {
		return
	}
	r.pauses = p
}

// ReservedFloor returns the lowest id accepted by AddCampaign.
func (r *Registry) ReservedFloor() uint8 { return r.floor }

// AddCampaign registers a new active campaign. Campaign ids are write-once:
// an id that was created can never be created again, even after it is
// deactivated.
func (r *Registry) AddCampaign(caller [20]byte, id uint8, metadata string, tierThreshold uint64, cost *big.Int) (*Campaign, error) {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := nativecommon.RequireRole(r.st, roleCampaignAdmin, caller); err != nil {
		return nil, ErrUnauthorized
	}
	if id < r.floor {
		return nil, fmt.Errorf("%w: id %d below %d", ErrCampaignIDReserved, id, r.floor)
	}
	metadata = strings.TrimSpace(metadata)
	if metadata == "" {
		return nil, fmt.Errorf("%w: reward metadata required", ErrInvalidCampaign)
	}
	if cost != nil && cost.Sign() < 0 {
		return nil, fmt.Errorf("%w: cost must not be negative", ErrInvalidCampaign)
	}
	campaign := &Campaign{
		ID:             id,
		RewardMetadata: metadata,
		TierThreshold:  tierThreshold,
		Cost:           cloneBigInt(cost),
		Active:         true,
		Created:        true,
	}
	err := r.st.Atomic(func() error {
		_, exists, err := r.load(id)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %d", ErrCampaignAlreadyCreated, id)
		}
		if err := r.st.KVPut(campaignKey(id), campaign); err != nil {
			return err
		}
		if err := r.st.KVAppend(campaignIndexKey, []byte{id}); err != nil {
			return err
		}
		count, err := r.CampaignCount()
		if err != nil {
			return err
		}
		count++
		if err := r.st.KVPut(campaignCounterKey, count); err != nil {
			return err
		}
		r.st.Emit(events.CampaignCreated{
			CampaignID:     id,
			RewardMetadata: metadata,
			TierThreshold:  tierThreshold,
			Cost:           cloneBigInt(cost),
			Count:          count,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return campaign.Clone(), nil
}

// UpdateCampaign replaces the mutable fields of an existing campaign. Claims
// already recorded are unaffected.
func (r *Registry) UpdateCampaign(caller [20]byte, id uint8, tierThreshold uint64, cost *big.Int, active bool) (*Campaign, error) {
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := nativecommon.RequireRole(r.st, roleCampaignAdmin, caller); err != nil {
		return nil, ErrUnauthorized
	}
	if cost != nil && cost.Sign() < 0 {
		return nil, fmt.Errorf("%w: cost must not be negative", ErrInvalidCampaign)
	}
	var updated *Campaign
	err := r.st.Atomic(func() error {
		campaign, exists, err := r.load(id)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %d", ErrCampaignNotFound, id)
		}
		campaign.TierThreshold = tierThreshold
		campaign.Cost = cloneBigInt(cost)
		campaign.Active = active
		if err := r.st.KVPut(campaignKey(id), campaign); err != nil {
			return err
		}
		r.st.Emit(events.CampaignUpdated{
			CampaignID:    id,
			TierThreshold: tierThreshold,
			Cost:          cloneBigInt(cost),
			Active:        active,
		})
		updated = campaign
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Campaign returns the campaign stored under id. The boolean reports whether
// the campaign exists.
func (r *Registry) Campaign(id uint8) (*Campaign, bool, error) {
	campaign, ok, err := r.load(id)
	if err != nil || !ok {
		return nil, ok, err
	}
	return campaign, true, nil
}

// Campaigns lists every created campaign in creation order.
func (r *Registry) Campaigns() ([]*Campaign, error) {
	var ids [][]byte
	if err := r.st.KVGetList(campaignIndexKey, &ids); err != nil {
		return nil, err
	}
	out := make([]*Campaign, 0, len(ids))
	for _, raw := range ids {
		if len(raw) != 1 {
			continue
		}
		campaign, ok, err := r.load(raw[0])
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, campaign)
		}
	}
	return out, nil
}

// CampaignCount returns the number of campaigns ever created.
func (r *Registry) CampaignCount() (uint64, error) {
	var count uint64
	if _, err := r.st.KVGet(campaignCounterKey, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Registry) load(id uint8) (*Campaign, bool, error) {
	campaign := new(Campaign)
	ok, err := r.st.KVGet(campaignKey(id), campaign)
	if err != nil || !ok {
		return nil, false, err
	}
	if campaign.Cost == nil {
		campaign.Cost = big.NewInt(0)
	}
	return campaign, campaign.Created, nil
}
