package claims

import (
	"fmt"

	"lockdrop/core/events"
	nativecommon "lockdrop/native/common"
)

const (
	FieldEndBlock           = "end_block"
	FieldThresholdTimestamp = "threshold_timestamp"
	FieldPoints             = "points"
	FieldCampaignID         = "campaign_id"
	FieldPointsCampaignID   = "points_campaign_id"
)

// TimedStore holds the administrative parameters of the general and the
// time-boxed claim flows.
type TimedStore struct {
	st     claimsState
	pauses nativecommon.PauseView
	floor  uint8
}

func NewTimedStore(st claimsState, floor uint8) *TimedStore {
	return &TimedStore{st: st, floor: floor}
}

func (s *TimedStore) SetPauses(p nativecommon.PauseView) {
	if s == nil {
		return
	}
	s.pauses = p
}

// InitGenesis seeds both parameter sets when they have not been written yet.
func (s *TimedStore) InitGenesis(claimPoints uint64, timed *TimedCampaign) error {
	return s.st.Atomic(func() error {
		var existing uint64
		found, err := s.st.KVGet(claimPointsKey, &existing)
		if err != nil {
			return err
		}
		if !found {
			if err := s.st.KVPut(claimPointsKey, claimPoints); err != nil {
				return err
			}
		}
		if timed == nil {
			return nil
		}
		if _, configured, err := s.Config(); err != nil || configured {
			return err
		}
		if timed.CampaignID < s.floor {
			return fmt.Errorf("%w: timed id %d below %d", ErrCampaignIDReserved, timed.CampaignID, s.floor)
		}
		return s.st.KVPut(timedCampaignKey, timed)
	})
}

// ClaimPoints returns the points granted per general claim.
func (s *TimedStore) ClaimPoints() (uint64, error) {
	var points uint64
	if _, err := s.st.KVGet(claimPointsKey, &points); err != nil {
		return 0, err
	}
	return points, nil
}

// Config returns the time-boxed campaign parameters. configured is false when
// they were never written.
func (s *TimedStore) Config() (TimedCampaign, bool, error) {
	var cfg TimedCampaign
	ok, err := s.st.KVGet(timedCampaignKey, &cfg)
	if err != nil || !ok {
		return TimedCampaign{}, false, err
	}
	return cfg, true, nil
}

// SetClaimPoints updates the points granted per general claim.
func (s *TimedStore) SetClaimPoints(caller [20]byte, points uint64) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	return s.st.Atomic(func() error {
		if err := s.st.KVPut(claimPointsKey, points); err != nil {
			return err
		}
		s.st.Emit(events.ClaimPointsUpdated{Points: points})
		return nil
	})
}

func (s *TimedStore) SetEndBlock(caller [20]byte, endBlock uint64) error {
	return s.update(caller, FieldEndBlock, endBlock, func(cfg *TimedCampaign) error {
		cfg.EndBlock = endBlock
		return nil
	})
}

func (s *TimedStore) SetThresholdTimestamp(caller [20]byte, ts uint64) error {
	return s.update(caller, FieldThresholdTimestamp, ts, func(cfg *TimedCampaign) error {
		cfg.ThresholdTimestamp = ts
		return nil
	})
}

func (s *TimedStore) SetTimedPoints(caller [20]byte, points uint64) error {
	return s.update(caller, FieldPoints, points, func(cfg *TimedCampaign) error {
		cfg.Points = points
		return nil
	})
}

func (s *TimedStore) SetPointsCampaignID(caller [20]byte, id uint64) error {
	return s.update(caller, FieldPointsCampaignID, id, func(cfg *TimedCampaign) error {
		cfg.PointsCampaignID = id
		return nil
	})
}

// SetTimedCampaignID points the time-boxed flow at another registry campaign.
func (s *TimedStore) SetTimedCampaignID(caller [20]byte, id uint8) error {
	return s.update(caller, FieldCampaignID, uint64(id), func(cfg *TimedCampaign) error {
		if id < s.floor {
			return fmt.Errorf("%w: id %d below %d", ErrCampaignIDReserved, id, s.floor)
		}
		cfg.CampaignID = id
		return nil
	})
}

func (s *TimedStore) authorize(caller [20]byte) error {
	if err := nativecommon.Guard(s.pauses, moduleName); err != nil {
		return err
	}
	if err := nativecommon.RequireRole(s.st, roleCampaignAdmin, caller); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// update applies mutate to the stored timed configuration. The first write
// creates the configuration from zero values.
func (s *TimedStore) update(caller [20]byte, field string, value uint64, mutate func(*TimedCampaign) error) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	return s.st.Atomic(func() error {
		cfg, configured, err := s.Config()
		if err != nil {
			return err
		}
		if !configured {
			cfg.CampaignID = s.floor
		}
		if err := mutate(&cfg); err != nil {
			return err
		}
		if err := s.st.KVPut(timedCampaignKey, cfg); err != nil {
			return err
		}
		s.st.Emit(events.TimedCampaignUpdated{Field: field, Value: value})
		return nil
	})
}
