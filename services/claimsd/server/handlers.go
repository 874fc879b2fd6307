package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"lockdrop/config"
	"lockdrop/crypto"
	"lockdrop/native/claims"
	"lockdrop/native/randomness"
)

// --- credit ---

func (s *Server) handleGetCeiling(w http.ResponseWriter, r *http.Request) {
	var ceiling uint64
	err := s.locked(func() (err error) {
		ceiling, err = s.node.Credit.Ceiling()
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"ceiling": ceiling})
}

func (s *Server) handleUpdateCeiling(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Ceiling uint64 `json:"ceiling"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.locked(func() error { return s.node.Credit.UpdateCeiling(caller, req.Ceiling) }); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"ceiling": req.Ceiling})
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	user, ok := addressParam(w, r)
	if !ok {
		return
	}
	start := time.Now()
	var value string
	err := s.locked(func() error {
		credit, err := s.node.Credit.CreditOf(user)
		if err != nil {
			return err
		}
		value = credit.Dec()
		return nil
	})
	s.metrics.ObserveCredit(time.Since(start))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": common.Address(user).Hex(), "credit": value})
}

// --- campaigns ---

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	var list []*claims.Campaign
	var count uint64
	err := s.locked(func() (err error) {
		if list, err = s.node.Claims.Registry.Campaigns(); err != nil {
			return err
		}
		count, err = s.node.Claims.Registry.CampaignCount()
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]campaignView, 0, len(list))
	for _, c := range list {
		views = append(views, newCampaignView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count, "campaigns": views})
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignParam(w, r)
	if !ok {
		return
	}
	var campaign *claims.Campaign
	var found bool
	err := s.locked(func() (err error) {
		campaign, found, err = s.node.Claims.Registry.Campaign(id)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found {
		s.writeError(w, r, claims.ErrCampaignNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newCampaignView(campaign))
}

func (s *Server) handleAddCampaign(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		ID            uint8  `json:"id"`
		Metadata      string `json:"metadata"`
		TierThreshold uint64 `json:"tierThreshold"`
		Cost          string `json:"cost"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	cost, err := parseAmount(req.Cost)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var campaign *claims.Campaign
	err = s.locked(func() (err error) {
		campaign, err = s.node.Claims.Registry.AddCampaign(caller, req.ID, req.Metadata, req.TierThreshold, cost)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCampaignView(campaign))
}

func (s *Server) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := campaignParam(w, r)
	if !ok {
		return
	}
	var req struct {
		TierThreshold uint64 `json:"tierThreshold"`
		Cost          string `json:"cost"`
		Active        bool   `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	cost, err := parseAmount(req.Cost)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var campaign *claims.Campaign
	err = s.locked(func() (err error) {
		campaign, err = s.node.Claims.Registry.UpdateCampaign(caller, id, req.TierThreshold, cost, req.Active)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCampaignView(campaign))
}

// --- claims ---

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	user, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := campaignParam(w, r)
	if !ok {
		return
	}
	var receipt *claims.Receipt
	err := s.locked(func() (err error) {
		receipt, err = s.node.Claims.Processor.Claim(user, id)
		return err
	})
	s.metrics.RecordClaim("standard", outcomeFor(err))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReceiptView(receipt))
}

func (s *Server) handleClaimTimed(w http.ResponseWriter, r *http.Request) {
	user, ok := s.caller(w, r)
	if !ok {
		return
	}
	var receipt *claims.Receipt
	err := s.locked(func() (err error) {
		receipt, err = s.node.Claims.Processor.ClaimTimed(user)
		return err
	})
	s.metrics.RecordClaim("timed", outcomeFor(err))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReceiptView(receipt))
}

func (s *Server) handleClaimed(w http.ResponseWriter, r *http.Request) {
	user, ok := addressParam(w, r)
	if !ok {
		return
	}
	var ids []uint8
	err := s.locked(func() (err error) {
		ids, err = s.node.Claims.Ledger.ClaimedCampaigns(user)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// []uint8 would encode as base64.
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": common.Address(user).Hex(), "campaigns": out})
}

func (s *Server) handleCanClaim(w http.ResponseWriter, r *http.Request) {
	user, ok := addressParam(w, r)
	if !ok {
		return
	}
	id, ok := campaignParam(w, r)
	if !ok {
		return
	}
	var eligible bool
	err := s.locked(func() (err error) {
		eligible, err = s.node.Claims.Eligibility.CanClaim(user, id)
		return err
	})
	s.metrics.RecordEligibility("single")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"eligible": eligible})
}

func (s *Server) handleCanClaimBatch(w http.ResponseWriter, r *http.Request) {
	user, ok := addressParam(w, r)
	if !ok {
		return
	}
	var req struct {
		IDs []int `json:"ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	ids := make([]uint8, len(req.IDs))
	for i, id := range req.IDs {
		if id < 0 || id > 255 {
			http.Error(w, "invalid campaign id", http.StatusBadRequest)
			return
		}
		ids[i] = uint8(id)
	}
	var result []bool
	err := s.locked(func() (err error) {
		result, err = s.node.Claims.Eligibility.CanClaimBatch(user, ids)
		return err
	})
	s.metrics.RecordEligibility("batch")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]bool{"eligible": result})
}

func (s *Server) handleCanClaimTimed(w http.ResponseWriter, r *http.Request) {
	user, ok := addressParam(w, r)
	if !ok {
		return
	}
	if s.node.Heights == nil {
		s.writeError(w, r, claims.ErrCollaboratorMissing)
		return
	}
	height, err := s.node.Heights.CurrentHeight()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var eligible bool
	err = s.locked(func() (err error) {
		eligible, err = s.node.Claims.Eligibility.CanClaimTimed(user, height)
		return err
	})
	s.metrics.RecordEligibility("timed")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"eligible": eligible, "height": height})
}

// --- timed campaign parameters ---

func (s *Server) handleGetTimed(w http.ResponseWriter, r *http.Request) {
	var cfg claims.TimedCampaign
	var configured bool
	err := s.locked(func() (err error) {
		cfg, configured, err = s.node.Claims.Timed.Config()
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, timedView{
		Configured:         configured,
		CampaignID:         cfg.CampaignID,
		PointsCampaignID:   cfg.PointsCampaignID,
		Points:             cfg.Points,
		EndBlock:           cfg.EndBlock,
		ThresholdTimestamp: cfg.ThresholdTimestamp,
	})
}

func (s *Server) handleUpdateTimed(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Field string `json:"field"`
		Value uint64 `json:"value"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	timed := s.node.Claims.Timed
	var apply func() error
	switch req.Field {
	case claims.FieldEndBlock:
		apply = func() error { return timed.SetEndBlock(caller, req.Value) }
	case claims.FieldThresholdTimestamp:
		apply = func() error { return timed.SetThresholdTimestamp(caller, req.Value) }
	case claims.FieldPoints:
		apply = func() error { return timed.SetTimedPoints(caller, req.Value) }
	case claims.FieldPointsCampaignID:
		apply = func() error { return timed.SetPointsCampaignID(caller, req.Value) }
	case claims.FieldCampaignID:
		if req.Value > 255 {
			http.Error(w, "invalid campaign id", http.StatusBadRequest)
			return
		}
		apply = func() error { return timed.SetTimedCampaignID(caller, uint8(req.Value)) }
	default:
		http.Error(w, "unknown field", http.StatusBadRequest)
		return
	}
	if err := s.locked(apply); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.handleGetTimed(w, r)
}

func (s *Server) handleGetClaimPoints(w http.ResponseWriter, r *http.Request) {
	var points uint64
	err := s.locked(func() (err error) {
		points, err = s.node.Claims.Timed.ClaimPoints()
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"points": points})
}

func (s *Server) handleSetClaimPoints(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Points uint64 `json:"points"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.locked(func() error { return s.node.Claims.Timed.SetClaimPoints(caller, req.Points) }); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"points": req.Points})
}

// --- whitelist ---

type restrictionRequest struct {
	Categories []int `json:"categories"`
}

func (req restrictionRequest) ids() ([]uint8, error) {
	out := make([]uint8, len(req.Categories))
	for i, c := range req.Categories {
		if c < 0 || c > 255 {
			return nil, errors.New("invalid category")
		}
		out[i] = uint8(c)
	}
	return out, nil
}

func (s *Server) handleListRestrictions(w http.ResponseWriter, r *http.Request) {
	var list []uint8
	err := s.locked(func() (err error) {
		list, err = s.node.Whitelist.Restricted()
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]int, len(list))
	for i, c := range list {
		out[i] = int(c)
	}
	writeJSON(w, http.StatusOK, map[string][]int{"categories": out})
}

func (s *Server) handleAddRestrictions(w http.ResponseWriter, r *http.Request) {
	s.changeRestrictions(w, r, "add")
}

func (s *Server) handleRemoveRestrictions(w http.ResponseWriter, r *http.Request) {
	s.changeRestrictions(w, r, "remove")
}

func (s *Server) changeRestrictions(w http.ResponseWriter, r *http.Request, action string) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req restrictionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ids, err := req.ids()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = s.locked(func() error {
		if action == "add" {
			return s.node.Whitelist.AddRestriction(caller, ids)
		}
		return s.node.Whitelist.RemoveRestriction(caller, ids)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.RecordRestriction(action)
	s.handleListRestrictions(w, r)
}

func (s *Server) handleCanList(w http.ResponseWriter, r *http.Request) {
	assetID, err := strconv.ParseUint(chi.URLParam(r, "assetID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid asset id", http.StatusBadRequest)
		return
	}
	var allowed bool
	err = s.locked(func() (err error) {
		allowed, err = s.node.Whitelist.CanList(assetID)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assetId": assetID, "canList": allowed})
}

// --- randomness ---

func (s *Server) handleRequestRandomness(w http.ResponseWriter, r *http.Request) {
	requester, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Consumer string `json:"consumer"`
		Seed     string `json:"seed"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	seed, err := parseHash(req.Seed)
	if err != nil {
		http.Error(w, "invalid seed", http.StatusBadRequest)
		return
	}
	var id [32]byte
	err = s.locked(func() (err error) {
		id, err = s.node.Randomness.Request(requester, req.Consumer, seed)
		return err
	})
	if err != nil {
		s.metrics.RecordRandomness("request", "rejected")
		s.writeError(w, r, err)
		return
	}
	s.metrics.RecordRandomness("request", "success")
	writeJSON(w, http.StatusAccepted, map[string]string{"id": hexutil.Encode(id[:])})
}

func (s *Server) handleLookupRandomness(w http.ResponseWriter, r *http.Request) {
	id, ok := hashParam(w, r)
	if !ok {
		return
	}
	var req *randomness.Request
	var found bool
	err := s.locked(func() (err error) {
		req, found, err = s.node.Randomness.Lookup(id)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found {
		s.writeError(w, r, randomness.ErrUnknownRequest)
		return
	}
	writeJSON(w, http.StatusOK, newRandomnessView(req))
}

// handleFulfill authenticates the fulfiller by recovering the signer of
// FulfillDigest(id, value).
func (s *Server) handleFulfill(w http.ResponseWriter, r *http.Request) {
	id, ok := hashParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Value     string `json:"value"`
		Signature string `json:"signature"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	value, err := parseHash(req.Value)
	if err != nil {
		http.Error(w, "invalid value", http.StatusBadRequest)
		return
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil || len(sig) != 65 {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}
	signer, err := crypto.RecoverAddress(randomness.FulfillDigest(id, value), sig)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	if err := s.locked(func() error { return s.node.Randomness.Fulfill(signer, id, value) }); err != nil {
		s.metrics.RecordRandomness("fulfill", outcomeFor(err))
		s.writeError(w, r, err)
		return
	}
	s.metrics.RecordRandomness("fulfill", "success")
	writeJSON(w, http.StatusOK, map[string]string{"id": hexutil.Encode(id[:]), "value": hexutil.Encode(value[:])})
}

func (s *Server) handleSetFulfiller(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Address string `json:"address"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	fulfiller, err := crypto.ParseAddress(req.Address)
	if err != nil {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}
	if err := s.locked(func() error { return s.node.Randomness.SetFulfiller(caller, fulfiller) }); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"fulfiller": common.Address(fulfiller).Hex()})
}

// --- pauses ---

func (s *Server) handleGetPauses(w http.ResponseWriter, r *http.Request) {
	var pauses config.Pauses
	err := s.locked(func() (err error) {
		pauses, err = s.node.Params.Pauses()
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pauses)
}

func (s *Server) handleSetPauses(w http.ResponseWriter, r *http.Request) {
	var pauses config.Pauses
	if !decodeJSON(w, r, &pauses) {
		return
	}
	if err := s.locked(func() error { return s.node.Params.SetPauses(pauses) }); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Warn("module pauses updated",
		"credit", pauses.Credit, "claims", pauses.Claims,
		"whitelist", pauses.Whitelist, "randomness", pauses.Randomness)
	writeJSON(w, http.StatusOK, pauses)
}
