package server

import (
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"lockdrop/crypto"
	"lockdrop/native/claims"
	"lockdrop/native/randomness"
)

type campaignView struct {
	ID            uint8  `json:"id"`
	Metadata      string `json:"metadata"`
	TierThreshold uint64 `json:"tierThreshold"`
	Cost          string `json:"cost"`
	Active        bool   `json:"active"`
}

func newCampaignView(c *claims.Campaign) campaignView {
	cost := "0"
	if c.Cost != nil {
		cost = c.Cost.String()
	}
	return campaignView{
		ID:            c.ID,
		Metadata:      c.RewardMetadata,
		TierThreshold: c.TierThreshold,
		Cost:          cost,
		Active:        c.Active,
	}
}

type receiptView struct {
	User        string `json:"user"`
	CampaignID  uint8  `json:"campaignId"`
	IssuedID    uint64 `json:"issuedId"`
	CostPaid    string `json:"costPaid"`
	Points      uint64 `json:"points"`
	PointsError string `json:"pointsError,omitempty"`
}

func newReceiptView(r *claims.Receipt) receiptView {
	view := receiptView{
		User:       common.Address(r.User).Hex(),
		CampaignID: r.CampaignID,
		IssuedID:   r.IssuedID,
		CostPaid:   "0",
		Points:     r.Points,
	}
	if r.CostPaid != nil {
		view.CostPaid = r.CostPaid.String()
	}
	if r.PointsErr != nil {
		view.PointsError = r.PointsErr.Error()
	}
	return view
}

type timedView struct {
	Configured         bool   `json:"configured"`
	CampaignID         uint8  `json:"campaignId"`
	PointsCampaignID   uint64 `json:"pointsCampaignId"`
	Points             uint64 `json:"points"`
	EndBlock           uint64 `json:"endBlock"`
	ThresholdTimestamp uint64 `json:"thresholdTimestamp"`
}

type randomnessView struct {
	ID          string `json:"id"`
	Consumer    string `json:"consumer"`
	Seed        string `json:"seed"`
	Requester   string `json:"requester"`
	Nonce       uint64 `json:"nonce"`
	RequestedAt uint64 `json:"requestedAt"`
	Fulfilled   bool   `json:"fulfilled"`
	Value       string `json:"value,omitempty"`
}

func newRandomnessView(req *randomness.Request) randomnessView {
	view := randomnessView{
		ID:          hexutil.Encode(req.ID[:]),
		Consumer:    req.Consumer,
		Seed:        hexutil.Encode(req.Seed[:]),
		Requester:   common.Address(req.Requester).Hex(),
		Nonce:       req.Nonce,
		RequestedAt: req.RequestedAt,
		Fulfilled:   req.Fulfilled,
	}
	if req.Fulfilled {
		view.Value = hexutil.Encode(req.Value[:])
	}
	return view
}

func addressParam(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return [20]byte{}, false
	}
	return addr, true
}

func campaignParam(w http.ResponseWriter, r *http.Request) (uint8, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 8)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return 0, false
	}
	return uint8(id), true
}

func hashParam(w http.ResponseWriter, r *http.Request) ([32]byte, bool) {
	id, err := parseHash(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid request id", http.StatusBadRequest)
		return [32]byte{}, false
	}
	return id, true
}

// parseHash decodes a 0x-prefixed 32-byte hex string.
func parseHash(raw string) ([32]byte, error) {
	var out [32]byte
	decoded, err := hexutil.Decode(strings.TrimSpace(raw))
	if err != nil {
		return out, err
	}
	if len(decoded) != len(out) {
		return out, fmt.Errorf("expected %d bytes, got %d", len(out), len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

// parseAmount decodes a non-negative base-10 integer. Empty means zero.
func parseAmount(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return v, nil
}
