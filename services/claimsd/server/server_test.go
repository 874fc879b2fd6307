package server

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"lockdrop/core/events"
	"lockdrop/core/state"
	"lockdrop/crypto"
	"lockdrop/gateway/middleware"
	"lockdrop/native/claims"
	"lockdrop/native/credit"
	"lockdrop/native/params"
	"lockdrop/native/randomness"
	"lockdrop/native/whitelist"
	"lockdrop/services/claimsd/collab"
	"lockdrop/storage"
)

const (
	roleCampaignAdmin   = "ROLE_CAMPAIGN_ADMIN"
	roleWhitelistOwner  = "ROLE_WHITELIST_OWNER"
	roleCreditAdmin     = "ROLE_CREDIT_ADMIN"
	roleRandomnessAdmin = "ROLE_RANDOMNESS_ADMIN"
)

type fixedHeight uint64

func (h fixedHeight) CurrentHeight() (uint64, error) { return uint64(h), nil }

type harness struct {
	t         *testing.T
	handler   http.Handler
	store     *collab.Store
	recorder  *events.Recorder
	admin     common.Address
	user      common.Address
	fulfiller *crypto.PrivateKey
	delivered [][32]byte
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	manager := state.NewManager(db)
	rec := &events.Recorder{}
	manager.SetEmitter(rec)

	store, err := collab.Open(filepath.Join(t.TempDir(), "collab.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		t:        t,
		store:    store,
		recorder: rec,
		admin:    common.Address{19: 0xAA},
		user:     common.Address{19: 0x01},
	}
	for _, role := range []string{roleCampaignAdmin, roleWhitelistOwner, roleCreditAdmin, roleRandomnessAdmin} {
		require.NoError(t, manager.SetRole(role, h.admin.Bytes()))
	}

	pauses := params.NewStore(manager)
	creditEngine := credit.NewEngine(manager, store, credit.MinCeilingDuration*2)
	creditEngine.SetPauses(pauses)
	heights := fixedHeight(100)
	module := claims.New(manager, claims.Config{ReservedFloor: 20, MaxViewLength: 4}, claims.Dependencies{
		Profiles:  store,
		Collector: store,
		Payments:  store,
		Vault:     store,
		Heights:   heights,
	})
	module.SetPauses(pauses)
	require.NoError(t, module.Timed.InitGenesis(50, &claims.TimedCampaign{
		CampaignID:         30,
		PointsCampaignID:   7,
		Points:             25,
		EndBlock:           200,
		ThresholdTimestamp: 1_000,
	}))
	wl := whitelist.NewEngine(manager, store)
	wl.SetPauses(pauses)

	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	h.fulfiller = key
	coordinator := randomness.NewCoordinator(manager)
	coordinator.SetPauses(pauses)
	coordinator.RegisterConsumer("raffle", randomness.ConsumerFunc(func(id, value [32]byte) error {
		h.delivered = append(h.delivered, value)
		return nil
	}))
	require.NoError(t, coordinator.InitGenesis(key.PubKey().Address().Array()))

	srv, err := New(Config{RateLimit: middleware.RateLimit{RequestsPerMinute: 6000, Burst: 1000}}, Node{
		State:      manager,
		Credit:     creditEngine,
		Claims:     module,
		Whitelist:  wl,
		Randomness: coordinator,
		Params:     pauses,
		Heights:    heights,
	}, nil, nil)
	require.NoError(t, err)
	h.handler = srv.Handler()
	return h
}

func (h *harness) do(method, path string, subject common.Address, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if subject != (common.Address{}) {
		req.Header.Set("X-Subject", subject.Hex())
	}
	res := httptest.NewRecorder()
	h.handler.ServeHTTP(res, req)
	return res
}

func decode[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	return out
}

func (h *harness) addCampaign(id uint8, threshold uint64, cost string) {
	h.t.Helper()
	res := h.do(http.MethodPost, "/v1/campaigns", h.admin, map[string]any{
		"id": id, "metadata": "ipfs://reward", "tierThreshold": threshold, "cost": cost,
	})
	require.Equal(h.t, http.StatusCreated, res.Code, res.Body.String())
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	res := h.do(http.MethodGet, "/healthz", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
}

func TestCampaignLifecycleAndClaim(t *testing.T) {
	h := newHarness(t)

	res := h.do(http.MethodPost, "/v1/campaigns", h.user, map[string]any{"id": 21, "metadata": "m", "tierThreshold": 10})
	require.Equal(t, http.StatusForbidden, res.Code)
	res = h.do(http.MethodPost, "/v1/campaigns", h.admin, map[string]any{"id": 3, "metadata": "m", "tierThreshold": 10})
	require.Equal(t, http.StatusBadRequest, res.Code)

	h.addCampaign(21, 10, "100")
	res = h.do(http.MethodPost, "/v1/campaigns", h.admin, map[string]any{"id": 21, "metadata": "m", "tierThreshold": 10})
	require.Equal(t, http.StatusConflict, res.Code)

	res = h.do(http.MethodGet, "/v1/campaigns/21", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	view := decode[campaignView](t, res)
	require.Equal(t, "100", view.Cost)
	require.True(t, view.Active)
	require.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/v1/campaigns/22", common.Address{}, nil).Code)

	res = h.do(http.MethodPost, "/v1/campaigns/21/claim", h.user, nil)
	require.Equal(t, http.StatusUnprocessableEntity, res.Code, "unregistered user")

	require.NoError(t, h.store.UpsertProfile(h.user, 5, true))
	require.NoError(t, h.store.SetBalance(h.user, big.NewInt(150)))

	res = h.do(http.MethodGet, "/v1/eligibility/"+h.user.Hex()+"/21", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, decode[map[string]bool](t, res)["eligible"])

	res = h.do(http.MethodPost, "/v1/campaigns/21/claim", h.user, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	receipt := decode[receiptView](t, res)
	require.Equal(t, uint8(21), receipt.CampaignID)
	require.Equal(t, "100", receipt.CostPaid)
	require.Equal(t, uint64(50), receipt.Points)

	balance, err := h.store.BalanceOf(h.user)
	require.NoError(t, err)
	require.Equal(t, int64(50), balance.Int64())

	res = h.do(http.MethodPost, "/v1/campaigns/21/claim", h.user, nil)
	require.Equal(t, http.StatusConflict, res.Code)

	res = h.do(http.MethodGet, "/v1/claims/"+h.user.Hex(), common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	claimed := decode[struct {
		Campaigns []int `json:"campaigns"`
	}](t, res)
	require.Equal(t, []int{21}, claimed.Campaigns)

	res = h.do(http.MethodPut, "/v1/campaigns/21", h.admin, map[string]any{"tierThreshold": 3, "cost": "0", "active": false})
	require.Equal(t, http.StatusOK, res.Code)
	require.False(t, decode[campaignView](t, res).Active)

	res = h.do(http.MethodGet, "/v1/campaigns", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	list := decode[struct {
		Count     uint64         `json:"count"`
		Campaigns []campaignView `json:"campaigns"`
	}](t, res)
	require.Equal(t, uint64(1), list.Count)
	require.Len(t, list.Campaigns, 1)
}

func TestClaimRequiresSubject(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(21, 10, "0")
	res := h.do(http.MethodPost, "/v1/campaigns/21/claim", common.Address{}, nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestInsufficientBalanceRejectsClaim(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(21, 10, "100")
	require.NoError(t, h.store.UpsertProfile(h.user, 1, true))
	res := h.do(http.MethodPost, "/v1/campaigns/21/claim", h.user, nil)
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = h.do(http.MethodGet, "/v1/claims/"+h.user.Hex(), common.Address{}, nil)
	claimed := decode[struct {
		Campaigns []int `json:"campaigns"`
	}](t, res)
	require.Empty(t, claimed.Campaigns)
}

func TestBatchEligibility(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(21, 10, "0")
	h.addCampaign(22, 2, "0")

	res := h.do(http.MethodPost, "/v1/eligibility/"+h.user.Hex()+"/batch", common.Address{}, map[string]any{"ids": []int{21, 22}})
	require.Equal(t, http.StatusOK, res.Code)
	require.Empty(t, decode[map[string][]bool](t, res)["eligible"])

	require.NoError(t, h.store.UpsertProfile(h.user, 5, true))
	res = h.do(http.MethodPost, "/v1/eligibility/"+h.user.Hex()+"/batch", common.Address{}, map[string]any{"ids": []int{21, 22, 99}})
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, []bool{true, false, false}, decode[map[string][]bool](t, res)["eligible"])

	res = h.do(http.MethodPost, "/v1/eligibility/"+h.user.Hex()+"/batch", common.Address{}, map[string]any{"ids": []int{21, 22, 23, 24, 25}})
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestTimedClaimFlow(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(30, 10, "0")
	require.NoError(t, h.store.UpsertProfile(h.user, 1, true))
	require.NoError(t, h.store.SetDeposit(h.user, 2_000, big.NewInt(1)))

	res := h.do(http.MethodGet, "/v1/eligibility/"+h.user.Hex()+"/timed", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, false, decode[map[string]any](t, res)["eligible"])
	res = h.do(http.MethodPost, "/v1/timed/claim", h.user, nil)
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = h.do(http.MethodPut, "/v1/timed", h.admin, map[string]any{"field": claims.FieldThresholdTimestamp, "value": 5_000})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, uint64(5_000), decode[timedView](t, res).ThresholdTimestamp)

	res = h.do(http.MethodPost, "/v1/timed/claim", h.user, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, uint64(25), decode[receiptView](t, res).Points)

	res = h.do(http.MethodPut, "/v1/timed", h.admin, map[string]any{"field": "bogus", "value": 1})
	require.Equal(t, http.StatusBadRequest, res.Code)
	res = h.do(http.MethodPut, "/v1/timed", h.user, map[string]any{"field": claims.FieldEndBlock, "value": 1})
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestClaimPointsEndpoints(t *testing.T) {
	h := newHarness(t)
	res := h.do(http.MethodPut, "/v1/timed/points", h.admin, map[string]any{"points": 75})
	require.Equal(t, http.StatusOK, res.Code)
	res = h.do(http.MethodGet, "/v1/timed/points", common.Address{}, nil)
	require.Equal(t, uint64(75), decode[map[string]uint64](t, res)["points"])
}

func TestWhitelistEndpoints(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.SetCategory(42, 3))

	res := h.do(http.MethodPost, "/v1/whitelist/restrictions", h.admin, map[string]any{"categories": []int{3, 4}})
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, []int{3, 4}, decode[map[string][]int](t, res)["categories"])

	res = h.do(http.MethodPost, "/v1/whitelist/restrictions", h.admin, map[string]any{"categories": []int{4, 5}})
	require.Equal(t, http.StatusConflict, res.Code)
	res = h.do(http.MethodPost, "/v1/whitelist/restrictions", h.user, map[string]any{"categories": []int{9}})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = h.do(http.MethodGet, "/v1/whitelist/assets/42", common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, false, decode[map[string]any](t, res)["canList"])
	require.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/v1/whitelist/assets/43", common.Address{}, nil).Code)

	res = h.do(http.MethodDelete, "/v1/whitelist/restrictions", h.admin, map[string]any{"categories": []int{3}})
	require.Equal(t, http.StatusOK, res.Code)
	res = h.do(http.MethodGet, "/v1/whitelist/assets/42", common.Address{}, nil)
	require.Equal(t, true, decode[map[string]any](t, res)["canList"])
}

func TestRandomnessRequestAndFulfil(t *testing.T) {
	h := newHarness(t)
	seed := hexutil.Encode(bytes.Repeat([]byte{7}, 32))

	res := h.do(http.MethodPost, "/v1/randomness/requests", h.user, map[string]any{"consumer": "unknown", "seed": seed})
	require.Equal(t, http.StatusBadRequest, res.Code)
	res = h.do(http.MethodPost, "/v1/randomness/requests", h.user, map[string]any{"consumer": "raffle", "seed": seed})
	require.Equal(t, http.StatusAccepted, res.Code)
	idHex := decode[map[string]string](t, res)["id"]
	id, err := parseHash(idHex)
	require.NoError(t, err)

	var value [32]byte
	value[0] = 0x42
	sig, err := h.fulfiller.Sign(randomness.FulfillDigest(id, value))
	require.NoError(t, err)
	body := map[string]string{"value": hexutil.Encode(value[:]), "signature": hexutil.Encode(sig)}

	impostor, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	badSig, err := impostor.Sign(randomness.FulfillDigest(id, value))
	require.NoError(t, err)
	res = h.do(http.MethodPost, "/v1/randomness/requests/"+idHex+"/fulfill", common.Address{}, map[string]string{
		"value": hexutil.Encode(value[:]), "signature": hexutil.Encode(badSig),
	})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = h.do(http.MethodPost, "/v1/randomness/requests/"+idHex+"/fulfill", common.Address{}, body)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, [][32]byte{value}, h.delivered)

	res = h.do(http.MethodPost, "/v1/randomness/requests/"+idHex+"/fulfill", common.Address{}, body)
	require.Equal(t, http.StatusConflict, res.Code)
	require.Len(t, h.delivered, 1)

	res = h.do(http.MethodGet, "/v1/randomness/requests/"+idHex, common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	view := decode[randomnessView](t, res)
	require.True(t, view.Fulfilled)
	require.Equal(t, hexutil.Encode(value[:]), view.Value)
	require.Equal(t, h.user.Hex(), view.Requester)

	missing := hexutil.Encode(make([]byte, 32))
	require.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/v1/randomness/requests/"+missing, common.Address{}, nil).Code)
}

func TestSetFulfillerRequiresRole(t *testing.T) {
	h := newHarness(t)
	next := common.Address{19: 0x33}
	res := h.do(http.MethodPut, "/v1/randomness/fulfiller", h.user, map[string]string{"address": next.Hex()})
	require.Equal(t, http.StatusForbidden, res.Code)
	res = h.do(http.MethodPut, "/v1/randomness/fulfiller", h.admin, map[string]string{"address": next.Hex()})
	require.Equal(t, http.StatusOK, res.Code)
}

func TestCreditEndpoints(t *testing.T) {
	h := newHarness(t)
	res := h.do(http.MethodGet, "/v1/credit/ceiling", common.Address{}, nil)
	require.Equal(t, credit.MinCeilingDuration*2, decode[map[string]uint64](t, res)["ceiling"])

	res = h.do(http.MethodPut, "/v1/credit/ceiling", h.admin, map[string]uint64{"ceiling": 60})
	require.Equal(t, http.StatusBadRequest, res.Code)
	res = h.do(http.MethodPut, "/v1/credit/ceiling", h.user, map[string]uint64{"ceiling": credit.MinCeilingDuration * 3})
	require.Equal(t, http.StatusForbidden, res.Code)
	res = h.do(http.MethodPut, "/v1/credit/ceiling", h.admin, map[string]uint64{"ceiling": credit.MinCeilingDuration * 3})
	require.Equal(t, http.StatusOK, res.Code)

	// A lock that has already ended is worth nothing.
	require.NoError(t, h.store.SetLock(h.user, uint256.NewInt(1_000), 1, 2, true))
	res = h.do(http.MethodGet, "/v1/credit/"+h.user.Hex(), common.Address{}, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, "0", decode[map[string]string](t, res)["credit"])

	require.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/v1/credit/nope", common.Address{}, nil).Code)
}

func TestPausesBlockMutations(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(21, 10, "0")
	require.NoError(t, h.store.UpsertProfile(h.user, 1, true))

	res := h.do(http.MethodPut, "/v1/pauses", h.admin, map[string]bool{"claims": true})
	require.Equal(t, http.StatusOK, res.Code)
	res = h.do(http.MethodGet, "/v1/pauses", common.Address{}, nil)
	require.Equal(t, true, decode[map[string]bool](t, res)["claims"])

	res = h.do(http.MethodPost, "/v1/campaigns/21/claim", h.user, nil)
	require.Equal(t, http.StatusLocked, res.Code)

	res = h.do(http.MethodPut, "/v1/pauses", h.admin, map[string]bool{"claims": false})
	require.Equal(t, http.StatusOK, res.Code)
	res = h.do(http.MethodPost, "/v1/campaigns/21/claim", h.user, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
}

func TestStatusMapping(t *testing.T) {
	cases := map[error]int{
		claims.ErrAlreadyClaimed:           http.StatusConflict,
		claims.ErrUserNotEligible:          http.StatusUnprocessableEntity,
		claims.ErrCampaignNotFound:         http.StatusNotFound,
		claims.ErrUnauthorized:             http.StatusForbidden,
		whitelist.ErrDuplicateRestriction:  http.StatusConflict,
		randomness.ErrAlreadyFulfilled:     http.StatusConflict,
		credit.ErrInvalidCeiling:           http.StatusBadRequest,
		claims.ErrCollaboratorMissing:      http.StatusServiceUnavailable,
		collab.ErrInsufficientBalance:      http.StatusInternalServerError,
	}
	for err, want := range cases {
		require.Equal(t, want, statusFor(err), err.Error())
	}
}
