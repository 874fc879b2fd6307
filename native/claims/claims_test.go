package claims_test

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"lockdrop/core/events"
	"lockdrop/core/state"
	nativecommon "lockdrop/native/common"
	"lockdrop/native/claims"
	"lockdrop/storage"
)

const roleCampaignAdmin = "ROLE_CAMPAIGN_ADMIN"

var (
	admin = addr(0xA1)
	alice = addr(0x01)
	bob   = addr(0x02)
)

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

type fakeProfiles struct {
	profiles   map[[20]byte]claims.Profile
	points     map[[20]byte]uint64
	pointsCamp []uint64
	failPoints error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: make(map[[20]byte]claims.Profile), points: make(map[[20]byte]uint64)}
}

func (f *fakeProfiles) IsRegistered(user [20]byte) (bool, error) {
	_, ok := f.profiles[user]
	return ok, nil
}

func (f *fakeProfiles) Profile(user [20]byte) (claims.Profile, error) {
	p, ok := f.profiles[user]
	if !ok {
		return claims.Profile{}, errors.New("no profile")
	}
	return p, nil
}

func (f *fakeProfiles) AddPoints(user [20]byte, amount uint64, campaignID uint64) error {
	if f.failPoints != nil {
		return f.failPoints
	}
	f.points[user] += amount
	f.pointsCamp = append(f.pointsCamp, campaignID)
	return nil
}

type fakeCollector struct {
	next   uint64
	minted []uint8
	fail   error
	onMint func(to [20]byte, id uint8)
}

func (f *fakeCollector) Mint(to [20]byte, metadata string, id uint8) (uint64, error) {
	if f.onMint != nil {
		f.onMint(to, id)
	}
	if f.fail != nil {
		return 0, f.fail
	}
	f.next++
	f.minted = append(f.minted, id)
	return f.next, nil
}

type fakePayments struct {
	balances map[[20]byte]int64
	refunds  int
	fail     error
}

func (f *fakePayments) Collect(from [20]byte, amount *big.Int) error {
	if f.fail != nil {
		return f.fail
	}
	if f.balances[from] < amount.Int64() {
		return errors.New("insufficient balance")
	}
	f.balances[from] -= amount.Int64()
	return nil
}

func (f *fakePayments) Refund(to [20]byte, amount *big.Int) error {
	f.refunds++
	f.balances[to] += amount.Int64()
	return nil
}

type fakeVault map[[20]byte]claims.Deposit

func (f fakeVault) Deposit(user [20]byte) (claims.Deposit, error) {
	return f[user], nil
}

type fixedHeight uint64

func (h fixedHeight) CurrentHeight() (uint64, error) { return uint64(h), nil }

type pauseAll struct{}

func (pauseAll) IsPaused(string) bool { return true }

type harness struct {
	st       *state.Manager
	rec      *events.Recorder
	mod      *claims.Module
	profiles *fakeProfiles
	mint     *fakeCollector
	pay      *fakePayments
	vault    fakeVault
	height   *fixedHeight
}

type heightRef struct{ h *fixedHeight }

func (r heightRef) CurrentHeight() (uint64, error) { return uint64(*r.h), nil }

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	st := state.NewManager(db)
	rec := &events.Recorder{}
	st.SetEmitter(rec)
	if err := st.SetRole(roleCampaignAdmin, admin[:]); err != nil {
		t.Fatalf("grant role: %v", err)
	}
	h := &harness{
		st:       st,
		rec:      rec,
		profiles: newFakeProfiles(),
		mint:     &fakeCollector{},
		pay:      &fakePayments{balances: make(map[[20]byte]int64)},
		vault:    fakeVault{},
	}
	height := fixedHeight(100)
	h.height = &height
	h.mod = claims.New(st, claims.Config{ReservedFloor: 20, MaxViewLength: 4}, claims.Dependencies{
		Profiles:  h.profiles,
		Collector: h.mint,
		Payments:  h.pay,
		Vault:     h.vault,
		Heights:   heightRef{h: h.height},
	})
	return h
}

func (h *harness) addCampaign(t *testing.T, id uint8, threshold uint64, cost int64) {
	t.Helper()
	if _, err := h.mod.Registry.AddCampaign(admin, id, "ipfs://reward", threshold, big.NewInt(cost)); err != nil {
		t.Fatalf("add campaign %d: %v", id, err)
	}
}

func TestAddCampaignRules(t *testing.T) {
	h := newHarness(t)
	reg := h.mod.Registry

	if _, err := reg.AddCampaign(alice, 20, "meta", 10, nil); !errors.Is(err, claims.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if !errors.Is(claims.ErrUnauthorized, nativecommon.ErrUnauthorized) {
		t.Fatalf("package error must wrap the shared sentinel")
	}
	if _, err := reg.AddCampaign(admin, 19, "meta", 10, nil); !errors.Is(err, claims.ErrCampaignIDReserved) {
		t.Fatalf("expected reserved id, got %v", err)
	}
	if _, err := reg.AddCampaign(admin, 20, "  ", 10, nil); !errors.Is(err, claims.ErrInvalidCampaign) {
		t.Fatalf("expected invalid campaign, got %v", err)
	}
	if _, err := reg.AddCampaign(admin, 20, "meta", 10, big.NewInt(-1)); !errors.Is(err, claims.ErrInvalidCampaign) {
		t.Fatalf("expected negative cost rejected, got %v", err)
	}
	campaign, err := reg.AddCampaign(admin, 20, "meta", 10, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !campaign.Active || !campaign.Created || campaign.Cost.Sign() != 0 {
		t.Fatalf("unexpected campaign %+v", campaign)
	}
	if _, err := reg.UpdateCampaign(admin, 20, 10, nil, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := reg.AddCampaign(admin, 20, "again", 10, nil); !errors.Is(err, claims.ErrCampaignAlreadyCreated) {
		t.Fatalf("expected already created after deactivation, got %v", err)
	}
	if _, err := reg.AddCampaign(admin, 255, "max", 1, nil); err != nil {
		t.Fatalf("add max id: %v", err)
	}
	count, err := reg.CampaignCount()
	if err != nil || count != 2 {
		t.Fatalf("expected count 2, got %d err=%v", count, err)
	}
	list, err := reg.Campaigns()
	if err != nil || len(list) != 2 || list[0].ID != 20 || list[1].ID != 255 {
		t.Fatalf("unexpected listing %+v err=%v", list, err)
	}
	created, ok := h.rec.Events()[0].(events.CampaignCreated)
	if !ok || created.CampaignID != 20 || created.Count != 1 {
		t.Fatalf("unexpected first event %+v", h.rec.Events()[0])
	}
}

func TestUpdateCampaign(t *testing.T) {
	h := newHarness(t)
	if _, err := h.mod.Registry.UpdateCampaign(admin, 30, 1, nil, true); !errors.Is(err, claims.ErrCampaignNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	h.addCampaign(t, 30, 10, 0)
	updated, err := h.mod.Registry.UpdateCampaign(admin, 30, 3, big.NewInt(7), true)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.TierThreshold != 3 || updated.Cost.Int64() != 7 || updated.RewardMetadata != "ipfs://reward" {
		t.Fatalf("unexpected update %+v", updated)
	}
	ev, ok := h.rec.Last().(events.CampaignUpdated)
	if !ok || ev.CampaignID != 30 || ev.TierThreshold != 3 {
		t.Fatalf("unexpected event %+v", h.rec.Last())
	}
}

func TestClaimEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(t, 20, 10, 0)
	if err := h.mod.Timed.SetClaimPoints(admin, 50); err != nil {
		t.Fatalf("set points: %v", err)
	}
	h.profiles.profiles[alice] = claims.Profile{TierID: 5, Active: true}

	ok, err := h.mod.Eligibility.CanClaim(alice, 20)
	if err != nil || !ok {
		t.Fatalf("expected claimable, got %v err=%v", ok, err)
	}
	receipt, err := h.mod.Processor.Claim(alice, 20)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if receipt.IssuedID != 1 || receipt.Points != 50 || receipt.PointsErr != nil {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if len(h.mint.minted) != 1 || h.profiles.points[alice] != 50 || h.profiles.pointsCamp[0] != 20 {
		t.Fatalf("collaborators not invoked as expected")
	}
	claimed, _ := h.mod.Ledger.HasClaimed(alice, 20)
	if !claimed {
		t.Fatalf("ledger must record the claim")
	}
	ev, ok := h.rec.Last().(events.RewardClaimed)
	if !ok || ev.IssuedID != 1 || ev.CampaignID != 20 {
		t.Fatalf("unexpected event %+v", h.rec.Last())
	}
	if ok, _ := h.mod.Eligibility.CanClaim(alice, 20); ok {
		t.Fatalf("claimed pair must not be claimable")
	}
	if _, err := h.mod.Processor.Claim(alice, 20); !errors.Is(err, claims.ErrAlreadyClaimed) {
		t.Fatalf("expected already claimed, got %v", err)
	}
	if len(h.mint.minted) != 1 {
		t.Fatalf("second claim must not mint")
	}
	ids, err := h.mod.Ledger.ClaimedCampaigns(alice)
	if err != nil || len(ids) != 1 || ids[0] != 20 {
		t.Fatalf("unexpected claimed ids %v err=%v", ids, err)
	}
}

func TestClaimGateOrder(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(t, 20, 10, 0)
	h.addCampaign(t, 21, 10, 0)
	if _, err := h.mod.Registry.UpdateCampaign(admin, 21, 10, nil, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	h.profiles.profiles[bob] = claims.Profile{TierID: 10, Active: true}

	cases := []struct {
		name string
		user [20]byte
		id   uint8
		want error
	}{
		{"zero address", [20]byte{}, 20, claims.ErrInvalidAddress},
		{"reserved", alice, 5, claims.ErrCampaignIDReserved},
		{"missing", alice, 40, claims.ErrCampaignNotFound},
		{"inactive", alice, 21, claims.ErrCampaignInactive},
		{"unregistered", alice, 20, claims.ErrUserNotRegistered},
		{"tier at threshold", bob, 20, claims.ErrUserNotEligible},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.mod.Processor.Claim(tc.user, tc.id); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	h.profiles.profiles[alice] = claims.Profile{TierID: 1, Active: false}
	if _, err := h.mod.Processor.Claim(alice, 20); !errors.Is(err, claims.ErrUserNotActive) {
		t.Fatalf("expected inactive user, got %v", err)
	}
	if len(h.mint.minted) != 0 {
		t.Fatalf("rejected claims must not mint")
	}
}

func TestClaimCollectsCost(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(t, 20, 10, 30)
	h.profiles.profiles[alice] = claims.Profile{TierID: 1, Active: true}

	if _, err := h.mod.Processor.Claim(alice, 20); !errors.Is(err, claims.ErrPaymentFailed) {
		t.Fatalf("expected payment failure, got %v", err)
	}
	if claimed, _ := h.mod.Ledger.HasClaimed(alice, 20); claimed {
		t.Fatalf("failed payment must leave the ledger untouched")
	}
	if h.rec.Len() != 1 {
		t.Fatalf("failed claim must not emit events")
	}

	h.pay.balances[alice] = 100
	receipt, err := h.mod.Processor.Claim(alice, 20)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if receipt.CostPaid.Int64() != 30 || h.pay.balances[alice] != 70 {
		t.Fatalf("unexpected payment: receipt=%+v balance=%d", receipt, h.pay.balances[alice])
	}
}

func TestClaimMintFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(t, 20, 10, 30)
	h.profiles.profiles[alice] = claims.Profile{TierID: 1, Active: true}
	h.pay.balances[alice] = 30
	h.mint.fail = errors.New("collector offline")

	if _, err := h.mod.Processor.Claim(alice, 20); !errors.Is(err, claims.ErrMintFailed) {
		t.Fatalf("expected mint failure, got %v", err)
	}
	if claimed, _ := h.mod.Ledger.HasClaimed(alice, 20); claimed {
		t.Fatalf("mint failure must discard the staged flag")
	}
	if h.pay.refunds != 1 || h.pay.balances[alice] != 30 {
		t.Fatalf("expected refund, refunds=%d balance=%d", h.pay.refunds, h.pay.balances[alice])
	}

	h.mint.fail = nil
	if _, err := h.mod.Processor.Claim(alice, 20); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
}

func TestClaimReentrancyObservesFlag(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(t, 20, 10, 0)
	h.profiles.profiles[alice] = claims.Profile{TierID: 1, Active: true}

	var innerErr error
	h.mint.onMint = func(to [20]byte, id uint8) {
		h.mint.onMint = nil
		_, innerErr = h.mod.Processor.Claim(to, id)
	}
	if _, err := h.mod.Processor.Claim(alice, 20); err != nil {
		t.Fatalf("outer claim: %v", err)
	}
	if !errors.Is(innerErr, claims.ErrAlreadyClaimed) {
		t.Fatalf("reentrant claim must be rejected, got %v", innerErr)
	}
	if len(h.mint.minted) != 1 {
		t.Fatalf("expected exactly one mint, got %d", len(h.mint.minted))
	}
}

func TestClaimPointsFailureIsReported(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(t, 20, 10, 0)
	if err := h.mod.Timed.SetClaimPoints(admin, 5); err != nil {
		t.Fatalf("set points: %v", err)
	}
	h.profiles.profiles[alice] = claims.Profile{TierID: 1, Active: true}
	h.profiles.failPoints = errors.New("points service down")

	receipt, err := h.mod.Processor.Claim(alice, 20)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !errors.Is(receipt.PointsErr, claims.ErrPointsFailed) || receipt.Points != 0 {
		t.Fatalf("expected points failure on receipt, got %+v", receipt)
	}
	var sawFailure bool
	for _, ev := range h.rec.Events() {
		if ev.EventType() == events.TypeClaimPointsFailed {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Fatalf("expected points failure event")
	}
}

func TestClaimPaused(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(t, 20, 10, 0)
	h.mod.SetPauses(pauseAll{})
	if _, err := h.mod.Processor.Claim(alice, 20); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused, got %v", err)
	}
	if _, err := h.mod.Registry.AddCampaign(admin, 21, "meta", 1, nil); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused registry, got %v", err)
	}
}

func TestCanClaimBatch(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(t, 20, 10, 0)
	h.addCampaign(t, 21, 3, 0)

	if _, err := h.mod.Eligibility.CanClaimBatch(alice, []uint8{20, 21, 22, 23, 24}); !errors.Is(err, claims.ErrBatchTooLarge) {
		t.Fatalf("expected batch too large, got %v", err)
	}
	out, err := h.mod.Eligibility.CanClaimBatch(alice, []uint8{20, 21})
	if err != nil || out == nil || len(out) != 0 {
		t.Fatalf("unregistered user must yield an empty slice, got %v err=%v", out, err)
	}
	h.profiles.profiles[alice] = claims.Profile{TierID: 5, Active: true}
	out, err = h.mod.Eligibility.CanClaimBatch(alice, []uint8{21, 20, 99})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(out) != 3 || out[0] || !out[1] || out[2] {
		t.Fatalf("unexpected batch answer %v", out)
	}
	h.profiles.profiles[alice] = claims.Profile{TierID: 5, Active: false}
	out, _ = h.mod.Eligibility.CanClaimBatch(alice, []uint8{20})
	if len(out) != 0 {
		t.Fatalf("inactive user must yield an empty slice, got %v", out)
	}
}

func TestTimedClaim(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(t, 25, 10, 0)
	h.profiles.profiles[alice] = claims.Profile{TierID: 1, Active: true}
	h.profiles.profiles[bob] = claims.Profile{TierID: 1, Active: true}

	if _, err := h.mod.Processor.ClaimTimed(alice); !errors.Is(err, claims.ErrTimedNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
	timed := h.mod.Timed
	if err := timed.SetTimedCampaignID(alice, 25); !errors.Is(err, claims.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := timed.SetTimedCampaignID(admin, 3); !errors.Is(err, claims.ErrCampaignIDReserved) {
		t.Fatalf("expected reserved, got %v", err)
	}
	for _, step := range []func() error{
		func() error { return timed.SetTimedCampaignID(admin, 25) },
		func() error { return timed.SetEndBlock(admin, 200) },
		func() error { return timed.SetThresholdTimestamp(admin, 1_000) },
		func() error { return timed.SetTimedPoints(admin, 75) },
		func() error { return timed.SetPointsCampaignID(admin, 511010101) },
	} {
		if err := step(); err != nil {
			t.Fatalf("configure timed campaign: %v", err)
		}
	}
	cfg, ok, err := timed.Config()
	if err != nil || !ok || cfg.CampaignID != 25 || cfg.EndBlock != 200 || cfg.Points != 75 {
		t.Fatalf("unexpected timed config %+v ok=%v err=%v", cfg, ok, err)
	}

	h.vault[alice] = claims.Deposit{LastDepositedTime: 500, Shares: big.NewInt(1)}
	h.vault[bob] = claims.Deposit{LastDepositedTime: 1_000, Shares: big.NewInt(1)}

	if ok, _ := h.mod.Eligibility.CanClaimTimed(bob, 100); ok {
		t.Fatalf("deposit at threshold must not qualify")
	}
	if _, err := h.mod.Processor.ClaimTimed(bob); !errors.Is(err, claims.ErrUserNotEligible) || !strings.Contains(err.Error(), "threshold") {
		t.Fatalf("expected deposit gate, got %v", err)
	}

	carol := addr(0x04)
	h.profiles.profiles[carol] = claims.Profile{TierID: 1, Active: true}
	h.vault[carol] = claims.Deposit{LastDepositedTime: 0}
	if ok, err := h.mod.Eligibility.CanClaimTimed(carol, 100); ok || err != nil {
		t.Fatalf("user without deposit must not qualify, ok=%v err=%v", ok, err)
	}
	if _, err := h.mod.Processor.ClaimTimed(carol); !errors.Is(err, claims.ErrUserNotEligible) || !strings.Contains(err.Error(), "no deposit") {
		t.Fatalf("expected no deposit rejection, got %v", err)
	}
	if claimed, _ := h.mod.Ledger.HasClaimed(carol, 25); claimed {
		t.Fatalf("rejected claim must not be recorded")
	}
	if ok, _ := h.mod.Eligibility.CanClaimTimed(alice, 200); ok {
		t.Fatalf("height at end block must not qualify")
	}
	if ok, _ := h.mod.Eligibility.CanClaimTimed(alice, 199); !ok {
		t.Fatalf("expected alice eligible before the deadline")
	}

	receipt, err := h.mod.Processor.ClaimTimed(alice)
	if err != nil {
		t.Fatalf("timed claim: %v", err)
	}
	if receipt.CampaignID != 25 || receipt.Points != 75 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if got := h.profiles.pointsCamp[len(h.profiles.pointsCamp)-1]; got != 511010101 {
		t.Fatalf("expected points campaign id forwarded, got %d", got)
	}

	*h.height = 200
	h.profiles.profiles[addr(0x03)] = claims.Profile{TierID: 1, Active: true}
	h.vault[addr(0x03)] = claims.Deposit{LastDepositedTime: 1}
	if _, err := h.mod.Processor.ClaimTimed(addr(0x03)); !errors.Is(err, claims.ErrDeadlinePassed) {
		t.Fatalf("expected deadline passed, got %v", err)
	}
}
