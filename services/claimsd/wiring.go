package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"lockdrop/config"
	"lockdrop/core/events"
	"lockdrop/core/state"
	"lockdrop/crypto"
	"lockdrop/native/claims"
	nativecommon "lockdrop/native/common"
	"lockdrop/native/credit"
	"lockdrop/native/params"
	"lockdrop/native/randomness"
	"lockdrop/native/whitelist"
	"lockdrop/observability"
	"lockdrop/services/claimsd/collab"
	"lockdrop/services/claimsd/server"
	"lockdrop/services/claimsd/sink"
	"lockdrop/storage"
)

const (
	roleCreditAdmin     = "ROLE_CREDIT_ADMIN"
	roleCampaignAdmin   = "ROLE_CAMPAIGN_ADMIN"
	roleWhitelistOwner  = "ROLE_WHITELIST_OWNER"
	roleRandomnessAdmin = "ROLE_RANDOMNESS_ADMIN"

	// auditConsumer receives every fulfilled value and logs it.
	auditConsumer = "audit"
)

// openDatabase opens the configured state backend.
func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendLevelDB:
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	case config.BackendBolt:
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "state.db"), nil)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.StorageBackend)
	}
}

// grantRoles installs the configured role members.
func grantRoles(manager *state.Manager, roles config.Roles) error {
	groups := []struct {
		role    string
		members []string
	}{
		{roleCreditAdmin, roles.CreditAdmins},
		{roleCampaignAdmin, roles.CampaignAdmins},
		{roleWhitelistOwner, roles.WhitelistOwners},
		{roleRandomnessAdmin, roles.RandomnessAdmins},
	}
	return manager.Atomic(func() error {
		for _, group := range groups {
			for _, member := range group.members {
				addr, err := crypto.ParseAddress(member)
				if err != nil {
					return fmt.Errorf("%s: %w", group.role, err)
				}
				if err := manager.SetRole(group.role, addr[:]); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// buildNode assembles every module over manager and applies genesis values
// that have not been written yet.
func buildNode(cfg *config.Config, manager *state.Manager, store *collab.Store, logger *slog.Logger) (server.Node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := grantRoles(manager, cfg.Roles); err != nil {
		return server.Node{}, fmt.Errorf("grant roles: %w", err)
	}
	pauses := params.NewStore(manager)
	if err := pauses.SetPauses(cfg.Pauses); err != nil {
		return server.Node{}, fmt.Errorf("apply pauses: %w", err)
	}

	creditEngine := credit.NewEngine(manager, store, cfg.Credit.CeilingSeconds)
	creditEngine.SetPauses(pauses)
	if err := creditEngine.InitGenesis(cfg.Credit.CeilingSeconds); err != nil {
		return server.Node{}, fmt.Errorf("credit genesis: %w", err)
	}

	heights := collab.NewClockHeights(cfg.Heights.GenesisUnix, cfg.Heights.BlockSeconds)
	module := claims.New(manager, claims.Config{
		ReservedFloor: cfg.Claims.ReservedFloor,
		MaxViewLength: cfg.Claims.MaxViewLength,
	}, claims.Dependencies{
		Profiles:  store,
		Collector: store,
		Payments:  store,
		Vault:     store,
		Heights:   heights,
	})
	module.SetPauses(pauses)
	var timed *claims.TimedCampaign
	if t := cfg.Claims.Timed; t.CampaignID != 0 {
		timed = &claims.TimedCampaign{
			CampaignID:         t.CampaignID,
			PointsCampaignID:   t.PointsCampaignID,
			Points:             t.Points,
			EndBlock:           t.EndBlock,
			ThresholdTimestamp: t.ThresholdTimestamp,
		}
	}
	if err := module.Timed.InitGenesis(cfg.Claims.ClaimPoints, timed); err != nil {
		return server.Node{}, fmt.Errorf("claims genesis: %w", err)
	}

	wl := whitelist.NewEngine(manager, store)
	wl.SetPauses(pauses)

	coordinator := randomness.NewCoordinator(manager)
	coordinator.SetPauses(pauses)
	coordinator.SetQuota(nativecommon.Quota{
		MaxPerEpoch:  cfg.Randomness.MaxRequestsPerEpoch,
		EpochSeconds: cfg.Randomness.EpochSeconds,
	})
	coordinator.RegisterConsumer(auditConsumer, randomness.ConsumerFunc(func(id, value [32]byte) error {
		logger.Info("randomness delivered",
			slog.String("request_id", fmt.Sprintf("%x", id)),
			slog.String("value", fmt.Sprintf("%x", value)))
		return nil
	}))
	if raw := strings.TrimSpace(cfg.Randomness.Fulfiller); raw != "" {
		fulfiller, err := crypto.ParseAddress(raw)
		if err != nil {
			return server.Node{}, fmt.Errorf("randomness fulfiller: %w", err)
		}
		if err := coordinator.InitGenesis(fulfiller); err != nil {
			return server.Node{}, fmt.Errorf("randomness genesis: %w", err)
		}
	}

	return server.Node{
		State:      manager,
		Credit:     creditEngine,
		Claims:     module,
		Whitelist:  wl,
		Randomness: coordinator,
		Params:     pauses,
		Heights:    heights,
	}, nil
}

// emitters fans committed events out to the log, the event counter and any
// extra sinks.
func emitters(logger *slog.Logger, extra ...events.Emitter) events.Emitter {
	out := events.MultiEmitter{sink.LogEmitter{Logger: logger}, observability.Events().Emitter()}
	for _, e := range extra {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}
