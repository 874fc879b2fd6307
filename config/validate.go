package config

import (
	"fmt"

	"lockdrop/crypto"
)

const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

// MinCeilingSeconds mirrors the credit module's lower bound (one week).
var MinCeilingSeconds = uint64(7 * 24 * 60 * 60)

// Validate checks the loaded configuration for invariant violations.
func (cfg *Config) Validate() error {
	switch cfg.StorageBackend {
	case BackendMemory, BackendLevelDB, BackendBolt:
	default:
		return fmt.Errorf("storage: unknown backend %q", cfg.StorageBackend)
	}
	if cfg.Credit.CeilingSeconds < MinCeilingSeconds {
		return fmt.Errorf("credit: ceiling %d below minimum %d", cfg.Credit.CeilingSeconds, MinCeilingSeconds)
	}
	if cfg.Claims.MaxViewLength == 0 {
		return fmt.Errorf("claims: max_view_length must be positive")
	}
	if cfg.Claims.Timed.CampaignID != 0 && cfg.Claims.Timed.CampaignID < cfg.Claims.ReservedFloor {
		return fmt.Errorf("claims: timed campaign id %d below reserved floor %d", cfg.Claims.Timed.CampaignID, cfg.Claims.ReservedFloor)
	}
	groups := map[string][]string{
		"credit_admins":     cfg.Roles.CreditAdmins,
		"campaign_admins":   cfg.Roles.CampaignAdmins,
		"whitelist_owners":  cfg.Roles.WhitelistOwners,
		"randomness_admins": cfg.Roles.RandomnessAdmins,
	}
	for name, entries := range groups {
		for _, entry := range entries {
			if _, err := crypto.ParseAddress(entry); err != nil {
				return fmt.Errorf("roles.%s: %w", name, err)
			}
		}
	}
	if cfg.Randomness.Fulfiller != "" {
		if _, err := crypto.ParseAddress(cfg.Randomness.Fulfiller); err != nil {
			return fmt.Errorf("randomness.fulfiller: %w", err)
		}
	}
	return nil
}
