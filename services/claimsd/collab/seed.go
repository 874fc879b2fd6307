package collab

import (
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"lockdrop/crypto"
)

// Seed describes collaborator fixtures loaded at startup, typically for
// local development and integration environments.
type Seed struct {
	Profiles []struct {
		Address string `yaml:"address"`
		Tier    uint64 `yaml:"tier"`
		Active  *bool  `yaml:"active"`
	} `yaml:"profiles"`
	Locks []struct {
		Address string `yaml:"address"`
		Amount  string `yaml:"amount"`
		Start   uint64 `yaml:"start"`
		End     uint64 `yaml:"end"`
		Locked  bool   `yaml:"locked"`
	} `yaml:"locks"`
	Deposits []struct {
		Address           string `yaml:"address"`
		LastDepositedTime uint64 `yaml:"last_deposited_time"`
		Shares            string `yaml:"shares"`
	} `yaml:"deposits"`
	Balances []struct {
		Address string `yaml:"address"`
		Amount  string `yaml:"amount"`
	} `yaml:"balances"`
	Assets []struct {
		ID       uint64 `yaml:"id"`
		Category uint8  `yaml:"category"`
	} `yaml:"assets"`
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("collab: parse seed: %w", err)
	}
	return &seed, nil
}

// Apply writes every fixture into the store.
func (seed *Seed) Apply(s *Store) error {
	for _, p := range seed.Profiles {
		addr, err := crypto.ParseAddress(p.Address)
		if err != nil {
			return fmt.Errorf("seed profile: %w", err)
		}
		active := true
		if p.Active != nil {
			active = *p.Active
		}
		if err := s.UpsertProfile(addr, p.Tier, active); err != nil {
			return err
		}
	}
	for _, l := range seed.Locks {
		addr, err := crypto.ParseAddress(l.Address)
		if err != nil {
			return fmt.Errorf("seed lock: %w", err)
		}
		amount, err := uint256.FromDecimal(strings.TrimSpace(l.Amount))
		if err != nil {
			return fmt.Errorf("seed lock %s: %w", l.Address, err)
		}
		if err := s.SetLock(addr, amount, l.Start, l.End, l.Locked); err != nil {
			return err
		}
	}
	for _, d := range seed.Deposits {
		addr, err := crypto.ParseAddress(d.Address)
		if err != nil {
			return fmt.Errorf("seed deposit: %w", err)
		}
		shares, err := parseAmount(d.Shares)
		if err != nil {
			return err
		}
		if err := s.SetDeposit(addr, d.LastDepositedTime, shares); err != nil {
			return err
		}
	}
	for _, b := range seed.Balances {
		addr, err := crypto.ParseAddress(b.Address)
		if err != nil {
			return fmt.Errorf("seed balance: %w", err)
		}
		amount, err := parseAmount(b.Amount)
		if err != nil {
			return err
		}
		if err := s.SetBalance(addr, amount); err != nil {
			return err
		}
	}
	for _, a := range seed.Assets {
		if err := s.SetCategory(a.ID, a.Category); err != nil {
			return err
		}
	}
	return nil
}

