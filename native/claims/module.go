package claims

import nativecommon "lockdrop/native/common"

// Config holds the static parameters of the claims module.
type Config struct {
	ReservedFloor uint8
	MaxViewLength uint32
}

// Module wires the registry, ledger, eligibility views and processor over a
// single state backend.
type Module struct {
	Registry    *Registry
	Ledger      *Ledger
	Timed       *TimedStore
	Eligibility *Eligibility
	Processor   *Processor
}

// New assembles a claims module.
func New(st claimsState, cfg Config, deps Dependencies) *Module {
	registry := NewRegistry(st, cfg.ReservedFloor)
	ledger := NewLedger(st)
	timed := NewTimedStore(st, cfg.ReservedFloor)
	eligibility := NewEligibility(registry, ledger, timed, deps.Profiles, deps.Vault, cfg.MaxViewLength)
	return &Module{
		Registry:    registry,
		Ledger:      ledger,
		Timed:       timed,
		Eligibility: eligibility,
		Processor:   NewProcessor(st, registry, ledger, timed, eligibility, deps),
	}
}

// SetPauses installs the pause view on every mutating component.
func (m *Module) SetPauses(p nativecommon.PauseView) {
	m.Registry.SetPauses(p)
	m.Timed.SetPauses(p)
	m.Processor.SetPauses(p)
}
