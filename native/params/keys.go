package params

const (
	// ParamsKeyPauses stores the module pause configuration.
	ParamsKeyPauses = "system/pauses"
)

// Module names understood by IsPaused.
const (
	ModuleCredit     = "credit"
	ModuleClaims     = "claims"
	ModuleWhitelist  = "whitelist"
	ModuleRandomness = "randomness"
)
