package config

// Roles lists the addresses granted each administrative role at genesis.
// Entries accept 0x-prefixed hex or bech32 encoding.
type Roles struct {
	CreditAdmins     []string `toml:"CreditAdmins"`
	CampaignAdmins   []string `toml:"CampaignAdmins"`
	WhitelistOwners  []string `toml:"WhitelistOwners"`
	RandomnessAdmins []string `toml:"RandomnessAdmins"`
}

// Credit configures the credit valuator.
type Credit struct {
	// CeilingSeconds is the lock duration at which credit saturates.
	CeilingSeconds uint64 `toml:"CeilingSeconds"`
}

// TimedCampaign configures the single time-boxed campaign. A zero CampaignID
// leaves the timed flow unconfigured.
type TimedCampaign struct {
	CampaignID         uint8  `toml:"CampaignID"`
	PointsCampaignID   uint64 `toml:"PointsCampaignID"`
	Points             uint64 `toml:"Points"`
	EndBlock           uint64 `toml:"EndBlock"`
	ThresholdTimestamp uint64 `toml:"ThresholdTimestamp"`
}

// Heights derives the block height used by deadline checks from wall-clock
// time: height = (now - GenesisUnix) / BlockSeconds.
type Heights struct {
	GenesisUnix  int64  `toml:"GenesisUnix"`
	BlockSeconds uint64 `toml:"BlockSeconds"`
}

// Claims configures the campaign registry and claim processor.
type Claims struct {
	ReservedFloor uint8         `toml:"ReservedFloor"`
	MaxViewLength uint32        `toml:"MaxViewLength"`
	ClaimPoints   uint64        `toml:"ClaimPoints"`
	Timed         TimedCampaign `toml:"Timed"`
}

// Randomness configures the request/fulfilment coordinator.
type Randomness struct {
	Fulfiller string `toml:"Fulfiller"`
	// MaxRequestsPerEpoch bounds requests per requester; zero disables it.
	MaxRequestsPerEpoch uint32 `toml:"MaxRequestsPerEpoch"`
	EpochSeconds        uint32 `toml:"EpochSeconds"`
}

// Pauses toggles individual modules off. Paused modules reject every
// mutating operation.
type Pauses struct {
	Credit     bool `toml:"Credit" json:"credit"`
	Claims     bool `toml:"Claims" json:"claims"`
	Whitelist  bool `toml:"Whitelist" json:"whitelist"`
	Randomness bool `toml:"Randomness" json:"randomness"`
}

// Auth configures bearer token validation for administrative endpoints.
type Auth struct {
	HMACSecret string `toml:"HMACSecret"`
	Issuer     string `toml:"Issuer"`
	Audience   string `toml:"Audience"`
}

// RateLimit bounds the request rate per client.
type RateLimit struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// Kafka configures the optional event sink.
type Kafka struct {
	Brokers []string `toml:"Brokers"`
	Topic   string   `toml:"Topic"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}
