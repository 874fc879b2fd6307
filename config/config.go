package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultCeilingSeconds is the credit ceiling applied when none is configured (one year).
	DefaultCeilingSeconds uint64 = 365 * 24 * 60 * 60
	// DefaultReservedFloor keeps legacy campaign identifiers off-limits.
	DefaultReservedFloor uint8 = 20
	// DefaultMaxViewLength bounds batch eligibility queries.
	DefaultMaxViewLength uint32 = 100
)

type Config struct {
	ListenAddress   string `toml:"ListenAddress"`
	MetricsAddress  string `toml:"MetricsAddress"`
	DataDir         string `toml:"DataDir"`
	StorageBackend  string `toml:"StorageBackend"`
	CollaboratorDSN string `toml:"CollaboratorDSN"`
	SeedFile        string `toml:"SeedFile"`
	LogFile         string `toml:"LogFile"`
	LogLevel        string `toml:"LogLevel"`
	Environment     string `toml:"Environment"`

	Roles      Roles      `toml:"Roles"`
	Credit     Credit     `toml:"Credit"`
	Claims     Claims     `toml:"Claims"`
	Randomness Randomness `toml:"Randomness"`
	Pauses     Pauses     `toml:"Pauses"`
	Auth       Auth       `toml:"Auth"`
	RateLimit  RateLimit  `toml:"RateLimit"`
	Kafka      Kafka      `toml:"Kafka"`
	Heights    Heights    `toml:"Heights"`
	Telemetry  Telemetry  `toml:"Telemetry"`
}

// Load loads the configuration from the given path, writing a default file
// first when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8090"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./lockdrop-data"
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = BackendLevelDB
	}
	if strings.TrimSpace(cfg.CollaboratorDSN) == "" {
		cfg.CollaboratorDSN = filepath.Join(cfg.DataDir, "collaborators.db")
	}
	if cfg.Credit.CeilingSeconds == 0 {
		cfg.Credit.CeilingSeconds = DefaultCeilingSeconds
	}
	if cfg.Claims.ReservedFloor == 0 {
		cfg.Claims.ReservedFloor = DefaultReservedFloor
	}
	if cfg.Claims.MaxViewLength == 0 {
		cfg.Claims.MaxViewLength = DefaultMaxViewLength
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 50
	}
	if cfg.Heights.BlockSeconds == 0 {
		cfg.Heights.BlockSeconds = 3
	}
	if cfg.Randomness.EpochSeconds == 0 {
		cfg.Randomness.EpochSeconds = 3600
	}
	if strings.TrimSpace(cfg.Kafka.Topic) == "" {
		cfg.Kafka.Topic = "lockdrop.events"
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
