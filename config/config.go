package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	NetworkName string `toml:"NetworkName"`
	Env         string `toml:"Env"`
	// OwnerAddress administers fee rates, proxy operators, airdrops and the
	// pass sale. Hex, 20 bytes.
	OwnerAddress string `toml:"OwnerAddress"`
	LogFile      string `toml:"LogFile"`
	// RPCAuthTokenEnv names the environment variable carrying the bearer
	// token required for administrative RPC methods.
	RPCAuthTokenEnv string  `toml:"RPCAuthTokenEnv"`
	RateLimitPerSec float64 `toml:"RateLimitPerSec"`
	RateLimitBurst  int     `toml:"RateLimitBurst"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./marketchain-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "marketchain-local"
	}
	if strings.TrimSpace(cfg.RPCAuthTokenEnv) == "" {
		cfg.RPCAuthTokenEnv = "MARKETCHAIN_RPC_TOKEN"
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = 50
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}
	if _, err := cfg.Owner(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Owner decodes the configured owner address.
func (c *Config) Owner() ([20]byte, error) {
	var owner [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(c.OwnerAddress), "0x")
	if trimmed == "" {
		return owner, fmt.Errorf("config: OwnerAddress is required")
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return owner, fmt.Errorf("config: invalid OwnerAddress: %w", err)
	}
	if len(raw) != 20 {
		return owner, fmt.Errorf("config: OwnerAddress must be 20 bytes, got %d", len(raw))
	}
	copy(owner[:], raw)
	return owner, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:      ":8080",
		DataDir:         "./marketchain-data",
		NetworkName:     "marketchain-local",
		OwnerAddress:    "0x" + strings.Repeat("00", 19) + "01",
		RPCAuthTokenEnv: "MARKETCHAIN_RPC_TOKEN",
		RateLimitPerSec: 50,
		RateLimitBurst:  100,
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
