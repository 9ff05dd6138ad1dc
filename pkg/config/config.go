// Package config loads runtime configuration from environment variables,
// with an optional YAML profile for deployment-specific overrides.
package config

import (
	"os"
	"regexp"
	"strconv"
)

// NodeIdentity is the metadata stamped into every record's meta block so an
// auditor can tell which node wrote it.
type NodeIdentity struct {
	NodeID    string `yaml:"node_id"`
	Author    string `yaml:"author"`
	NetworkID string `yaml:"network_id"`
	Version   string `yaml:"version"`
}

// Meta returns the identity as record metadata.
func (n NodeIdentity) Meta() map[string]interface{} {
	return map[string]interface{}{
		"node_id":    n.NodeID,
		"author":     n.Author,
		"network_id": n.NetworkID,
		"version":    n.Version,
	}
}

// Config holds all service configuration.
type Config struct {
	Port       string
	LogLevel   string
	DataDir    string
	ArchiveDir string
	GicDBPath  string

	DemoMode bool

	// Reward engine
	GicPerPrivate int64
	GicPerPublish int64
	RewardMinLen  int

	// Bonus engine defaults
	BonusTopN   int
	BonusMinLen int
	BonusMin    int64
	BonusMax    int64

	// Signing
	SignerKeyPath  string
	SignerIdentity string

	Node NodeIdentity
}

// Load reads configuration from environment variables. DEMO_MODE=true
// shrinks reward amounts and the minimum length so the full flow can be
// exercised with short notes.
func Load() *Config {
	cfg := &Config{
		Port:       envOr("PORT", "8080"),
		LogLevel:   envOr("LOG_LEVEL", "INFO"),
		DataDir:    envOr("LEDGER_PATH", "data"),
		ArchiveDir: envOr("ARCHIVE_PATH", "archive"),
		GicDBPath:  envOr("GIC_DB_PATH", "data/gic.db"),

		DemoMode: os.Getenv("DEMO_MODE") == "true",

		BonusTopN:   envInt("BONUS_TOP_N", 10),
		BonusMinLen: envInt("BONUS_MIN_LEN", 200),
		BonusMin:    int64(envInt("BONUS_MIN", 50)),
		BonusMax:    int64(envInt("BONUS_MAX", 100)),

		SignerKeyPath:  envOr("SIGNER_KEY_PATH", "data/signer.key"),
		SignerIdentity: envOr("LEDGER_SIGNER", ""),

		Node: NodeIdentity{
			NodeID:    envOr("NODE_ID", "hive-ledger"),
			Author:    envOr("AUTHOR", "Hive Ledger Node"),
			NetworkID: envOr("NETWORK_ID", "Kaizen-DVA"),
			Version:   envOr("VERSION", "0.1.0"),
		},
	}

	if cfg.DemoMode {
		cfg.GicPerPrivate = 1
		cfg.GicPerPublish = 2
		cfg.RewardMinLen = 1
	} else {
		cfg.GicPerPrivate = int64(envInt("GIC_PER_PRIVATE", 10))
		cfg.GicPerPublish = int64(envInt("GIC_PER_PUBLISH", 25))
		cfg.RewardMinLen = envInt("REWARD_MIN_LEN", 200)
	}

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

var digitsRE = regexp.MustCompile(`\d+`)

// envInt extracts the first integer from the variable's value, tolerating
// stray characters ("25 GIC" reads as 25).
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	m := digitsRE.FindString(v)
	if m == "" {
		return def
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return def
	}
	return n
}
