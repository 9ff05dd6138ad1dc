package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is an optional YAML overlay for deployment-specific settings.
// Zero values leave the corresponding Config field untouched.
type Profile struct {
	Port       string `yaml:"port"`
	LogLevel   string `yaml:"log_level"`
	DataDir    string `yaml:"data_dir"`
	ArchiveDir string `yaml:"archive_dir"`
	GicDBPath  string `yaml:"gic_db_path"`

	GicPerPrivate int64 `yaml:"gic_per_private"`
	GicPerPublish int64 `yaml:"gic_per_publish"`
	RewardMinLen  int   `yaml:"reward_min_len"`

	BonusTopN   int   `yaml:"bonus_top_n"`
	BonusMinLen int   `yaml:"bonus_min_len"`
	BonusMin    int64 `yaml:"bonus_min"`
	BonusMax    int64 `yaml:"bonus_max"`

	SignerKeyPath  string `yaml:"signer_key_path"`
	SignerIdentity string `yaml:"signer_identity"`

	Node *NodeIdentity `yaml:"node"`
}

// LoadProfile reads a profile YAML from path.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	return &p, nil
}

// Apply overlays the profile onto cfg.
func (p *Profile) Apply(cfg *Config) {
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setStr(&cfg.Port, p.Port)
	setStr(&cfg.LogLevel, p.LogLevel)
	setStr(&cfg.DataDir, p.DataDir)
	setStr(&cfg.ArchiveDir, p.ArchiveDir)
	setStr(&cfg.GicDBPath, p.GicDBPath)
	setStr(&cfg.SignerKeyPath, p.SignerKeyPath)
	setStr(&cfg.SignerIdentity, p.SignerIdentity)

	if p.GicPerPrivate > 0 {
		cfg.GicPerPrivate = p.GicPerPrivate
	}
	if p.GicPerPublish > 0 {
		cfg.GicPerPublish = p.GicPerPublish
	}
	if p.RewardMinLen > 0 {
		cfg.RewardMinLen = p.RewardMinLen
	}
	if p.BonusTopN > 0 {
		cfg.BonusTopN = p.BonusTopN
	}
	if p.BonusMinLen > 0 {
		cfg.BonusMinLen = p.BonusMinLen
	}
	if p.BonusMin > 0 {
		cfg.BonusMin = p.BonusMin
	}
	if p.BonusMax > 0 {
		cfg.BonusMax = p.BonusMax
	}
	if p.Node != nil {
		setStr(&cfg.Node.NodeID, p.Node.NodeID)
		setStr(&cfg.Node.Author, p.Node.Author)
		setStr(&cfg.Node.NetworkID, p.Node.NetworkID)
		setStr(&cfg.Node.Version, p.Node.Version)
	}
}
