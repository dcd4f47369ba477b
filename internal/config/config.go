package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/suricata-config/internal/suricata"
)

// Environment variables read by Load. SURICATA_EXE is also read by
// suricata.DefaultConfigWith and applied again here so it beats the settings file.
const (
	envStats             = "SURICATA_STATS"
	envMaxPendingPackets = "SURICATA_MAX_PENDING_PACKETS"
	envInternalIPs       = "SURICATA_INTERNAL_IPS"
	envRules             = "SURICATA_RULES"
	envAlerts            = "SURICATA_ALERTS"
	envConfigDir         = "SURICATA_CONFIG_DIR"
	envMaterializeTo     = "SURICATA_MATERIALIZE_TO"
)

// ErrEmptyInternalIPs is returned when an explicit internal IP list holds no ranges.
var ErrEmptyInternalIPs = errors.New("internal ips must contain at least one range")

// fileConfig is the settings file structure shared by YAML and TOML.
// Pointer fields distinguish "absent" from the zero value.
type fileConfig struct {
	EnableStats         *bool    `yaml:"enable_stats" toml:"enable_stats"`
	MaterializeConfigTo string   `yaml:"materialize_config_to" toml:"materialize_config_to"`
	ExePath             string   `yaml:"exe_path" toml:"exe_path"`
	AlertPath           string   `yaml:"alert_path" toml:"alert_path"`
	RulePath            string   `yaml:"rule_path" toml:"rule_path"`
	SuricataConfigPath  string   `yaml:"suricata_config_path" toml:"suricata_config_path"`
	InternalIPs         []string `yaml:"internal_ips" toml:"internal_ips"`
	MaxPendingPackets   *uint16  `yaml:"max_pending_packets" toml:"max_pending_packets"`
}

// CLIOverrides holds command-line flag overrides. Nil fields are not applied.
type CLIOverrides struct {
	ConfigFile        string
	EnvFile           string
	MaterializeTo     *string
	ExePath           *string
	AlertPath         *string
	RulePath          *string
	ConfigDir         *string
	InternalIPsStr    *string
	EnableStats       *bool
	MaxPendingPackets *string
}

// Load resolves a suricata.Config with precedence:
// CLI flags > Environment variables > Settings file > Defaults
func Load(overrides *CLIOverrides) (suricata.Config, error) {
	return LoadWith(overrides, os.LookupEnv)
}

// LoadWith is Load with environment lookups served by lookup. Values from the
// env file, when given, are consulted only for keys lookup does not know; the
// process environment is never modified.
func LoadWith(overrides *CLIOverrides, lookup func(string) (string, bool)) (suricata.Config, error) {
	if overrides != nil && overrides.EnvFile != "" {
		dotenv, err := godotenv.Read(overrides.EnvFile)
		if err != nil {
			return suricata.Config{}, fmt.Errorf("load env file: %w", err)
		}
		lookup = withFallback(lookup, dotenv)
	}

	cfg := suricata.DefaultConfigWith(lookup)

	if overrides != nil && overrides.ConfigFile != "" {
		fileCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return suricata.Config{}, fmt.Errorf("load settings file: %w", err)
		}
		if err := applyFileConfig(&cfg, fileCfg); err != nil {
			return suricata.Config{}, fmt.Errorf("apply settings file: %w", err)
		}
	}

	applyEnvConfig(&cfg, lookup)

	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return suricata.Config{}, err
		}
	}

	return cfg, nil
}

// withFallback serves keys missing from lookup out of values.
func withFallback(lookup func(string) (string, bool), values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if lookup != nil {
			if v, ok := lookup(key); ok {
				return v, true
			}
		}
		v, ok := values[key]
		return v, ok
	}
}

// loadFromFile decodes a YAML or TOML settings file, chosen by extension.
func loadFromFile(path string) (*fileConfig, error) {
	var fileCfg fileConfig

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &fileCfg); err != nil {
			return nil, fmt.Errorf("parse TOML: %w", err)
		}
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	}

	return &fileCfg, nil
}

func applyFileConfig(cfg *suricata.Config, fileCfg *fileConfig) error {
	if fileCfg.EnableStats != nil {
		cfg.EnableStats = *fileCfg.EnableStats
	}
	if fileCfg.MaterializeConfigTo != "" {
		cfg.MaterializeConfigTo = fileCfg.MaterializeConfigTo
	}
	if fileCfg.ExePath != "" {
		cfg.ExePath = fileCfg.ExePath
	}
	if fileCfg.AlertPath != "" {
		cfg.AlertPath = fileCfg.AlertPath
	}
	if fileCfg.RulePath != "" {
		cfg.RulePath = fileCfg.RulePath
	}
	if fileCfg.SuricataConfigPath != "" {
		cfg.SuricataConfigPath = fileCfg.SuricataConfigPath
	}
	if fileCfg.InternalIPs != nil {
		if len(fileCfg.InternalIPs) == 0 {
			return ErrEmptyInternalIPs
		}
		cfg.InternalIPs = suricata.NewInternalIPs(fileCfg.InternalIPs)
	}
	if fileCfg.MaxPendingPackets != nil {
		cfg.MaxPendingPackets = *fileCfg.MaxPendingPackets
	}
	return nil
}

// applyEnvConfig applies environment variables. Malformed values are ignored.
func applyEnvConfig(cfg *suricata.Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	if v := get(envStats); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.EnableStats = enabled
		}
	}
	if v := get(envMaxPendingPackets); v != "" {
		if n, err := parseMaxPendingPackets(v); err == nil {
			cfg.MaxPendingPackets = n
		}
	}
	if v := get(envInternalIPs); v != "" {
		if ips, err := parseInternalIPs(v); err == nil {
			cfg.InternalIPs = ips
		}
	}
	if v := get(suricata.ExeEnvVar); v != "" {
		cfg.ExePath = v
	}
	if v := get(envRules); v != "" {
		cfg.RulePath = v
	}
	if v := get(envAlerts); v != "" {
		cfg.AlertPath = v
	}
	if v := get(envConfigDir); v != "" {
		cfg.SuricataConfigPath = v
	}
	if v := get(envMaterializeTo); v != "" {
		cfg.MaterializeConfigTo = v
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *suricata.Config, overrides *CLIOverrides) error {
	if overrides.MaterializeTo != nil && *overrides.MaterializeTo != "" {
		cfg.MaterializeConfigTo = *overrides.MaterializeTo
	}
	if overrides.ExePath != nil && *overrides.ExePath != "" {
		cfg.ExePath = *overrides.ExePath
	}
	if overrides.AlertPath != nil && *overrides.AlertPath != "" {
		cfg.AlertPath = *overrides.AlertPath
	}
	if overrides.RulePath != nil && *overrides.RulePath != "" {
		cfg.RulePath = *overrides.RulePath
	}
	if overrides.ConfigDir != nil && *overrides.ConfigDir != "" {
		cfg.SuricataConfigPath = *overrides.ConfigDir
	}
	if overrides.EnableStats != nil {
		cfg.EnableStats = *overrides.EnableStats
	}

	if overrides.InternalIPsStr != nil && *overrides.InternalIPsStr != "" {
		ips, err := parseInternalIPs(*overrides.InternalIPsStr)
		if err != nil {
			return fmt.Errorf("parse internal ips: %w", err)
		}
		cfg.InternalIPs = ips
	}

	if overrides.MaxPendingPackets != nil && *overrides.MaxPendingPackets != "" {
		n, err := parseMaxPendingPackets(*overrides.MaxPendingPackets)
		if err != nil {
			return fmt.Errorf("parse max pending packets: %w", err)
		}
		cfg.MaxPendingPackets = n
	}

	return nil
}

// parseInternalIPs splits a comma-separated list of ranges, keeping order.
// Ranges are not validated.
func parseInternalIPs(raw string) (suricata.InternalIPs, error) {
	parts := strings.Split(raw, ",")
	ips := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ips = append(ips, part)
	}
	if len(ips) == 0 {
		return nil, ErrEmptyInternalIPs
	}
	return suricata.InternalIPs(ips), nil
}

func parseMaxPendingPackets(raw string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: must be an integer between 0 and 65535", raw)
	}
	return uint16(n), nil
}
