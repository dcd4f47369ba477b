package suricata

import (
	"os"
	"strings"
)

// ExeEnvVar names the environment variable that overrides the default
// Suricata executable location.
const ExeEnvVar = "SURICATA_EXE"

const (
	defaultMaterializeTo     = "/etc/suricata/bellini.yaml"
	defaultExePath           = "/usr/local/bin/suricata"
	defaultAlertPath         = "/tmp/suricata.alerts"
	defaultRulePath          = "/etc/suricata/custom.rules"
	defaultSuricataConfigDir = "/etc/suricata"
	defaultMaxPendingPackets = 800
)

var defaultInternalIPs = []string{
	"10.0.0.0/8,172.16.0.0/12",
	"fe80:0:0:0:0:0:0:0/64",
	"127.0.0.1/32",
	"fc00:0:0:0:0:0:0:0/7",
	"192.168.0.0/16",
	"169.254.0.0/16",
}

// InternalIPs is the ordered list of ranges Suricata treats as HOME_NET.
// Entries are passed through verbatim; order is significant.
type InternalIPs []string

// NewInternalIPs copies ips so later changes to the caller's slice are not observed.
func NewInternalIPs(ips []string) InternalIPs {
	out := make(InternalIPs, len(ips))
	copy(out, ips)
	return out
}

// DefaultInternalIPs returns a copy of the default HOME_NET ranges.
func DefaultInternalIPs() InternalIPs {
	return NewInternalIPs(defaultInternalIPs)
}

// String joins the ranges with "," in insertion order.
func (ips InternalIPs) String() string {
	return strings.Join(ips, ",")
}

// Config describes one Suricata instance. Paths are opaque: nothing here
// checks that they exist or are accessible.
type Config struct {
	// EnableStats toggles Suricata's stats output.
	EnableStats bool
	// MaterializeConfigTo is where the rendered configuration is written.
	MaterializeConfigTo string
	// ExePath locates the Suricata binary.
	ExePath string
	// AlertPath is the unix socket Suricata writes eve alerts to.
	AlertPath string
	// RulePath is the rule file Suricata loads.
	RulePath string
	// SuricataConfigPath is the directory holding auxiliary files such as
	// threshold.config and classification.config.
	SuricataConfigPath string
	// InternalIPs populates HOME_NET.
	InternalIPs InternalIPs
	// MaxPendingPackets is how many packets Suricata queues before it
	// blocks on incoming packets.
	MaxPendingPackets uint16
}

// DefaultConfig returns the default configuration, reading SURICATA_EXE from
// the process environment once.
func DefaultConfig() Config {
	return DefaultConfigWith(os.LookupEnv)
}

// DefaultConfigWith returns the default configuration with environment
// lookups served by lookup. A nil lookup behaves like an empty environment.
func DefaultConfigWith(lookup func(key string) (string, bool)) Config {
	exe := defaultExePath
	if lookup != nil {
		if v, ok := lookup(ExeEnvVar); ok && v != "" {
			exe = v
		}
	}

	return Config{
		EnableStats:         false,
		MaterializeConfigTo: defaultMaterializeTo,
		ExePath:             exe,
		AlertPath:           defaultAlertPath,
		RulePath:            defaultRulePath,
		SuricataConfigPath:  defaultSuricataConfigDir,
		InternalIPs:         DefaultInternalIPs(),
		MaxPendingPackets:   defaultMaxPendingPackets,
	}
}
