// Package config resolves the Suricata settings used by suricata-config from
// multiple sources (YAML or TOML settings files, an optional dotenv file,
// environment variables, CLI flags) with precedence: CLI flags > Environment
// variables > Settings file > Defaults.
package config
