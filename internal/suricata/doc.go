// Package suricata models the settings of a Suricata instance and renders
// them into the suricata.yaml file Suricata reads at startup.
package suricata
