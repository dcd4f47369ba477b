// Package application provides application initialization and dependency wiring.
// It ties configuration loading, the logger and the Suricata config
// materializer together, keeping the main package focused on CLI parsing
// and orchestration.
package application
