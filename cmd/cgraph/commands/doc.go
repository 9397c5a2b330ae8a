// Package commands implements the cgraph CLI. Each subcommand drives
// one operation of the E2EE subsystem: setup, bundle registration,
// sending and receiving encrypted messages, safety-number verification,
// device listing and revocation, and prekey replenishment.
package commands
