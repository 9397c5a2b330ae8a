// Package app wires the E2EE subsystem together: configuration, the
// secure store, the directory client, the bundle cache, and the
// services the CLI drives. The cache and store have injected lifetimes;
// nothing here is a package-level singleton.
package app
