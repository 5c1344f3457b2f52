// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// The package supports multiple GTFS-RT feeds identified by a feed ID, plus
// engine scheduling policy (tick interval, fetch/webhook timeouts, delivery
// retry budget).
package config
