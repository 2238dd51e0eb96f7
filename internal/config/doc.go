// Package config provides configuration structures and utilities for pathfinder.
// It defines the scan options (origin, index space, concurrency, retry and
// backoff policy, classification strategy), the optional YAML file with
// per-origin target profiles, and the XDG locations used for persisted state.
package config
