// Package metrics defines the observability hooks for the touch ledger and
// provides a Prometheus-backed implementation.
package metrics
