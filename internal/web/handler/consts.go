// Package handler holds the routes shared by the gateway handlers.
package handler

const (
	// CommandPath receives chat commands.
	CommandPath = "/api/v1/command"

	// CheckAlivePath is polled by load balancers.
	CheckAlivePath = "/checkalive"

	// MetricsPath exposes prometheus metrics.
	MetricsPath = "/metrics"
)
