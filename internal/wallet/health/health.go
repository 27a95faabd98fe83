// Package health provides service health and wallet introspection endpoints.
package health

import "github.com/vietddude/walletsync/internal/core/domain"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// NetworkHealth contains health data for one network.
type NetworkHealth struct {
	Network             domain.Network `json:"network"`
	Status              SystemStatus   `json:"status"`
	AccessNode          string         `json:"access_node"` // ok or the probe error
	PendingTransactions int            `json:"pending_transactions"`
}

// Report is the full health report.
type Report struct {
	SystemStatus SystemStatus                     `json:"system_status"`
	Session      string                           `json:"session"`
	Networks     map[domain.Network]NetworkHealth `json:"networks"`
	Stores       map[string]string                `json:"stores,omitempty"` // ok or the ping error
}

// worst returns the most severe status across networks.
func worst(networks map[domain.Network]NetworkHealth) SystemStatus {
	status := StatusHealthy
	for _, n := range networks {
		if n.Status == StatusCritical {
			return StatusCritical
		}
		if n.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}
