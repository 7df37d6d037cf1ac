// Package health provides system health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the system.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report contains the full system health report.
type Report struct {
	Status           SystemStatus `json:"status"`
	PendingRetries   int          `json:"pending_retries"`
	AwaitingApproval int          `json:"awaiting_approval"`
	Exhausted        int          `json:"exhausted"`
	OpenDisputes     int          `json:"open_disputes"`
	StorageOK        bool         `json:"storage_ok"`
}
