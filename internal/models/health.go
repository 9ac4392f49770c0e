package models

// HealthWarning flags one degraded aspect of a deployment: a failing
// deployment condition or a pod/container issue.
type HealthWarning struct {
	Type       string `json:"type"`
	Reason     string `json:"reason"`
	Message    string `json:"message"`
	Pod        string `json:"pod,omitempty"`
	Container  string `json:"container,omitempty"`
	ExitCode   int32  `json:"exit_code,omitempty"`
	LastUpdate string `json:"last_update,omitempty"`
}

// CPUUsage aggregates CPU consumption across a deployment's pods.
type CPUUsage struct {
	TotalMillicores   int64   `json:"total_millicores"`
	AverageMillicores float64 `json:"average_millicores"`
	TotalCores        float64 `json:"total_cores"`
	AverageCores      float64 `json:"average_cores"`
}

// MemoryUsage aggregates memory consumption across a deployment's pods.
type MemoryUsage struct {
	TotalBytes       int64   `json:"total_bytes"`
	AverageBytes     float64 `json:"average_bytes"`
	TotalFormatted   string  `json:"total_formatted"`
	AverageFormatted string  `json:"average_formatted"`
}

// ResourceUsage is the live resource consumption of a deployment. Empty when
// the metrics pipeline is unavailable.
type ResourceUsage struct {
	CPU    *CPUUsage    `json:"cpu,omitempty"`
	Memory *MemoryUsage `json:"memory,omitempty"`
}

// HealthSnapshot is a point-in-time health view of one deployment.
// Recomputed fresh on every query, never cached.
type HealthSnapshot struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	DeploymentID string          `json:"deployment_id"`
	Namespace    string          `json:"namespace,omitempty"`
	Status       Condition       `json:"status"`
	Ready        bool            `json:"ready"`
	PodsReady    int             `json:"pods_ready"`
	PodsTotal    int             `json:"pods_total"`
	Restarts     int32           `json:"restarts"`
	Warnings     []HealthWarning `json:"warnings,omitempty"`
	RecentEvents []EventSummary  `json:"recent_events,omitempty"`
	Usage        ResourceUsage   `json:"resource_usage"`
}
