package models

// Condition is the classified state of one deployment, derived from replica
// counts and generation observations.
type Condition string

const (
	ConditionHealthy      Condition = "Healthy"
	ConditionDegraded     Condition = "Degraded"
	ConditionNotReady     Condition = "NotReady"
	ConditionUnavailable  Condition = "Unavailable"
	ConditionUpdating     Condition = "Updating"
	ConditionScaledToZero Condition = "ScaledToZero"
	ConditionUnknown      Condition = "Unknown"
)

// Trigger is one compiled scaling trigger in the vocabulary of the
// event-driven scaler API. All metadata values are strings.
type Trigger struct {
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata"`
}

// PodStatus condenses a deployment's pod set: ready/total counts plus a
// histogram keyed by pod phase.
type PodStatus struct {
	Total     int            `json:"total"`
	Ready     int            `json:"ready"`
	Breakdown map[string]int `json:"status_breakdown"`
}

// PodUsage is one pod's live resource consumption as reported by the
// cluster metrics pipeline.
type PodUsage struct {
	CPU    string `json:"cpu"`
	Memory string `json:"memory"`
}

// EventSummary condenses one cluster event.
type EventSummary struct {
	Type     string `json:"type"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
	Count    int32  `json:"count"`
	LastSeen string `json:"last_seen"`
	Object   string `json:"object"`
}

// MetricTarget summarizes one autoscaler metric target.
type MetricTarget struct {
	Type     string `json:"type"`
	Resource string `json:"resource,omitempty"`
	Target   *int32 `json:"target,omitempty"`
}

// StatusResource is one resolved resource in a status view. The optional
// fields are populated per kind: a service carries its type, autoscalers
// carry replica bounds and their metric or trigger configuration.
type StatusResource struct {
	Kind            string         `json:"kind"`
	Name            string         `json:"name"`
	Namespace       string         `json:"namespace"`
	ServiceType     string         `json:"type,omitempty"`
	MinReplicas     *int32         `json:"min_replicas,omitempty"`
	MaxReplicas     *int32         `json:"max_replicas,omitempty"`
	CurrentReplicas *int32         `json:"current_replicas,omitempty"`
	TargetMetrics   []MetricTarget `json:"target_metrics,omitempty"`
	Triggers        []Trigger      `json:"triggers,omitempty"`
}

// DeploymentStatus is the condensed status of one deployment in one
// namespace. Recomputed fresh on every query.
type DeploymentStatus struct {
	Success          bool                `json:"success"`
	Message          string              `json:"message"`
	DeploymentID     string              `json:"deployment_id"`
	Condition        Condition           `json:"condition"`
	Resources        []StatusResource    `json:"resources"`
	ServiceEndpoints []string            `json:"service_endpoints"`
	PodStatus        PodStatus           `json:"pod_status"`
	Metrics          map[string]PodUsage `json:"metrics,omitempty"`
	Events           []EventSummary      `json:"events,omitempty"`
}

// StatusReport is the outcome of one status query. A deployment name is not
// globally unique, so the report lists one entry per namespace match.
type StatusReport struct {
	Success     bool               `json:"success"`
	Message     string             `json:"message,omitempty"`
	Deployments []DeploymentStatus `json:"deployments,omitempty"`
}

// DeploymentSummary is one row of a deployment listing.
type DeploymentSummary struct {
	Name         string    `json:"name"`
	Namespace    string    `json:"namespace"`
	DeploymentID string    `json:"deployment_id"`
	Ready        int32     `json:"ready_replicas"`
	Desired      int32     `json:"desired_replicas"`
	Condition    Condition `json:"condition"`
}
