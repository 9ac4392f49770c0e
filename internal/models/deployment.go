package models

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/api/resource"
)

// ScalingMode selects which autoscaler, if any, is attached to a deployment.
type ScalingMode string

const (
	ScalingNone      ScalingMode = "none"
	ScalingThreshold ScalingMode = "threshold"
	ScalingEvent     ScalingMode = "event"
)

// Resource request/limit defaults applied when the caller leaves them empty.
const (
	DefaultCPURequest    = "100m"
	DefaultCPULimit      = "500m"
	DefaultMemoryRequest = "128Mi"
	DefaultMemoryLimit   = "512Mi"
)

// ResourceSpec holds container resource requests and limits as Kubernetes
// quantity strings.
type ResourceSpec struct {
	CPURequest    string `json:"cpuRequest,omitempty"`
	CPULimit      string `json:"cpuLimit,omitempty"`
	MemoryRequest string `json:"memoryRequest,omitempty"`
	MemoryLimit   string `json:"memoryLimit,omitempty"`
}

// ThresholdConfig configures utilization-based autoscaling. A zero percent
// target means that metric is not emitted.
type ThresholdConfig struct {
	MinReplicas   int32 `json:"minReplicas"`
	MaxReplicas   int32 `json:"maxReplicas"`
	CPUPercent    int32 `json:"cpuPercent,omitempty"`
	MemoryPercent int32 `json:"memoryPercent,omitempty"`
}

// EventConfig configures event-driven autoscaling.
type EventConfig struct {
	MinReplicas int32         `json:"minReplicas"`
	MaxReplicas int32         `json:"maxReplicas"`
	Triggers    []TriggerSpec `json:"triggers"`
}

// Trigger kinds accepted by the trigger compiler.
const (
	TriggerCPU         = "cpu"
	TriggerMemory      = "memory"
	TriggerCustomQuery = "custom-query"
	TriggerQueueLag    = "queue-lag"
	TriggerStream      = "stream-backlog"
	TriggerBrokerQueue = "message-broker-queue"
)

// TriggerSpec describes one scaling signal source. Raw carries a generic
// trigger description verbatim for kinds not otherwise modeled.
type TriggerSpec struct {
	Kind   string            `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
	Raw    json.RawMessage   `json:"raw,omitempty"`
}

// DeploymentRequest describes one workload to provision. Constructed by the
// caller and consumed once.
type DeploymentRequest struct {
	Name      string            `json:"name"`
	Image     string            `json:"image"`
	Namespace string            `json:"namespace,omitempty"`
	Replicas  int32             `json:"replicas"`
	Ports     []int32           `json:"ports"`
	Env       map[string]string `json:"env,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	Resources ResourceSpec      `json:"resources"`

	ServiceType string `json:"serviceType,omitempty"`

	Mode      ScalingMode      `json:"mode"`
	Threshold *ThresholdConfig `json:"threshold,omitempty"`
	Event     *EventConfig     `json:"event,omitempty"`

	LivenessProbe  json.RawMessage `json:"livenessProbe,omitempty"`
	ReadinessProbe json.RawMessage `json:"readinessProbe,omitempty"`
	StartupProbe   json.RawMessage `json:"startupProbe,omitempty"`
}

// workloadNameRegex matches DNS-1123 labels, the constraint Kubernetes
// enforces on resource names used in label values.
var workloadNameRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// Validate checks the request before any cluster interaction.
func (r *DeploymentRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("deployment name must not be empty")
	}
	if !workloadNameRegex.MatchString(r.Name) {
		return fmt.Errorf("invalid deployment name %q: must consist of lowercase alphanumerics and hyphens and start and end with an alphanumeric", r.Name)
	}
	if r.Image == "" {
		return fmt.Errorf("container image must not be empty")
	}
	if r.Replicas < 0 {
		return fmt.Errorf("replicas must not be negative (got %d)", r.Replicas)
	}
	for _, port := range r.Ports {
		if port < 1 || port > 65535 {
			return fmt.Errorf("port %d out of range", port)
		}
	}
	if err := r.Resources.validate(); err != nil {
		return err
	}
	switch r.Mode {
	case ScalingNone, "":
	case ScalingThreshold:
		if r.Threshold == nil {
			return fmt.Errorf("threshold scaling requested without a threshold config")
		}
		if r.Threshold.CPUPercent == 0 && r.Threshold.MemoryPercent == 0 {
			return fmt.Errorf("threshold scaling requires a cpu or memory target")
		}
		if r.Threshold.MaxReplicas < r.Threshold.MinReplicas {
			return fmt.Errorf("threshold max replicas %d below min replicas %d", r.Threshold.MaxReplicas, r.Threshold.MinReplicas)
		}
	case ScalingEvent:
		if r.Event == nil {
			return fmt.Errorf("event-driven scaling requested without an event config")
		}
		if r.Event.MaxReplicas < r.Event.MinReplicas {
			return fmt.Errorf("event max replicas %d below min replicas %d", r.Event.MaxReplicas, r.Event.MinReplicas)
		}
	default:
		return fmt.Errorf("unknown scaling mode %q", r.Mode)
	}
	return nil
}

func (s ResourceSpec) validate() error {
	for field, value := range map[string]string{
		"cpu request":    s.CPURequest,
		"cpu limit":      s.CPULimit,
		"memory request": s.MemoryRequest,
		"memory limit":   s.MemoryLimit,
	} {
		if value == "" {
			continue
		}
		if _, err := resource.ParseQuantity(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", field, value, err)
		}
	}
	return nil
}

// NewDeploymentID generates the correlation ID stored as a label on every
// resource belonging to one logical deployment: "<name>-<8 hex chars>".
// Generated once per request, never regenerated.
func NewDeploymentID(name string) string {
	return fmt.Sprintf("%s-%s", name, uuid.NewString()[:8])
}

// ResourceRef is a lightweight identity for one created resource.
type ResourceRef struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

// Endpoint is the resolved external (or cluster-internal) address of a
// service. URL is nil while a LoadBalancer address is still pending.
type Endpoint struct {
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	URL   *string `json:"url"`
	State string  `json:"state,omitempty"`
}

// DeploymentResult is the outcome of one orchestration run.
type DeploymentResult struct {
	Success      bool          `json:"success"`
	Message      string        `json:"message"`
	DeploymentID string        `json:"deployment_id"`
	Namespace    string        `json:"namespace"`
	Resources    []ResourceRef `json:"resources"`
	Endpoints    []Endpoint    `json:"service_endpoints,omitempty"`
	Ready        bool          `json:"readiness_achieved"`
	PodStatus    *PodStatus    `json:"pod_status,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
	Problems     []Problem     `json:"problems,omitempty"`
	FailedStep   string        `json:"failed_step,omitempty"`
}

// DeleteResult reports a best-effort teardown of a deployment and its child
// resources. Problems carry per-resource failures; absent resources are not
// failures.
type DeleteResult struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	Deleted  []ResourceRef `json:"deleted_resources,omitempty"`
	Problems []Problem     `json:"problems,omitempty"`
}

// Problem records a malformed input element that was dropped rather than
// aborting the whole request.
type Problem struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.Source, p.Reason)
}
