// Package manifest builds the typed Kubernetes objects the orchestrator
// applies. Pure construction, no cluster I/O.
package manifest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"

	"github.com/kscale-dev/kscale/internal/models"
)

// Label keys attached to every resource belonging to one logical deployment.
// The pair is what lets status lookups recover resources by either name or
// stored ID.
const (
	LabelDeploymentID = "deployment-id"
	LabelApp          = "app"
)

// Labels merges the identifying labels over the user-supplied ones. The
// request's map is not mutated.
func Labels(req *models.DeploymentRequest, id string) map[string]string {
	labels := make(map[string]string, len(req.Labels)+2)
	for k, v := range req.Labels {
		labels[k] = v
	}
	labels[LabelDeploymentID] = id
	labels[LabelApp] = req.Name
	return labels
}

// Deployment builds the workload manifest. Malformed probe JSON is dropped
// and reported as a problem; the deployment is still built without it.
func Deployment(req *models.DeploymentRequest, id string) (*appsv1.Deployment, []models.Problem, error) {
	resources, err := resourceRequirements(req.Resources)
	if err != nil {
		return nil, nil, err
	}

	labels := Labels(req, id)
	container := corev1.Container{
		Name:            req.Name,
		Image:           req.Image,
		ImagePullPolicy: pullPolicy(req.Image),
		Ports:           containerPorts(req.Ports),
		Resources:       resources,
		Env:             envVars(req.Env),
	}

	var problems []models.Problem
	container.LivenessProbe, problems = decodeProbe(req.LivenessProbe, "liveness probe", problems)
	container.ReadinessProbe, problems = decodeProbe(req.ReadinessProbe, "readiness probe", problems)
	container.StartupProbe, problems = decodeProbe(req.StartupProbe, "startup probe", problems)

	deployment := &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "apps/v1",
			Kind:       "Deployment",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      req.Name,
			Namespace: req.Namespace,
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(req.Replicas),
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{container},
				},
			},
		},
	}
	return deployment, problems, nil
}

// ServiceName is the canonical name of the service exposing a deployment.
func ServiceName(deploymentName string) string {
	return deploymentName + "-service"
}

// Service builds the exposure manifest, one named port entry per requested
// port. Returns nil when the request carries no ports: no exposure wanted.
func Service(req *models.DeploymentRequest, id string) *corev1.Service {
	if len(req.Ports) == 0 {
		return nil
	}

	labels := Labels(req, id)
	ports := make([]corev1.ServicePort, 0, len(req.Ports))
	for _, p := range req.Ports {
		ports = append(ports, corev1.ServicePort{
			Name:       fmt.Sprintf("port-%d", p),
			Port:       p,
			TargetPort: intstr.FromInt32(p),
			Protocol:   corev1.ProtocolTCP,
		})
	}

	serviceType := corev1.ServiceType(req.ServiceType)
	if serviceType == "" {
		serviceType = corev1.ServiceTypeClusterIP
	}

	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Service",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      ServiceName(req.Name),
			Namespace: req.Namespace,
			Labels:    labels,
		},
		Spec: corev1.ServiceSpec{
			Selector: labels,
			Ports:    ports,
			Type:     serviceType,
		},
	}
}

// HPAName is the canonical name of the threshold autoscaler for a deployment.
func HPAName(deploymentName string) string {
	return deploymentName + "-hpa"
}

// HPA builds the threshold autoscaler. Only metrics with a nonzero target are
// emitted.
func HPA(req *models.DeploymentRequest, id string) *autoscalingv2.HorizontalPodAutoscaler {
	cfg := req.Threshold

	var metrics []autoscalingv2.MetricSpec
	if cfg.CPUPercent > 0 {
		metrics = append(metrics, utilizationMetric(corev1.ResourceCPU, cfg.CPUPercent))
	}
	if cfg.MemoryPercent > 0 {
		metrics = append(metrics, utilizationMetric(corev1.ResourceMemory, cfg.MemoryPercent))
	}

	return &autoscalingv2.HorizontalPodAutoscaler{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "autoscaling/v2",
			Kind:       "HorizontalPodAutoscaler",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      HPAName(req.Name),
			Namespace: req.Namespace,
			Labels:    Labels(req, id),
		},
		Spec: autoscalingv2.HorizontalPodAutoscalerSpec{
			ScaleTargetRef: autoscalingv2.CrossVersionObjectReference{
				APIVersion: "apps/v1",
				Kind:       "Deployment",
				Name:       req.Name,
			},
			MinReplicas: ptr.To(cfg.MinReplicas),
			MaxReplicas: cfg.MaxReplicas,
			Metrics:     metrics,
		},
	}
}

func utilizationMetric(name corev1.ResourceName, percent int32) autoscalingv2.MetricSpec {
	return autoscalingv2.MetricSpec{
		Type: autoscalingv2.ResourceMetricSourceType,
		Resource: &autoscalingv2.ResourceMetricSource{
			Name: name,
			Target: autoscalingv2.MetricTarget{
				Type:               autoscalingv2.UtilizationMetricType,
				AverageUtilization: ptr.To(percent),
			},
		},
	}
}

// pullPolicy returns Always only when the image tag is exactly "latest",
// explicitly or implied by a tagless reference.
func pullPolicy(image string) corev1.PullPolicy {
	if imageTag(image) == "latest" {
		return corev1.PullAlways
	}
	return corev1.PullIfNotPresent
}

// imageTag extracts the tag of an image reference. A digest reference pins
// content, so it never reads as "latest"; a reference with no tag and no
// digest defaults to it.
func imageTag(image string) string {
	if strings.Contains(image, "@") {
		return ""
	}
	// A colon after the last slash separates the tag; earlier colons belong
	// to a registry host:port.
	slash := strings.LastIndex(image, "/")
	colon := strings.LastIndex(image, ":")
	if colon > slash {
		return image[colon+1:]
	}
	return "latest"
}

func containerPorts(ports []int32) []corev1.ContainerPort {
	out := make([]corev1.ContainerPort, 0, len(ports))
	for _, p := range ports {
		out = append(out, corev1.ContainerPort{ContainerPort: p})
	}
	return out
}

// envVars renders the env map in sorted key order so manifests are stable
// across runs.
func envVars(env map[string]string) []corev1.EnvVar {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]corev1.EnvVar, 0, len(keys))
	for _, k := range keys {
		out = append(out, corev1.EnvVar{Name: k, Value: env[k]})
	}
	return out
}

func resourceRequirements(spec models.ResourceSpec) (corev1.ResourceRequirements, error) {
	requests, err := resourceList(map[corev1.ResourceName]string{
		corev1.ResourceCPU:    orDefault(spec.CPURequest, models.DefaultCPURequest),
		corev1.ResourceMemory: orDefault(spec.MemoryRequest, models.DefaultMemoryRequest),
	})
	if err != nil {
		return corev1.ResourceRequirements{}, err
	}
	limits, err := resourceList(map[corev1.ResourceName]string{
		corev1.ResourceCPU:    orDefault(spec.CPULimit, models.DefaultCPULimit),
		corev1.ResourceMemory: orDefault(spec.MemoryLimit, models.DefaultMemoryLimit),
	})
	if err != nil {
		return corev1.ResourceRequirements{}, err
	}
	return corev1.ResourceRequirements{Requests: requests, Limits: limits}, nil
}

func resourceList(quantities map[corev1.ResourceName]string) (corev1.ResourceList, error) {
	list := make(corev1.ResourceList, len(quantities))
	for name, value := range quantities {
		qty, err := resource.ParseQuantity(value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s quantity %q: %w", name, value, err)
		}
		list[name] = qty
	}
	return list, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func decodeProbe(raw json.RawMessage, source string, problems []models.Problem) (*corev1.Probe, []models.Problem) {
	if len(raw) == 0 {
		return nil, problems
	}
	var probe corev1.Probe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, append(problems, models.Problem{
			Source: source,
			Reason: fmt.Sprintf("invalid JSON, dropped: %v", err),
		})
	}
	return &probe, problems
}
