// Package status locates a logical deployment and its generated child
// resources across the naming conventions in the wild, and condenses them
// into one health view per namespace match.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/utils/ptr"

	"github.com/kscale-dev/kscale/internal/deploy"
	"github.com/kscale-dev/kscale/internal/kubectl"
	"github.com/kscale-dev/kscale/internal/logging"
	"github.com/kscale-dev/kscale/internal/manifest"
	"github.com/kscale-dev/kscale/internal/models"
	"github.com/kscale-dev/kscale/internal/utils"
)

// maxEvents caps the recent-events list per deployment.
const maxEvents = 5

type Aggregator struct {
	conn *kubectl.Connection
	log  *zap.Logger
}

func NewAggregator(conn *kubectl.Connection) *Aggregator {
	return &Aggregator{conn: conn, log: logging.NewLogger("status")}
}

// Status resolves an identifier (deployment name or generated deployment id)
// to zero or more deployments and reports each one. Zero matches is a soft
// not-found result, not an error.
func (a *Aggregator) Status(ctx context.Context, identifier, namespace string) *models.StatusReport {
	matches := a.resolve(ctx, identifier, namespace)
	a.log.Debug("resolved deployments",
		zap.String("identifier", identifier),
		zap.String("namespace", namespace),
		zap.Int("matches", len(matches)))

	if len(matches) == 0 {
		scope := "any namespace"
		if namespace != "" {
			scope = fmt.Sprintf("namespace %q", namespace)
		}
		return &models.StatusReport{
			Success: false,
			Message: fmt.Sprintf("deployment %q not found in %s", identifier, scope),
		}
	}

	report := &models.StatusReport{
		Success: true,
		Message: fmt.Sprintf("found %d deployment(s) matching %q", len(matches), identifier),
	}
	for i := range matches {
		report.Deployments = append(report.Deployments, a.buildStatus(ctx, &matches[i]))
	}
	return report
}

// List returns the deployments this tool manages, i.e. those carrying a
// deployment-id label.
func (a *Aggregator) List(ctx context.Context, namespace string) ([]models.DeploymentSummary, error) {
	args := []string{"get", "deployments", "-l", manifest.LabelDeploymentID, "-o", "json"}
	if namespace == "" {
		args = append(args, "--all-namespaces")
	}
	res, err := a.conn.Run(ctx, namespace, args...)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("listing deployments: %s", kubectl.FailureText(res))
	}

	var list appsv1.DeploymentList
	if err := json.Unmarshal([]byte(res.Stdout), &list); err != nil {
		return nil, fmt.Errorf("parsing deployments: %w", err)
	}

	summaries := make([]models.DeploymentSummary, 0, len(list.Items))
	for i := range list.Items {
		dep := &list.Items[i]
		desired := int32(1)
		if dep.Spec.Replicas != nil {
			desired = *dep.Spec.Replicas
		}
		summaries = append(summaries, models.DeploymentSummary{
			Name:         dep.Name,
			Namespace:    dep.Namespace,
			DeploymentID: dep.Labels[manifest.LabelDeploymentID],
			Ready:        dep.Status.ReadyReplicas,
			Desired:      desired,
			Condition:    Classify(dep),
		})
	}
	return summaries, nil
}

// resolve finds matching deployments. With a namespace: exact name first,
// then the id-label selector. Without: one all-namespaces listing filtered by
// name or label.
func (a *Aggregator) resolve(ctx context.Context, identifier, namespace string) []appsv1.Deployment {
	if namespace != "" {
		res, err := a.conn.Run(ctx, namespace, "get", "deployment", identifier, "-o", "json")
		if err == nil && res.Success {
			var dep appsv1.Deployment
			if json.Unmarshal([]byte(res.Stdout), &dep) == nil {
				return []appsv1.Deployment{dep}
			}
		}

		res, err = a.conn.Run(ctx, namespace, "get", "deployments", "-l", manifest.LabelDeploymentID+"="+identifier, "-o", "json")
		if err != nil || !res.Success {
			return nil
		}
		var list appsv1.DeploymentList
		if json.Unmarshal([]byte(res.Stdout), &list) != nil {
			return nil
		}
		return list.Items
	}

	res, err := a.conn.Run(ctx, "", "get", "deployments", "--all-namespaces", "-o", "json")
	if err != nil || !res.Success {
		return nil
	}
	var list appsv1.DeploymentList
	if json.Unmarshal([]byte(res.Stdout), &list) != nil {
		return nil
	}

	var matches []appsv1.Deployment
	for _, dep := range list.Items {
		if dep.Name == identifier || dep.Labels[manifest.LabelDeploymentID] == identifier {
			matches = append(matches, dep)
		}
	}
	return matches
}

func (a *Aggregator) buildStatus(ctx context.Context, dep *appsv1.Deployment) models.DeploymentStatus {
	name, namespace := dep.Name, dep.Namespace
	condition := Classify(dep)

	entry := models.DeploymentStatus{
		Success:      true,
		Message:      fmt.Sprintf("deployment %s/%s is %s", namespace, name, condition),
		DeploymentID: namespace + "/" + name,
		Condition:    condition,
		Resources: []models.StatusResource{{
			Kind:            "Deployment",
			Name:            name,
			Namespace:       namespace,
			CurrentReplicas: ptr.To(dep.Status.Replicas),
		}},
	}

	if svc := a.findService(ctx, namespace, name, dep.Labels[manifest.LabelDeploymentID]); svc != nil {
		entry.Resources = append(entry.Resources, models.StatusResource{
			Kind:        "Service",
			Name:        svc.Name,
			Namespace:   namespace,
			ServiceType: string(svc.Spec.Type),
		})
		entry.ServiceEndpoints = a.endpointStrings(ctx, svc)
	}
	if hpa := a.findHPA(ctx, namespace, name); hpa != nil {
		entry.Resources = append(entry.Resources, hpaResource(hpa))
	}
	if scaled := a.findScaledObject(ctx, namespace, name); scaled != nil {
		entry.Resources = append(entry.Resources, scaledResource(scaled))
	}

	pods := a.pods(ctx, namespace, name)
	entry.PodStatus = models.PodStatus{Breakdown: map[string]int{}}
	for i := range pods {
		pod := &pods[i]
		entry.PodStatus.Total++
		entry.PodStatus.Breakdown[string(pod.Status.Phase)]++
		if utils.PodReady(pod) {
			entry.PodStatus.Ready++
		}
	}
	entry.Metrics = a.podMetrics(ctx, namespace, pods)
	entry.Events = RecentPodEvents(ctx, a.conn, namespace, pods)
	return entry
}

func (a *Aggregator) findService(ctx context.Context, namespace, name, id string) *corev1.Service {
	return FindService(ctx, a.conn, namespace, name, id)
}

// FindService correlates a deployment's service: the stored id label first,
// then conventional names, accepted on exact match only. Never falls back to
// an unrelated resource.
func FindService(ctx context.Context, conn *kubectl.Connection, namespace, name, id string) *corev1.Service {
	if id != "" {
		res, err := conn.Run(ctx, namespace, "get", "services", "-l", manifest.LabelDeploymentID+"="+id, "-o", "json")
		if err == nil && res.Success {
			var list corev1.ServiceList
			if json.Unmarshal([]byte(res.Stdout), &list) == nil && len(list.Items) > 0 {
				return &list.Items[0]
			}
		}
	}

	for _, candidate := range []string{manifest.ServiceName(name), name, name + "-svc"} {
		res, err := conn.Run(ctx, namespace, "get", "service", candidate, "-o", "json")
		if err != nil || !res.Success {
			continue
		}
		var svc corev1.Service
		if json.Unmarshal([]byte(res.Stdout), &svc) != nil {
			continue
		}
		if svc.Name == candidate {
			return &svc
		}
	}
	return nil
}

// findHPA tries the KEDA-managed name, this tool's own suffix, then the bare
// deployment name.
func (a *Aggregator) findHPA(ctx context.Context, namespace, name string) *autoscalingv2.HorizontalPodAutoscaler {
	for _, candidate := range []string{"keda-hpa-" + name, manifest.HPAName(name), name} {
		res, err := a.conn.Run(ctx, namespace, "get", "hpa", candidate, "-o", "json")
		if err != nil || !res.Success {
			continue
		}
		var hpa autoscalingv2.HorizontalPodAutoscaler
		if json.Unmarshal([]byte(res.Stdout), &hpa) != nil {
			continue
		}
		if hpa.Name == candidate {
			return &hpa
		}
	}
	return nil
}

func (a *Aggregator) findScaledObject(ctx context.Context, namespace, name string) *manifest.ScaledObject {
	res, err := a.conn.Run(ctx, namespace, "get", "scaledobject", name, "-o", "json")
	if err != nil || !res.Success {
		return nil
	}
	var scaled manifest.ScaledObject
	if json.Unmarshal([]byte(res.Stdout), &scaled) != nil {
		return nil
	}
	return &scaled
}

func (a *Aggregator) pods(ctx context.Context, namespace, appName string) []corev1.Pod {
	return PodsByLabel(ctx, a.conn, namespace, manifest.LabelApp+"="+appName)
}

// PodsByLabel lists the pods matching a label selector. Lookup failures
// yield an empty set.
func PodsByLabel(ctx context.Context, conn *kubectl.Connection, namespace, selector string) []corev1.Pod {
	res, err := conn.Run(ctx, namespace, "get", "pods", "-l", selector, "-o", "json")
	if err != nil || !res.Success {
		return nil
	}
	var list corev1.PodList
	if json.Unmarshal([]byte(res.Stdout), &list) != nil {
		return nil
	}
	return list.Items
}

// podMetrics samples per-pod usage. A missing metrics pipeline yields no
// metrics, not an error.
func (a *Aggregator) podMetrics(ctx context.Context, namespace string, pods []corev1.Pod) map[string]models.PodUsage {
	metrics := map[string]models.PodUsage{}
	for i := range pods {
		name := pods[i].Name
		res, err := a.conn.Run(ctx, namespace, "top", "pod", name, "--no-headers")
		if err != nil || !res.Success {
			continue
		}
		if _, cpu, memory, ok := utils.ParseTopLine(strings.TrimSpace(res.Stdout)); ok {
			metrics[name] = models.PodUsage{CPU: cpu, Memory: memory}
		}
	}
	if len(metrics) == 0 {
		return nil
	}
	return metrics
}

// RecentPodEvents collects events for pods that are neither running nor
// completed, newest first, capped at maxEvents. The sort is stable so ties
// keep enumeration order.
func RecentPodEvents(ctx context.Context, conn *kubectl.Connection, namespace string, pods []corev1.Pod) []models.EventSummary {
	var events []models.EventSummary
	for i := range pods {
		pod := &pods[i]
		if pod.Status.Phase == corev1.PodRunning || pod.Status.Phase == corev1.PodSucceeded {
			continue
		}
		res, err := conn.Run(ctx, namespace, "get", "events", "--field-selector", "involvedObject.name="+pod.Name, "-o", "json")
		if err != nil || !res.Success {
			continue
		}
		var list corev1.EventList
		if json.Unmarshal([]byte(res.Stdout), &list) != nil {
			continue
		}
		for _, ev := range list.Items {
			lastSeen := ""
			if !ev.LastTimestamp.IsZero() {
				lastSeen = ev.LastTimestamp.UTC().Format(time.RFC3339)
			}
			events = append(events, models.EventSummary{
				Type:     ev.Type,
				Reason:   ev.Reason,
				Message:  ev.Message,
				Count:    ev.Count,
				LastSeen: lastSeen,
				Object:   ev.InvolvedObject.Kind + "/" + ev.InvolvedObject.Name,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].LastSeen > events[j].LastSeen })
	if len(events) > maxEvents {
		events = events[:maxEvents]
	}
	return events
}

func hpaResource(hpa *autoscalingv2.HorizontalPodAutoscaler) models.StatusResource {
	resource := models.StatusResource{
		Kind:            "HorizontalPodAutoscaler",
		Name:            hpa.Name,
		Namespace:       hpa.Namespace,
		MinReplicas:     hpa.Spec.MinReplicas,
		MaxReplicas:     ptr.To(hpa.Spec.MaxReplicas),
		CurrentReplicas: ptr.To(hpa.Status.CurrentReplicas),
	}
	for _, metric := range hpa.Spec.Metrics {
		if metric.Type != autoscalingv2.ResourceMetricSourceType || metric.Resource == nil {
			continue
		}
		resource.TargetMetrics = append(resource.TargetMetrics, models.MetricTarget{
			Type:     string(metric.Type),
			Resource: string(metric.Resource.Name),
			Target:   metric.Resource.Target.AverageUtilization,
		})
	}
	return resource
}

func scaledResource(scaled *manifest.ScaledObject) models.StatusResource {
	return models.StatusResource{
		Kind:        "ScaledObject",
		Name:        scaled.Name,
		Namespace:   scaled.Namespace,
		MinReplicas: scaled.Spec.MinReplicaCount,
		MaxReplicas: scaled.Spec.MaxReplicaCount,
		Triggers:    scaled.Spec.Triggers,
	}
}

// endpointStrings renders the service's resolved endpoint for the condensed
// view. Unresolved endpoints keep their state visible, e.g.
// "pending (LoadBalancer)".
func (a *Aggregator) endpointStrings(ctx context.Context, svc *corev1.Service) []string {
	nodeAddr := ""
	if svc.Spec.Type == corev1.ServiceTypeNodePort {
		if nodes, err := a.conn.Nodes(ctx); err == nil {
			nodeAddr = utils.FirstNodeAddress(nodes)
		}
	}
	ep := deploy.ResolveEndpoint(svc, nodeAddr)
	if ep.URL != nil {
		return []string{*ep.URL}
	}
	return []string{fmt.Sprintf("%s (%s)", ep.State, ep.Type)}
}
