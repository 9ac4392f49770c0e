// Package health performs a deep inspection of one deployment: readiness,
// restart history, failing conditions, endpoint reachability and live
// resource consumption.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/kscale-dev/kscale/internal/deploy"
	"github.com/kscale-dev/kscale/internal/kubectl"
	"github.com/kscale-dev/kscale/internal/logging"
	"github.com/kscale-dev/kscale/internal/manifest"
	"github.com/kscale-dev/kscale/internal/models"
	"github.com/kscale-dev/kscale/internal/status"
	"github.com/kscale-dev/kscale/internal/utils"
)

// defaultRestartThreshold is the per-container restart count above which a
// RestartBurst warning is raised.
const defaultRestartThreshold = 5

// Warning types for problems found below the deployment conditions.
const (
	WarnPodIssue        = "PodIssue"
	WarnPodTerminated   = "PodTerminated"
	WarnRestartBurst    = "RestartBurst"
	WarnServiceEndpoint = "ServiceEndpoint"
)

type Monitor struct {
	conn *kubectl.Connection
	log  *zap.Logger

	// RestartThreshold is the restart count per container above which a
	// warning is raised.
	RestartThreshold int32
}

func NewMonitor(conn *kubectl.Connection) *Monitor {
	return &Monitor{
		conn:             conn,
		log:              logging.NewLogger("health"),
		RestartThreshold: defaultRestartThreshold,
	}
}

// Check resolves the identifier to a deployment and assembles its health
// snapshot. A missing deployment is a soft failure with status Unknown, not
// an error.
func (m *Monitor) Check(ctx context.Context, identifier, namespace string) *models.HealthSnapshot {
	snap := &models.HealthSnapshot{
		DeploymentID: identifier,
		Status:       models.ConditionUnknown,
	}
	if !m.conn.Connected() {
		snap.Message = kubectl.ErrNotConnected.Error()
		return snap
	}

	dep := m.find(ctx, identifier, namespace)
	if dep == nil {
		scope := "any namespace"
		if namespace != "" {
			scope = fmt.Sprintf("namespace %q", namespace)
		}
		snap.Message = fmt.Sprintf("no deployment matching %q in %s", identifier, scope)
		return snap
	}

	snap.Namespace = dep.Namespace
	snap.Status = status.Classify(dep)
	snap.Ready = snap.Status == models.ConditionHealthy || snap.Status == models.ConditionScaledToZero

	pods := status.PodsByLabel(ctx, m.conn, dep.Namespace, manifest.LabelApp+"="+dep.Name)
	snap.PodsTotal = len(pods)
	for i := range pods {
		if utils.PodReady(&pods[i]) {
			snap.PodsReady++
		}
		for _, cs := range pods[i].Status.ContainerStatuses {
			snap.Restarts += cs.RestartCount
		}
	}

	snap.Warnings = append(snap.Warnings, conditionWarnings(dep)...)
	snap.Warnings = append(snap.Warnings, m.podWarnings(pods)...)
	snap.Warnings = append(snap.Warnings, m.endpointWarnings(ctx, dep)...)
	snap.RecentEvents = status.RecentPodEvents(ctx, m.conn, dep.Namespace, pods)
	snap.Usage = m.sampleUsage(ctx, dep.Namespace, dep.Name)

	m.log.Debug("health check complete",
		zap.String("deployment", dep.Name),
		zap.String("namespace", dep.Namespace),
		zap.String("status", string(snap.Status)),
		zap.Int("warnings", len(snap.Warnings)))

	snap.Success = true
	snap.Message = fmt.Sprintf("deployment %q is %s", dep.Name, snap.Status)
	return snap
}

// find walks the candidate namespaces and returns the first deployment whose
// name or deployment-id label matches the identifier.
func (m *Monitor) find(ctx context.Context, identifier, namespace string) *appsv1.Deployment {
	namespaces := []string{namespace}
	if namespace == "" {
		all, err := m.conn.Namespaces(ctx)
		if err != nil {
			m.log.Warn("listing namespaces failed", zap.Error(err))
			return nil
		}
		namespaces = all
	}

	for _, ns := range namespaces {
		if res, err := m.conn.Run(ctx, ns, "get", "deployment", identifier, "-o", "json"); err == nil && res.Success {
			var dep appsv1.Deployment
			if json.Unmarshal([]byte(res.Stdout), &dep) == nil && dep.Name != "" {
				if dep.Namespace == "" {
					dep.Namespace = ns
				}
				return &dep
			}
		}

		res, err := m.conn.Run(ctx, ns, "get", "deployments", "-l", manifest.LabelDeploymentID+"="+identifier, "-o", "json")
		if err != nil || !res.Success {
			continue
		}
		var list appsv1.DeploymentList
		if json.Unmarshal([]byte(res.Stdout), &list) != nil || len(list.Items) == 0 {
			continue
		}
		dep := list.Items[0]
		if dep.Namespace == "" {
			dep.Namespace = ns
		}
		return &dep
	}
	return nil
}

// conditionWarnings surfaces failing deployment conditions: Progressing or
// Available not True, or ReplicaFailure True.
func conditionWarnings(dep *appsv1.Deployment) []models.HealthWarning {
	var warnings []models.HealthWarning
	for _, cond := range dep.Status.Conditions {
		failing := false
		switch cond.Type {
		case appsv1.DeploymentProgressing, appsv1.DeploymentAvailable:
			failing = cond.Status != corev1.ConditionTrue
		case appsv1.DeploymentReplicaFailure:
			failing = cond.Status == corev1.ConditionTrue
		}
		if !failing {
			continue
		}
		warning := models.HealthWarning{
			Type:    string(cond.Type),
			Reason:  cond.Reason,
			Message: cond.Message,
		}
		if !cond.LastUpdateTime.IsZero() {
			warning.LastUpdate = cond.LastUpdateTime.UTC().Format(time.RFC3339)
		}
		warnings = append(warnings, warning)
	}
	return warnings
}

func (m *Monitor) podWarnings(pods []corev1.Pod) []models.HealthWarning {
	var warnings []models.HealthWarning
	for i := range pods {
		pod := &pods[i]
		for _, cs := range pod.Status.ContainerStatuses {
			if waiting := cs.State.Waiting; waiting != nil && waiting.Reason != "ContainerCreating" {
				warnings = append(warnings, models.HealthWarning{
					Type:      WarnPodIssue,
					Reason:    waiting.Reason,
					Message:   waiting.Message,
					Pod:       pod.Name,
					Container: cs.Name,
				})
			}
			if term := cs.State.Terminated; term != nil && term.ExitCode != 0 {
				warnings = append(warnings, models.HealthWarning{
					Type:      WarnPodTerminated,
					Reason:    term.Reason,
					Message:   term.Message,
					Pod:       pod.Name,
					Container: cs.Name,
					ExitCode:  term.ExitCode,
				})
			}
			if cs.RestartCount > m.RestartThreshold {
				warnings = append(warnings, models.HealthWarning{
					Type:      WarnRestartBurst,
					Reason:    "TooManyRestarts",
					Message:   fmt.Sprintf("container restarted %d times", cs.RestartCount),
					Pod:       pod.Name,
					Container: cs.Name,
				})
			}
		}
	}
	return warnings
}

// endpointWarnings flags a service that exists but resolves to no reachable
// URL. A deployment without any service is not a health problem.
func (m *Monitor) endpointWarnings(ctx context.Context, dep *appsv1.Deployment) []models.HealthWarning {
	svc := status.FindService(ctx, m.conn, dep.Namespace, dep.Name, dep.Labels[manifest.LabelDeploymentID])
	if svc == nil {
		return nil
	}
	ep := deploy.ResolveEndpoint(svc, "")
	if ep.URL != nil {
		return nil
	}
	return []models.HealthWarning{{
		Type:    WarnServiceEndpoint,
		Reason:  ep.State,
		Message: fmt.Sprintf("service %q has no reachable address", svc.Name),
	}}
}

// sampleUsage aggregates one bulk `top pods` sample into totals and per-pod
// averages. A missing metrics pipeline yields an empty usage, never a
// failure.
func (m *Monitor) sampleUsage(ctx context.Context, namespace, appName string) models.ResourceUsage {
	res, err := m.conn.Run(ctx, namespace, "top", "pods", "-l", manifest.LabelApp+"="+appName, "--no-headers")
	if err != nil || !res.Success {
		m.log.Debug("resource metrics unavailable", zap.String("namespace", namespace))
		return models.ResourceUsage{}
	}

	var totalMilli, totalBytes int64
	sampled := 0
	for _, line := range strings.Split(res.Stdout, "\n") {
		_, cpu, memory, ok := utils.ParseTopLine(line)
		if !ok {
			continue
		}
		cpuQty, err := resource.ParseQuantity(cpu)
		if err != nil {
			continue
		}
		memQty, err := resource.ParseQuantity(memory)
		if err != nil {
			continue
		}
		totalMilli += cpuQty.MilliValue()
		totalBytes += memQty.Value()
		sampled++
	}
	if sampled == 0 {
		return models.ResourceUsage{}
	}

	count := float64(sampled)
	return models.ResourceUsage{
		CPU: &models.CPUUsage{
			TotalMillicores:   totalMilli,
			AverageMillicores: float64(totalMilli) / count,
			TotalCores:        float64(totalMilli) / 1000,
			AverageCores:      float64(totalMilli) / 1000 / count,
		},
		Memory: &models.MemoryUsage{
			TotalBytes:       totalBytes,
			AverageBytes:     float64(totalBytes) / count,
			TotalFormatted:   utils.FormatBytes(float64(totalBytes)),
			AverageFormatted: utils.FormatBytes(float64(totalBytes) / count),
		},
	}
}
