// Package deploy sequences the resource creations for one deployment
// request: workload, service, autoscaler, readiness wait, summary. Steps run
// strictly in order; a failed apply halts the run and already-created
// resources are reported, never rolled back.
package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/kscale-dev/kscale/internal/config"
	"github.com/kscale-dev/kscale/internal/kubectl"
	"github.com/kscale-dev/kscale/internal/logging"
	"github.com/kscale-dev/kscale/internal/manifest"
	"github.com/kscale-dev/kscale/internal/models"
	"github.com/kscale-dev/kscale/internal/trigger"
	"github.com/kscale-dev/kscale/internal/utils"
)

// Step names reported in DeploymentResult.FailedStep.
const (
	StepValidate   = "validate"
	StepNamespace  = "namespace"
	StepWorkload   = "deployment"
	StepService    = "service"
	StepAutoscaler = "autoscaler"
)

type Orchestrator struct {
	conn *kubectl.Connection
	log  *zap.Logger

	// PollInterval and ReadyTimeout bound the readiness wait.
	PollInterval time.Duration
	ReadyTimeout time.Duration
}

func NewOrchestrator(conn *kubectl.Connection, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		conn:         conn,
		log:          logging.NewLogger("deploy"),
		PollInterval: cfg.PollInterval,
		ReadyTimeout: cfg.ReadyTimeout,
	}
}

// Create runs the full provisioning sequence for one request and always
// returns a result, successful or not.
func (o *Orchestrator) Create(ctx context.Context, req *models.DeploymentRequest) *models.DeploymentResult {
	result := &models.DeploymentResult{Namespace: req.Namespace}

	if err := req.Validate(); err != nil {
		return fail(result, StepValidate, err.Error())
	}
	if !o.conn.Connected() {
		return fail(result, StepValidate, kubectl.ErrNotConnected.Error())
	}

	namespace := req.Namespace
	if namespace == "" {
		namespace = o.conn.Namespace
		result.Namespace = namespace
	}

	id := models.NewDeploymentID(req.Name)
	result.DeploymentID = id
	o.log.Info("starting deployment",
		zap.String("name", req.Name),
		zap.String("namespace", namespace),
		zap.String("deployment_id", id))

	if err := o.conn.EnsureNamespace(ctx, namespace); err != nil {
		return fail(result, StepNamespace, err.Error())
	}

	workload, problems, err := manifest.Deployment(req, id)
	result.Problems = append(result.Problems, problems...)
	if err != nil {
		return fail(result, StepValidate, err.Error())
	}
	if reason := o.apply(ctx, workload); reason != "" {
		return fail(result, StepWorkload, "failed to create deployment: "+reason)
	}
	result.Resources = append(result.Resources, models.ResourceRef{
		Kind: "Deployment", Name: req.Name, Namespace: namespace,
	})
	o.verify(ctx, result, namespace, "deployment", req.Name)

	serviceCreated := false
	if svc := manifest.Service(req, id); svc != nil {
		if reason := o.apply(ctx, svc); reason != "" {
			return fail(result, StepService, "deployment created but service creation failed: "+reason)
		}
		result.Resources = append(result.Resources, models.ResourceRef{
			Kind: "Service", Name: svc.Name, Namespace: namespace,
		})
		o.verify(ctx, result, namespace, "service", svc.Name)
		serviceCreated = true
	}

	if reason := o.createAutoscaler(ctx, req, id, namespace, result); reason != "" {
		return fail(result, StepAutoscaler, "deployment created but autoscaler creation failed: "+reason)
	}

	result.Ready = o.waitReady(ctx, req.Name, namespace, req.Replicas)
	if !result.Ready {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"deployment %q not ready after %s; resources exist and may still be converging", req.Name, o.ReadyTimeout))
	}

	if serviceCreated {
		result.Endpoints = o.serviceEndpoints(ctx, namespace, manifest.ServiceName(req.Name))
	}
	result.PodStatus = o.podStatus(ctx, namespace, id, req.Name)

	result.Success = true
	result.Message = fmt.Sprintf("deployment %q created in namespace %q", req.Name, namespace)
	return result
}

// createAutoscaler applies at most one scaler resource. Event-driven scaling
// wins when both styles are configured.
func (o *Orchestrator) createAutoscaler(ctx context.Context, req *models.DeploymentRequest, id, namespace string, result *models.DeploymentResult) string {
	switch req.Mode {
	case models.ScalingEvent:
		if req.Threshold != nil {
			result.Warnings = append(result.Warnings,
				"threshold autoscaling ignored: event-driven scaling takes precedence")
		}
		triggers, problems := trigger.Compile(req.Event.Triggers)
		result.Problems = append(result.Problems, problems...)
		if len(triggers) == 0 {
			result.Warnings = append(result.Warnings,
				"event scaler not created: no valid triggers compiled")
			return ""
		}
		scaled := manifest.NewScaledObject(req, id, triggers)
		if reason := o.apply(ctx, scaled); reason != "" {
			return reason
		}
		result.Resources = append(result.Resources, models.ResourceRef{
			Kind: "ScaledObject", Name: scaled.Name, Namespace: namespace,
		})
		o.verify(ctx, result, namespace, "scaledobject", scaled.Name)

	case models.ScalingThreshold:
		hpa := manifest.HPA(req, id)
		if reason := o.apply(ctx, hpa); reason != "" {
			return reason
		}
		result.Resources = append(result.Resources, models.ResourceRef{
			Kind: "HorizontalPodAutoscaler", Name: hpa.Name, Namespace: namespace,
		})
		o.verify(ctx, result, namespace, "hpa", hpa.Name)
	}
	return ""
}

// Delete tears down a deployment and its child resources by their
// conventional names. Absent resources are skipped, individual failures are
// collected and do not stop the teardown.
func (o *Orchestrator) Delete(ctx context.Context, name, namespace string) *models.DeleteResult {
	result := &models.DeleteResult{}
	if namespace == "" {
		namespace = o.conn.Namespace
	}

	targets := []models.ResourceRef{
		{Kind: "scaledobject", Name: name, Namespace: namespace},
		{Kind: "hpa", Name: manifest.HPAName(name), Namespace: namespace},
		{Kind: "service", Name: manifest.ServiceName(name), Namespace: namespace},
		{Kind: "deployment", Name: name, Namespace: namespace},
	}

	for _, target := range targets {
		res, err := o.conn.DeleteResource(ctx, target.Kind, target.Name, target.Namespace)
		if err != nil {
			result.Problems = append(result.Problems, models.Problem{
				Source: target.Kind + "/" + target.Name, Reason: err.Error(),
			})
			continue
		}
		if !res.Success {
			result.Problems = append(result.Problems, models.Problem{
				Source: target.Kind + "/" + target.Name, Reason: kubectl.FailureText(res),
			})
			continue
		}
		if strings.Contains(res.Stdout, "deleted") {
			result.Deleted = append(result.Deleted, target)
		}
	}

	result.Success = len(result.Problems) == 0
	switch {
	case !result.Success:
		result.Message = fmt.Sprintf("deletion of %q finished with %d failure(s)", name, len(result.Problems))
	case len(result.Deleted) == 0:
		result.Message = fmt.Sprintf("nothing to delete for %q in namespace %q", name, namespace)
	default:
		result.Message = fmt.Sprintf("deleted %d resource(s) for %q", len(result.Deleted), name)
	}
	return result
}

// apply submits one manifest and returns a failure reason, or "".
func (o *Orchestrator) apply(ctx context.Context, obj any) string {
	res, err := o.conn.ApplyManifest(ctx, obj)
	if err != nil {
		return err.Error()
	}
	if !res.Success {
		return kubectl.FailureText(res)
	}
	return ""
}

// verify re-reads a just-created resource. A failed read-back downgrades to
// a warning: the apply already succeeded.
func (o *Orchestrator) verify(ctx context.Context, result *models.DeploymentResult, namespace, kind, name string) {
	res, err := o.conn.Run(ctx, namespace, "get", kind, name, "-o", "json")
	if err == nil && res.Success {
		return
	}
	reason := kubectl.FailureText(res)
	if err != nil {
		reason = err.Error()
	}
	result.Warnings = append(result.Warnings, fmt.Sprintf("created %s %q but could not read it back: %s", kind, name, reason))
}

// waitReady polls until the observed ready replicas reach the desired count
// or the timeout budget runs out. Individual poll failures are tolerated.
func (o *Orchestrator) waitReady(ctx context.Context, name, namespace string, desired int32) bool {
	deadline := time.Now().Add(o.ReadyTimeout)
	for {
		res, err := o.conn.Run(ctx, namespace, "get", "deployment", name, "-o", "json")
		if err == nil && res.Success {
			var dep appsv1.Deployment
			if json.Unmarshal([]byte(res.Stdout), &dep) == nil {
				want := desired
				if dep.Spec.Replicas != nil {
					want = *dep.Spec.Replicas
				}
				if dep.Status.ReadyReplicas >= want {
					return true
				}
			}
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(o.PollInterval):
		}
	}
}

// podStatus condenses the pods carrying this run's identity labels. Returns
// nil when the pods cannot be listed.
func (o *Orchestrator) podStatus(ctx context.Context, namespace, id, name string) *models.PodStatus {
	selector := fmt.Sprintf("%s=%s,%s=%s", manifest.LabelDeploymentID, id, manifest.LabelApp, name)
	res, err := o.conn.Run(ctx, namespace, "get", "pods", "-l", selector, "-o", "json")
	if err != nil || !res.Success {
		return nil
	}

	var pods corev1.PodList
	if err := json.Unmarshal([]byte(res.Stdout), &pods); err != nil {
		return nil
	}

	status := &models.PodStatus{Breakdown: map[string]int{}}
	for i := range pods.Items {
		pod := &pods.Items[i]
		status.Total++
		status.Breakdown[string(pod.Status.Phase)]++
		if utils.PodReady(pod) {
			status.Ready++
		}
	}
	return status
}

func fail(result *models.DeploymentResult, step, message string) *models.DeploymentResult {
	result.Success = false
	result.FailedStep = step
	result.Message = message
	return result
}
