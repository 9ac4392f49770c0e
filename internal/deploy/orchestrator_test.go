package deploy

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kscale-dev/kscale/internal/config"
	"github.com/kscale-dev/kscale/internal/kubectl"
	"github.com/kscale-dev/kscale/internal/models"
)

const versionJSON = `{"clientVersion":{"gitVersion":"v1.31.0"},"serverVersion":{"major":"1","minor":"31","gitVersion":"v1.31.2"}}`

const readyDeploymentJSON = `{
  "apiVersion": "apps/v1", "kind": "Deployment",
  "metadata": {"name": "web", "namespace": "default", "generation": 1},
  "spec": {"replicas": 2},
  "status": {"observedGeneration": 1, "replicas": 2, "readyReplicas": 2, "availableReplicas": 2, "updatedReplicas": 2}
}`

const pendingDeploymentJSON = `{
  "apiVersion": "apps/v1", "kind": "Deployment",
  "metadata": {"name": "web", "namespace": "default", "generation": 1},
  "spec": {"replicas": 2},
  "status": {"observedGeneration": 1, "replicas": 2, "readyReplicas": 0, "availableReplicas": 0, "updatedReplicas": 2}
}`

const clusterIPServiceJSON = `{
  "apiVersion": "v1", "kind": "Service",
  "metadata": {"name": "web-service", "namespace": "default"},
  "spec": {"type": "ClusterIP", "clusterIP": "10.96.0.12", "ports": [{"name": "port-80", "port": 80}]}
}`

const podListJSON = `{
  "apiVersion": "v1", "kind": "List",
  "items": [
    {"metadata": {"name": "web-1"}, "status": {"phase": "Running", "containerStatuses": [{"ready": true}]}},
    {"metadata": {"name": "web-2"}, "status": {"phase": "Pending", "containerStatuses": []}}
  ]
}`

// fakeCluster scripts kubectl responses keyed off the argument vector.
type fakeCluster struct {
	t       *testing.T
	calls   [][]string
	applied []string
	respond func(cmd string, args []string) kubectl.ExecResult
}

func (f *fakeCluster) Run(_ context.Context, name string, args ...string) kubectl.ExecResult {
	f.calls = append(f.calls, append([]string{name}, args...))
	cmd := strings.Join(args, " ")
	if strings.Contains(cmd, "apply -f") {
		f.applied = append(f.applied, f.appliedKind(args))
	}
	if f.respond != nil {
		// A zero result from the script means "use the defaults".
		if res := f.respond(cmd, args); res != (kubectl.ExecResult{}) {
			return res
		}
	}
	return f.defaults(cmd)
}

func (f *fakeCluster) defaults(cmd string) kubectl.ExecResult {
	switch {
	case strings.Contains(cmd, "version"):
		return ok(versionJSON)
	case strings.Contains(cmd, "get namespace"):
		return ok(`{"kind":"Namespace"}`)
	case strings.Contains(cmd, "apply -f"):
		return ok("configured")
	case strings.Contains(cmd, "get deployment web"):
		return ok(readyDeploymentJSON)
	case strings.Contains(cmd, "get service web-service"):
		return ok(clusterIPServiceJSON)
	case strings.Contains(cmd, "get pods"):
		return ok(podListJSON)
	case strings.Contains(cmd, "get nodes"):
		return ok(`{"items":[]}`)
	case strings.Contains(cmd, "delete"):
		return ok("deleted")
	}
	return ok("{}")
}

// appliedKind reads the manifest handed to apply and extracts its kind.
func (f *fakeCluster) appliedKind(args []string) string {
	for i, arg := range args {
		if arg != "-f" || i+1 >= len(args) {
			continue
		}
		data, err := os.ReadFile(args[i+1])
		require.NoError(f.t, err)
		for _, line := range strings.Split(string(data), "\n") {
			if kind, found := strings.CutPrefix(line, "kind:"); found {
				return strings.TrimSpace(kind)
			}
		}
	}
	return ""
}

func ok(stdout string) kubectl.ExecResult {
	return kubectl.ExecResult{Success: true, Stdout: stdout, ExitCode: 0}
}

func failed(stderr string) kubectl.ExecResult {
	return kubectl.ExecResult{Success: false, Stderr: stderr, ExitCode: 1}
}

func newTestOrchestrator(t *testing.T, respond func(cmd string, args []string) kubectl.ExecResult) (*Orchestrator, *fakeCluster) {
	t.Helper()
	fake := &fakeCluster{t: t, respond: respond}
	exec := kubectl.NewExecutorWithRunner("kubectl", "", "", fake)
	conn := kubectl.NewConnection(exec, "default")
	require.NoError(t, conn.Connect(context.Background()))
	fake.calls = nil

	orch := NewOrchestrator(conn, &config.Config{
		PollInterval: time.Millisecond,
		ReadyTimeout: 5 * time.Millisecond,
	})
	return orch, fake
}

func webRequest() *models.DeploymentRequest {
	return &models.DeploymentRequest{
		Name:     "web",
		Image:    "nginx:latest",
		Replicas: 2,
		Ports:    []int32{80},
	}
}

func TestCreate_HappyPath(t *testing.T) {
	orch, fake := newTestOrchestrator(t, nil)

	result := orch.Create(context.Background(), webRequest())

	require.True(t, result.Success, "message: %s", result.Message)
	assert.Regexp(t, regexp.MustCompile(`^web-[0-9a-f]{8}$`), result.DeploymentID)
	assert.Equal(t, "default", result.Namespace)
	assert.True(t, result.Ready)
	assert.Empty(t, result.FailedStep)

	require.Len(t, result.Resources, 2)
	assert.Equal(t, models.ResourceRef{Kind: "Deployment", Name: "web", Namespace: "default"}, result.Resources[0])
	assert.Equal(t, models.ResourceRef{Kind: "Service", Name: "web-service", Namespace: "default"}, result.Resources[1])
	assert.Equal(t, []string{"Deployment", "Service"}, fake.applied)

	require.Len(t, result.Endpoints, 1)
	require.NotNil(t, result.Endpoints[0].URL)
	assert.Equal(t, "http://10.96.0.12:80", *result.Endpoints[0].URL)
	assert.Equal(t, StateClusterOnly, result.Endpoints[0].State)

	require.NotNil(t, result.PodStatus)
	assert.Equal(t, 2, result.PodStatus.Total)
	assert.Equal(t, 1, result.PodStatus.Ready)
	assert.Equal(t, map[string]int{"Running": 1, "Pending": 1}, result.PodStatus.Breakdown)
}

func TestCreate_SameIDOnEveryResource(t *testing.T) {
	orch, fake := newTestOrchestrator(t, nil)
	ids := map[string]bool{}
	fake.respond = func(cmd string, args []string) kubectl.ExecResult {
		if strings.Contains(cmd, "apply -f") {
			for i, arg := range args {
				if arg == "-f" {
					data, err := os.ReadFile(args[i+1])
					require.NoError(t, err)
					m := regexp.MustCompile(`deployment-id: (web-[0-9a-f]{8})`).FindStringSubmatch(string(data))
					require.NotNil(t, m, "manifest missing deployment-id label:\n%s", data)
					ids[m[1]] = true
				}
			}
		}
		return kubectl.ExecResult{}
	}

	req := webRequest()
	req.Mode = models.ScalingThreshold
	req.Threshold = &models.ThresholdConfig{MinReplicas: 2, MaxReplicas: 8, CPUPercent: 75}
	result := orch.Create(context.Background(), req)

	require.True(t, result.Success)
	assert.Len(t, ids, 1, "all manifests must carry the same deployment id")
	assert.True(t, ids[result.DeploymentID])
}

func TestCreate_NoPortsMeansNoService(t *testing.T) {
	orch, fake := newTestOrchestrator(t, nil)

	req := webRequest()
	req.Ports = nil
	result := orch.Create(context.Background(), req)

	require.True(t, result.Success)
	assert.Equal(t, []string{"Deployment"}, fake.applied)
	assert.Empty(t, result.Endpoints)
	for _, ref := range result.Resources {
		assert.NotEqual(t, "Service", ref.Kind)
	}
}

func TestCreate_ValidationFailure(t *testing.T) {
	orch, fake := newTestOrchestrator(t, nil)

	req := webRequest()
	req.Name = "Not_Valid"
	result := orch.Create(context.Background(), req)

	assert.False(t, result.Success)
	assert.Equal(t, StepValidate, result.FailedStep)
	assert.Contains(t, result.Message, "Not_Valid")
	assert.Empty(t, fake.calls, "no cluster calls after validation failure")
}

func TestCreate_ServiceApplyFailureHalts(t *testing.T) {
	orch, fake := newTestOrchestrator(t, nil)
	fake.respond = func(cmd string, args []string) kubectl.ExecResult {
		if strings.Contains(cmd, "apply -f") && fake.appliedKind(args) == "Service" {
			return failed("admission webhook denied")
		}
		return kubectl.ExecResult{}
	}

	req := webRequest()
	req.Mode = models.ScalingThreshold
	req.Threshold = &models.ThresholdConfig{MinReplicas: 1, MaxReplicas: 3, CPUPercent: 50}
	result := orch.Create(context.Background(), req)

	assert.False(t, result.Success)
	assert.Equal(t, StepService, result.FailedStep)
	assert.Contains(t, result.Message, "admission webhook denied")

	// The workload exists and is reported; nothing after the failed step ran.
	require.Len(t, result.Resources, 1)
	assert.Equal(t, "Deployment", result.Resources[0].Kind)
	assert.NotContains(t, fake.applied, "HorizontalPodAutoscaler")
	for _, call := range fake.calls {
		assert.NotContains(t, strings.Join(call, " "), "get pods")
	}
}

func TestCreate_EventModeWinsOverThreshold(t *testing.T) {
	orch, fake := newTestOrchestrator(t, nil)

	req := webRequest()
	req.Mode = models.ScalingEvent
	req.Threshold = &models.ThresholdConfig{MinReplicas: 1, MaxReplicas: 5, CPUPercent: 70}
	req.Event = &models.EventConfig{
		MinReplicas: 0,
		MaxReplicas: 10,
		Triggers:    []models.TriggerSpec{{Kind: models.TriggerCPU, Params: map[string]string{"value": "60"}}},
	}
	result := orch.Create(context.Background(), req)

	require.True(t, result.Success)
	assert.Contains(t, fake.applied, "ScaledObject")
	assert.NotContains(t, fake.applied, "HorizontalPodAutoscaler")

	var scaler *models.ResourceRef
	for i := range result.Resources {
		if result.Resources[i].Kind == "ScaledObject" {
			scaler = &result.Resources[i]
		}
	}
	require.NotNil(t, scaler)
	assert.Equal(t, "web", scaler.Name)

	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "precedence")
}

func TestCreate_EventModeNoValidTriggers(t *testing.T) {
	orch, fake := newTestOrchestrator(t, nil)

	req := webRequest()
	req.Mode = models.ScalingEvent
	req.Event = &models.EventConfig{
		MinReplicas: 0,
		MaxReplicas: 5,
		Triggers: []models.TriggerSpec{{
			Kind:   models.TriggerQueueLag,
			Params: map[string]string{"bootstrapServers": "kafka:9092", "consumerGroup": "workers"},
		}},
	}
	result := orch.Create(context.Background(), req)

	require.True(t, result.Success)
	assert.NotContains(t, fake.applied, "ScaledObject")
	require.Len(t, result.Problems, 1)
	assert.Contains(t, result.Problems[0].Reason, `"topic"`)

	warned := false
	for _, warning := range result.Warnings {
		warned = warned || strings.Contains(warning, "no valid triggers")
	}
	assert.True(t, warned)
}

func TestCreate_ThresholdCreatesHPA(t *testing.T) {
	orch, fake := newTestOrchestrator(t, nil)

	req := webRequest()
	req.Mode = models.ScalingThreshold
	req.Threshold = &models.ThresholdConfig{MinReplicas: 2, MaxReplicas: 8, CPUPercent: 75}
	result := orch.Create(context.Background(), req)

	require.True(t, result.Success)
	assert.Contains(t, fake.applied, "HorizontalPodAutoscaler")

	found := false
	for _, ref := range result.Resources {
		if ref.Kind == "HorizontalPodAutoscaler" {
			found = true
			assert.Equal(t, "web-hpa", ref.Name)
		}
	}
	assert.True(t, found)
}

func TestCreate_ReadinessTimeoutIsWarningNotFailure(t *testing.T) {
	orch, _ := newTestOrchestrator(t, func(cmd string, _ []string) kubectl.ExecResult {
		if strings.Contains(cmd, "get deployment web") {
			return ok(pendingDeploymentJSON)
		}
		return kubectl.ExecResult{}
	})

	result := orch.Create(context.Background(), webRequest())

	require.True(t, result.Success, "timeout must not fail the run")
	assert.False(t, result.Ready)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "not ready")
}

func TestCreate_NamespaceEnsuredBeforeWorkload(t *testing.T) {
	orch, fake := newTestOrchestrator(t, nil)

	req := webRequest()
	req.Namespace = "staging"
	result := orch.Create(context.Background(), req)

	require.True(t, result.Success)
	assert.Equal(t, "staging", result.Namespace)
	first := strings.Join(fake.calls[0], " ")
	assert.Contains(t, first, "get namespace staging")
}

func TestDelete_RemovesChildResourcesFirst(t *testing.T) {
	orch, fake := newTestOrchestrator(t, func(cmd string, _ []string) kubectl.ExecResult {
		if strings.Contains(cmd, "delete") {
			return ok("deleted")
		}
		return kubectl.ExecResult{}
	})

	result := orch.Delete(context.Background(), "web", "default")

	require.True(t, result.Success)
	require.Len(t, result.Deleted, 4)

	var kinds []string
	for _, call := range fake.calls {
		// call is [binary, --namespace, NS, delete, KIND, NAME, ...].
		if len(call) > 4 && call[3] == "delete" {
			kinds = append(kinds, call[4])
		}
	}
	assert.Equal(t, []string{"scaledobject", "hpa", "service", "deployment"}, kinds)
}

func TestDelete_NothingToDelete(t *testing.T) {
	orch, _ := newTestOrchestrator(t, func(cmd string, _ []string) kubectl.ExecResult {
		if strings.Contains(cmd, "delete") {
			return ok("")
		}
		return kubectl.ExecResult{}
	})

	result := orch.Delete(context.Background(), "gone", "default")

	assert.True(t, result.Success)
	assert.Empty(t, result.Deleted)
	assert.Contains(t, result.Message, "nothing to delete")
}

func TestDelete_CollectsFailures(t *testing.T) {
	orch, _ := newTestOrchestrator(t, func(cmd string, args []string) kubectl.ExecResult {
		if strings.Contains(cmd, "delete") {
			if args[3] == "service" {
				return failed("conflict")
			}
			return ok("deleted")
		}
		return kubectl.ExecResult{}
	})

	result := orch.Delete(context.Background(), "web", "default")

	assert.False(t, result.Success)
	assert.Len(t, result.Deleted, 3)
	require.Len(t, result.Problems, 1)
	assert.Equal(t, "service/web-service", result.Problems[0].Source)
}

func TestWaitReady_UsesLiveDesiredCount(t *testing.T) {
	// Cluster raised desired to 3; readiness tracks the live spec.
	scaled := strings.Replace(readyDeploymentJSON, `"replicas": 2`, `"replicas": 3`, 1)
	scaled = strings.Replace(scaled, `"readyReplicas": 2`, `"readyReplicas": 3`, 1)

	orch, _ := newTestOrchestrator(t, func(cmd string, _ []string) kubectl.ExecResult {
		if strings.Contains(cmd, "get deployment web") {
			return ok(scaled)
		}
		return kubectl.ExecResult{}
	})

	assert.True(t, orch.waitReady(context.Background(), "web", "default", 2))
}

func TestPodStatus_SelectorCarriesBothLabels(t *testing.T) {
	orch, fake := newTestOrchestrator(t, nil)

	status := orch.podStatus(context.Background(), "default", "web-0a1b2c3d", "web")

	require.NotNil(t, status)
	var selector string
	for _, call := range fake.calls {
		cmd := strings.Join(call, " ")
		if strings.Contains(cmd, "get pods") {
			selector = cmd
		}
	}
	assert.Contains(t, selector, "deployment-id=web-0a1b2c3d,app=web")
}

func marshalIndent(t *testing.T, v any) string {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	return string(data)
}

func TestCreate_ResultSerializesWithSnakeCaseKeys(t *testing.T) {
	orch, _ := newTestOrchestrator(t, nil)

	result := orch.Create(context.Background(), webRequest())
	payload := marshalIndent(t, result)

	assert.Contains(t, payload, `"deployment_id"`)
	assert.Contains(t, payload, `"service_endpoints"`)
	assert.Contains(t, payload, `"readiness_achieved"`)
}
