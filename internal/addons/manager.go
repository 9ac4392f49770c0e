// Package addons installs and verifies the cluster tooling the rest of the
// tool leans on: the helm client, KEDA and metrics-server.
package addons

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/mod/semver"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/kscale-dev/kscale/internal/config"
	"github.com/kscale-dev/kscale/internal/kubectl"
	"github.com/kscale-dev/kscale/internal/logging"
	"github.com/kscale-dev/kscale/internal/models"
	"github.com/kscale-dev/kscale/internal/utils"
	"github.com/kscale-dev/kscale/internal/version"
)

const (
	kedaNamespace    = "keda"
	metricsNamespace = "kube-system"

	kedaChartRepo = "https://kedacore.github.io/charts"
	helmScriptURL = "https://raw.githubusercontent.com/helm/helm/main/scripts/get-helm-3"

	scaledObjectCRD = "scaledobjects.keda.sh"

	// Addon pods routinely take minutes to pull images and warm up.
	defaultPollInterval  = 10 * time.Second
	defaultVerifyTimeout = 5 * time.Minute
)

// Install result states.
const (
	StatusInstalled  = "Installed"
	StatusFailed     = "Failed"
	StatusWorking    = "Installed and Working"
	StatusNotWorking = "Installed but Not Working"
)

//go:embed metrics-server.yaml
var metricsServerManifest []byte

type Manager struct {
	conn *kubectl.Connection
	log  *zap.Logger

	// HelmBinary names the helm executable, run through the same plumbing
	// as kubectl.
	HelmBinary string

	PollInterval  time.Duration
	VerifyTimeout time.Duration
}

func NewManager(conn *kubectl.Connection, cfg *config.Config) *Manager {
	return &Manager{
		conn:          conn,
		log:           logging.NewLogger("addons"),
		HelmBinary:    cfg.HelmBinary,
		PollInterval:  defaultPollInterval,
		VerifyTimeout: defaultVerifyTimeout,
	}
}

// InstallHelm installs the helm client when missing. Installation is
// client-side and needs no cluster connection.
func (m *Manager) InstallHelm(ctx context.Context, helmVersion string) *models.InstallResult {
	if current, ok := m.helmVersion(ctx); ok {
		return &models.InstallResult{Success: true, Message: "helm is already installed", Version: current, Status: StatusInstalled}
	}
	if runtime.GOOS == "windows" {
		return &models.InstallResult{Message: "automatic helm installation is not supported on windows; download a release from https://github.com/helm/helm/releases"}
	}

	script := fmt.Sprintf("curl -fsSL %s | sh", helmScriptURL)
	if pinned(helmVersion) {
		// The install script reads DESIRED_VERSION and wants the v prefix.
		v := version.EnsureVPrefix(helmVersion)
		if !semver.IsValid(v) {
			return &models.InstallResult{Message: fmt.Sprintf("invalid helm version %q", helmVersion)}
		}
		script = "DESIRED_VERSION=" + v + " " + script
	}

	m.log.Info("installing helm", zap.String("script", helmScriptURL))
	res := m.conn.Executor().ExecuteRaw(ctx, "sh", "-c", script)
	if !res.Success {
		return &models.InstallResult{Message: fmt.Sprintf("helm install script failed: %s", kubectl.FailureText(res)), Status: StatusFailed}
	}

	installed, ok := m.helmVersion(ctx)
	if !ok {
		return &models.InstallResult{Message: "helm install script ran but helm is still missing", Status: StatusFailed}
	}
	return &models.InstallResult{Success: true, Message: "helm installed", Version: installed, Status: StatusInstalled}
}

// InstallKEDA installs KEDA through its helm chart. An existing installation,
// detected by the ScaledObject CRD, short-circuits to success.
func (m *Manager) InstallKEDA(ctx context.Context, kedaVersion string) *models.InstallResult {
	if !m.conn.Connected() {
		return &models.InstallResult{Message: kubectl.ErrNotConnected.Error()}
	}

	if installed, current := m.kedaInstalled(ctx); installed {
		return &models.InstallResult{Success: true, Message: "keda is already installed", Version: current, Status: StatusInstalled}
	}
	if _, ok := m.helmVersion(ctx); !ok {
		return &models.InstallResult{Message: `helm is not installed; run "kscale install helm" first`}
	}

	install := []string{"install", "keda", "kedacore/keda", "--namespace", kedaNamespace, "--create-namespace"}
	if pinned(kedaVersion) {
		if !semver.IsValid(version.EnsureVPrefix(kedaVersion)) {
			return &models.InstallResult{Message: fmt.Sprintf("invalid keda version %q", kedaVersion)}
		}
		// Chart versions are published without the v prefix.
		install = append(install, "--version", strings.TrimPrefix(kedaVersion, "v"))
	}

	if res := m.helm(ctx, "repo", "add", "kedacore", kedaChartRepo); !res.Success {
		return &models.InstallResult{Message: fmt.Sprintf("adding keda chart repository: %s", kubectl.FailureText(res)), Status: StatusFailed}
	}
	if res := m.helm(ctx, "repo", "update"); !res.Success {
		return &models.InstallResult{Message: fmt.Sprintf("updating chart repositories: %s", kubectl.FailureText(res)), Status: StatusFailed}
	}

	m.log.Info("installing keda", zap.String("namespace", kedaNamespace))
	if res := m.helm(ctx, install...); !res.Success {
		return &models.InstallResult{Message: fmt.Sprintf("installing keda chart: %s", kubectl.FailureText(res)), Status: StatusFailed}
	}

	if !m.waitFor(ctx, "keda pods", func() bool { return m.podsReady(ctx, kedaNamespace, "") }) {
		// Slow operator pods are tolerated once the CRDs are registered.
		if m.crdPresent(ctx) {
			return &models.InstallResult{Success: true, Message: "keda installed; operator pods are still starting", Status: StatusInstalled}
		}
		return &models.InstallResult{Message: "keda installation could not be verified", Status: StatusFailed}
	}

	_, current := m.kedaInstalled(ctx)
	return &models.InstallResult{Success: true, Message: "keda installed and verified", Version: current, Status: StatusInstalled}
}

// InstallMetricsServer applies the bundled metrics-server manifest and waits
// until the API actually serves node metrics, which lags pod readiness.
func (m *Manager) InstallMetricsServer(ctx context.Context) *models.InstallResult {
	if !m.conn.Connected() {
		return &models.InstallResult{Message: kubectl.ErrNotConnected.Error()}
	}

	verify := func() bool {
		return m.podsReady(ctx, metricsNamespace, "k8s-app=metrics-server") && m.metricsWorking(ctx)
	}

	if installed, current := m.metricsServerInstalled(ctx); installed {
		if m.waitFor(ctx, "metrics-server", verify) {
			return &models.InstallResult{Success: true, Message: "metrics-server is already installed and working", Version: current, Status: StatusWorking}
		}
		return &models.InstallResult{Message: "metrics-server is installed but not serving metrics", Version: current, Status: StatusNotWorking}
	}

	m.log.Info("installing metrics-server", zap.String("namespace", metricsNamespace))
	res, err := m.conn.ApplyRaw(ctx, metricsServerManifest)
	if err != nil {
		return &models.InstallResult{Message: fmt.Sprintf("installing metrics-server: %v", err), Status: StatusFailed}
	}
	if !res.Success {
		return &models.InstallResult{Message: fmt.Sprintf("installing metrics-server: %s", kubectl.FailureText(res)), Status: StatusFailed}
	}

	_, current := m.metricsServerInstalled(ctx)
	if !m.waitFor(ctx, "metrics-server", verify) {
		return &models.InstallResult{Message: "metrics-server installed but is not serving metrics yet", Version: current, Status: StatusNotWorking}
	}
	return &models.InstallResult{Success: true, Message: "metrics-server installed and verified", Version: current, Status: StatusWorking}
}

// Status reports presence and version of each addon the tool manages.
func (m *Manager) Status(ctx context.Context) ([]models.AddonStatus, error) {
	if !m.conn.Connected() {
		return nil, kubectl.ErrNotConnected
	}

	helmV, helmOK := m.helmVersion(ctx)
	kedaOK, kedaV := m.kedaInstalled(ctx)
	metricsOK, metricsV := m.metricsServerInstalled(ctx)

	return []models.AddonStatus{
		{Name: "helm", Installed: helmOK, Version: helmV},
		{Name: "keda", Installed: kedaOK, Version: kedaV},
		{Name: "metrics-server", Installed: metricsOK, Version: metricsV},
	}, nil
}

// ClusterInfo assembles the cluster overview. Individual lookups degrade to
// empty values; only a missing connection is an error.
func (m *Manager) ClusterInfo(ctx context.Context) (*models.ClusterInfo, error) {
	if !m.conn.Connected() {
		return nil, kubectl.ErrNotConnected
	}

	info := &models.ClusterInfo{}
	if v, err := m.conn.APIVersion(ctx); err == nil {
		info.APIVersion = v
	}
	if current, err := m.conn.CurrentContext(ctx); err == nil {
		info.Context = current
	}
	if nodes, err := m.conn.Nodes(ctx); err == nil {
		for i := range nodes {
			node := &nodes[i]
			info.Nodes = append(info.Nodes, models.NodeInfo{
				Name:           node.Name,
				Status:         utils.NodeStatus(node),
				Roles:          utils.NodeRoles(node),
				KernelVersion:  node.Status.NodeInfo.KernelVersion,
				KubeletVersion: node.Status.NodeInfo.KubeletVersion,
			})
		}
	}
	if namespaces, err := m.conn.Namespaces(ctx); err == nil {
		info.Namespaces = namespaces
	}

	if v, ok := m.helmVersion(ctx); ok {
		info.HelmVersion = v
	} else {
		info.HelmVersion = "Not installed"
	}
	info.KedaInstalled, info.KedaVersion = m.kedaInstalled(ctx)
	return info, nil
}

func (m *Manager) helm(ctx context.Context, args ...string) kubectl.ExecResult {
	return m.conn.Executor().ExecuteRaw(ctx, m.HelmBinary, args...)
}

func (m *Manager) helmVersion(ctx context.Context) (string, bool) {
	res := m.conn.Executor().ExecuteRaw(ctx, m.HelmBinary, "version", "--client", "--short")
	if !res.Success {
		return "", false
	}
	return strings.TrimSpace(res.Stdout), true
}

func (m *Manager) crdPresent(ctx context.Context) bool {
	res, err := m.conn.Run(ctx, "", "get", "crd", scaledObjectCRD)
	return err == nil && res.Success
}

// kedaInstalled checks the ScaledObject CRD, then reads the operator image
// tag for a version. The operator is looked up in the usual namespaces.
func (m *Manager) kedaInstalled(ctx context.Context) (bool, string) {
	if !m.crdPresent(ctx) {
		return false, ""
	}
	for _, ns := range []string{kedaNamespace, "default"} {
		if found, tag := m.deployedImageTag(ctx, ns, "keda-operator", "keda-operator"); found {
			return true, tag
		}
	}
	return true, "Unknown"
}

func (m *Manager) metricsServerInstalled(ctx context.Context) (bool, string) {
	return m.deployedImageTag(ctx, metricsNamespace, "metrics-server", "metrics-server")
}

// deployedImageTag reads a deployment's container image tag. found reports
// whether the deployment exists at all.
func (m *Manager) deployedImageTag(ctx context.Context, namespace, deployment, container string) (found bool, tag string) {
	res, err := m.conn.Run(ctx, namespace, "get", "deployment", deployment, "-o", "json")
	if err != nil || !res.Success {
		return false, ""
	}
	var dep appsv1.Deployment
	if json.Unmarshal([]byte(res.Stdout), &dep) != nil {
		return true, "Unknown"
	}
	for _, c := range dep.Spec.Template.Spec.Containers {
		if c.Name != container {
			continue
		}
		if i := strings.LastIndex(c.Image, ":"); i >= 0 {
			return true, c.Image[i+1:]
		}
	}
	return true, "Unknown"
}

func (m *Manager) podsReady(ctx context.Context, namespace, selector string) bool {
	args := []string{"get", "pods"}
	if selector != "" {
		args = append(args, "-l", selector)
	}
	args = append(args, "-o", "json")

	res, err := m.conn.Run(ctx, namespace, args...)
	if err != nil || !res.Success {
		return false
	}
	var list corev1.PodList
	if json.Unmarshal([]byte(res.Stdout), &list) != nil || len(list.Items) == 0 {
		return false
	}
	for i := range list.Items {
		if !utils.PodReady(&list.Items[i]) {
			return false
		}
	}
	return true
}

func (m *Manager) metricsWorking(ctx context.Context) bool {
	res, err := m.conn.Run(ctx, "", "top", "nodes")
	return err == nil && res.Success && strings.TrimSpace(res.Stdout) != ""
}

// waitFor polls check until it passes or the verify timeout lapses.
func (m *Manager) waitFor(ctx context.Context, what string, check func() bool) bool {
	deadline := time.Now().Add(m.VerifyTimeout)
	for {
		if check() {
			return true
		}
		if time.Now().After(deadline) {
			m.log.Warn("verification timed out", zap.String("waiting_for", what))
			return false
		}
		m.log.Info("waiting", zap.String("for", what))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(m.PollInterval):
		}
	}
}

func pinned(v string) bool {
	return v != "" && v != "latest"
}
