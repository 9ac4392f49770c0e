package kubectl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/kscale-dev/kscale/internal/logging"
)

// ErrNotConnected is returned by cluster operations invoked before a
// successful Connect.
var ErrNotConnected = errors.New("not connected to cluster: call Connect first")

// Connection is a verified link to one cluster. Namespace is the default for
// namespaced operations; individual calls may override or clear it.
type Connection struct {
	Namespace string

	exec          *Executor
	connected     bool
	serverVersion string
	log           *zap.Logger
}

// NewConnection wraps an Executor with connection state. An empty namespace
// falls back to "default".
func NewConnection(exec *Executor, namespace string) *Connection {
	if namespace == "" {
		namespace = "default"
	}
	return &Connection{
		Namespace: namespace,
		exec:      exec,
		log:       logging.NewLogger("cluster"),
	}
}

// Executor exposes the underlying executor for callers that run other
// binaries through the same plumbing (helm during addon install).
func (c *Connection) Executor() *Executor {
	return c.exec
}

// Connected reports whether Connect has succeeded on this connection.
func (c *Connection) Connected() bool {
	return c.connected
}

// ServerVersion returns the gitVersion recorded during Connect, e.g.
// "v1.31.2". Empty before Connect.
func (c *Connection) ServerVersion() string {
	return c.serverVersion
}

// Connect verifies the kubectl binary client-side, then reaches the cluster
// with the configured kubeconfig and context. Both checks must pass before
// any other operation is allowed.
func (c *Connection) Connect(ctx context.Context) error {
	client := c.exec.ExecuteRaw(ctx, c.exec.Binary, "version", "--client", "--output=json")
	if !client.Success {
		return fmt.Errorf("kubectl unavailable: %s", FailureText(client))
	}

	server := c.exec.Execute(ctx, []string{"version", "--output=json"}, "")
	if !server.Success {
		return fmt.Errorf("cannot reach cluster: %s", FailureText(server))
	}

	var payload struct {
		ServerVersion struct {
			Major      string `json:"major"`
			Minor      string `json:"minor"`
			GitVersion string `json:"gitVersion"`
		} `json:"serverVersion"`
	}
	if err := json.Unmarshal([]byte(server.Stdout), &payload); err == nil {
		c.serverVersion = payload.ServerVersion.GitVersion
		if c.serverVersion == "" && payload.ServerVersion.Major != "" {
			c.serverVersion = payload.ServerVersion.Major + "." + payload.ServerVersion.Minor
		}
	}

	c.connected = true
	c.log.Info("connected to cluster",
		zap.String("server_version", c.serverVersion),
		zap.String("namespace", c.Namespace))
	return nil
}

// Run executes a kubectl subcommand against the cluster. A non-empty
// namespace becomes the --namespace flag; pass "" for cluster-scoped calls
// or when args carry --all-namespaces.
func (c *Connection) Run(ctx context.Context, namespace string, args ...string) (ExecResult, error) {
	if !c.connected {
		return ExecResult{}, ErrNotConnected
	}
	return c.exec.Execute(ctx, args, namespace), nil
}

// ApplyManifest serializes obj to YAML and applies it. When the object's
// metadata carries a namespace the --namespace flag is omitted so the
// manifest wins.
func (c *Connection) ApplyManifest(ctx context.Context, obj any) (ExecResult, error) {
	if !c.connected {
		return ExecResult{}, ErrNotConnected
	}

	data, err := yaml.Marshal(obj)
	if err != nil {
		return ExecResult{}, fmt.Errorf("marshaling manifest: %w", err)
	}

	namespace := c.Namespace
	if meta, ok := obj.(metav1.Object); ok && meta.GetNamespace() != "" {
		namespace = ""
	}
	return c.applyFile(ctx, data, namespace)
}

// ApplyRaw applies an already-rendered YAML document, multi-document files
// included. Namespacing is left entirely to the manifests.
func (c *Connection) ApplyRaw(ctx context.Context, manifest []byte) (ExecResult, error) {
	if !c.connected {
		return ExecResult{}, ErrNotConnected
	}
	return c.applyFile(ctx, manifest, "")
}

func (c *Connection) applyFile(ctx context.Context, data []byte, namespace string) (ExecResult, error) {
	file, err := os.CreateTemp("", "kscale-manifest-*.yaml")
	if err != nil {
		return ExecResult{}, fmt.Errorf("writing manifest file: %w", err)
	}
	defer os.Remove(file.Name())

	if _, err := file.Write(data); err != nil {
		file.Close()
		return ExecResult{}, fmt.Errorf("writing manifest file: %w", err)
	}
	if err := file.Close(); err != nil {
		return ExecResult{}, fmt.Errorf("writing manifest file: %w", err)
	}

	return c.exec.Execute(ctx, []string{"apply", "-f", file.Name()}, namespace), nil
}

// DeleteResource deletes one resource, tolerating absence.
func (c *Connection) DeleteResource(ctx context.Context, kind, name, namespace string) (ExecResult, error) {
	if !c.connected {
		return ExecResult{}, ErrNotConnected
	}
	return c.exec.Execute(ctx, []string{"delete", kind, name, "--ignore-not-found"}, namespace), nil
}

// EnsureNamespace creates the namespace when it does not exist yet.
func (c *Connection) EnsureNamespace(ctx context.Context, namespace string) error {
	if !c.connected {
		return ErrNotConnected
	}
	if namespace == "" {
		return nil
	}

	check := c.exec.Execute(ctx, []string{"get", "namespace", namespace}, "")
	if check.Success {
		return nil
	}

	created := c.exec.Execute(ctx, []string{"create", "namespace", namespace}, "")
	if !created.Success {
		return fmt.Errorf("creating namespace %q: %s", namespace, FailureText(created))
	}
	c.log.Info("created namespace", zap.String("namespace", namespace))
	return nil
}

// APIVersion queries the server and returns "major.minor", e.g. "1.31".
func (c *Connection) APIVersion(ctx context.Context) (string, error) {
	if !c.connected {
		return "", ErrNotConnected
	}

	result := c.exec.Execute(ctx, []string{"version", "--output=json"}, "")
	if !result.Success {
		return "", fmt.Errorf("getting API version: %s", FailureText(result))
	}

	var payload struct {
		ServerVersion struct {
			Major string `json:"major"`
			Minor string `json:"minor"`
		} `json:"serverVersion"`
	}
	if err := json.Unmarshal([]byte(result.Stdout), &payload); err != nil {
		return "", fmt.Errorf("parsing API version: %w", err)
	}
	return payload.ServerVersion.Major + "." + payload.ServerVersion.Minor, nil
}

// Namespaces lists all namespace names in the cluster.
func (c *Connection) Namespaces(ctx context.Context) ([]string, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}

	result := c.exec.Execute(ctx, []string{"get", "namespaces", "-o", "json"}, "")
	if !result.Success {
		return nil, fmt.Errorf("listing namespaces: %s", FailureText(result))
	}

	var list corev1.NamespaceList
	if err := json.Unmarshal([]byte(result.Stdout), &list); err != nil {
		return nil, fmt.Errorf("parsing namespaces: %w", err)
	}

	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.Name)
	}
	return names, nil
}

// Nodes lists the cluster's nodes.
func (c *Connection) Nodes(ctx context.Context) ([]corev1.Node, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}

	result := c.exec.Execute(ctx, []string{"get", "nodes", "-o", "json"}, "")
	if !result.Success {
		return nil, fmt.Errorf("listing nodes: %s", FailureText(result))
	}

	var list corev1.NodeList
	if err := json.Unmarshal([]byte(result.Stdout), &list); err != nil {
		return nil, fmt.Errorf("parsing nodes: %w", err)
	}
	return list.Items, nil
}

// CurrentContext returns the kubeconfig context kubectl resolves to.
func (c *Connection) CurrentContext(ctx context.Context) (string, error) {
	if !c.connected {
		return "", ErrNotConnected
	}

	result := c.exec.Execute(ctx, []string{"config", "current-context"}, "")
	if !result.Success {
		return "", fmt.Errorf("getting current context: %s", FailureText(result))
	}
	return strings.TrimSpace(result.Stdout), nil
}

// FailureText picks the most useful description of a failed invocation.
func FailureText(result ExecResult) string {
	if text := strings.TrimSpace(result.Stderr); text != "" {
		return text
	}
	if text := strings.TrimSpace(result.Stdout); text != "" {
		return text
	}
	return fmt.Sprintf("exit code %d", result.ExitCode)
}
