package kubectl

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const versionJSON = `{
  "clientVersion": {"major": "1", "minor": "31", "gitVersion": "v1.31.0"},
  "serverVersion": {"major": "1", "minor": "31", "gitVersion": "v1.31.2"}
}`

func connectedConn(t *testing.T, runner *fakeRunner) *Connection {
	t.Helper()
	runner.results = append([]ExecResult{success(versionJSON), success(versionJSON)}, runner.results...)
	conn := NewConnection(NewExecutorWithRunner("kubectl", "", "", runner), "default")
	require.NoError(t, conn.Connect(context.Background()))
	runner.calls = nil
	return conn
}

func TestConnect_RecordsServerVersion(t *testing.T) {
	runner := &fakeRunner{results: []ExecResult{success(versionJSON), success(versionJSON)}}
	conn := NewConnection(NewExecutorWithRunner("kubectl", "", "", runner), "")

	require.NoError(t, conn.Connect(context.Background()))

	assert.True(t, conn.Connected())
	assert.Equal(t, "v1.31.2", conn.ServerVersion())
	assert.Equal(t, "default", conn.Namespace)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, []string{"version", "--client", "--output=json"}, runner.calls[0].Args)
	assert.Equal(t, []string{"version", "--output=json"}, runner.calls[1].Args)
}

func TestConnect_KubectlMissing(t *testing.T) {
	runner := &fakeRunner{results: []ExecResult{failure("exec: not found", -1)}}
	conn := NewConnection(NewExecutorWithRunner("kubectl", "", "", runner), "default")

	err := conn.Connect(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "kubectl unavailable")
	assert.False(t, conn.Connected())
}

func TestConnect_ClusterUnreachable(t *testing.T) {
	runner := &fakeRunner{results: []ExecResult{
		success(versionJSON),
		failure("Unable to connect to the server: dial tcp: lookup cluster", 1),
	}}
	conn := NewConnection(NewExecutorWithRunner("kubectl", "", "", runner), "default")

	err := conn.Connect(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reach cluster")
	assert.Contains(t, err.Error(), "dial tcp")
	assert.False(t, conn.Connected())
}

func TestOperations_RequireConnect(t *testing.T) {
	conn := NewConnection(NewExecutorWithRunner("kubectl", "", "", &fakeRunner{}), "default")
	ctx := context.Background()

	_, err := conn.Run(ctx, "default", "get", "pods")
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = conn.ApplyManifest(ctx, &appsv1.Deployment{})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = conn.ApplyRaw(ctx, []byte("kind: Namespace"))
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = conn.DeleteResource(ctx, "deployment", "web", "default")
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.ErrorIs(t, conn.EnsureNamespace(ctx, "web"), ErrNotConnected)

	_, err = conn.APIVersion(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = conn.Namespaces(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = conn.Nodes(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = conn.CurrentContext(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestApplyManifest_NamespaceFromManifestWins(t *testing.T) {
	var applied recordedCall
	var manifest []byte
	runner := &fakeRunner{}
	runner.onRun = func(call recordedCall) {
		if len(call.Args) > 0 && call.Args[0] == "apply" {
			applied = call
			data, err := os.ReadFile(call.Args[2])
			require.NoError(t, err)
			manifest = data
		}
	}
	conn := connectedConn(t, runner)

	obj := &appsv1.Deployment{
		TypeMeta:   metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "staging"},
	}
	result, err := conn.ApplyManifest(context.Background(), obj)

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotEmpty(t, applied.Args)
	assert.NotContains(t, applied.Args, "--namespace", "manifest namespace must win")
	assert.Contains(t, string(manifest), "kind: Deployment")
	assert.Contains(t, string(manifest), "namespace: staging")
}

func TestApplyManifest_DefaultNamespaceFlag(t *testing.T) {
	runner := &fakeRunner{}
	conn := connectedConn(t, runner)

	obj := &appsv1.Deployment{
		TypeMeta:   metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{Name: "web"},
	}
	_, err := conn.ApplyManifest(context.Background(), obj)

	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	args := runner.calls[0].Args
	assert.Contains(t, args, "--namespace")
	assert.Contains(t, args, "default")
	assert.Equal(t, "apply", args[2])
	assert.Equal(t, "-f", args[3])
}

func TestDeleteResource_IgnoresAbsence(t *testing.T) {
	runner := &fakeRunner{}
	conn := connectedConn(t, runner)

	_, err := conn.DeleteResource(context.Background(), "service", "web-service", "staging")

	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{
		"--namespace", "staging",
		"delete", "service", "web-service", "--ignore-not-found",
	}, runner.calls[0].Args)
}

func TestEnsureNamespace_CreatesWhenMissing(t *testing.T) {
	runner := &fakeRunner{}
	conn := connectedConn(t, runner)
	runner.results = []ExecResult{
		failure(`Error from server (NotFound): namespaces "staging" not found`, 1),
		success("namespace/staging created"),
	}

	require.NoError(t, conn.EnsureNamespace(context.Background(), "staging"))

	require.Len(t, runner.calls, 2)
	assert.Equal(t, []string{"get", "namespace", "staging"}, runner.calls[0].Args)
	assert.Equal(t, []string{"create", "namespace", "staging"}, runner.calls[1].Args)
}

func TestEnsureNamespace_ExistingIsNoop(t *testing.T) {
	runner := &fakeRunner{}
	conn := connectedConn(t, runner)
	runner.results = []ExecResult{success("NAME     STATUS   AGE\ndefault  Active   9d")}

	require.NoError(t, conn.EnsureNamespace(context.Background(), "default"))
	assert.Len(t, runner.calls, 1)
}

func TestEnsureNamespace_CreateFailure(t *testing.T) {
	runner := &fakeRunner{}
	conn := connectedConn(t, runner)
	runner.results = []ExecResult{
		failure("not found", 1),
		failure("forbidden: cannot create namespaces", 1),
	}

	err := conn.EnsureNamespace(context.Background(), "staging")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
}

func TestAPIVersion(t *testing.T) {
	runner := &fakeRunner{}
	conn := connectedConn(t, runner)
	runner.results = []ExecResult{success(versionJSON)}

	got, err := conn.APIVersion(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "1.31", got)
}

func TestNamespaces(t *testing.T) {
	runner := &fakeRunner{}
	conn := connectedConn(t, runner)
	runner.results = []ExecResult{success(`{
	  "apiVersion": "v1",
	  "kind": "List",
	  "items": [
	    {"metadata": {"name": "default"}},
	    {"metadata": {"name": "kube-system"}},
	    {"metadata": {"name": "staging"}}
	  ]
	}`)}

	got, err := conn.Namespaces(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"default", "kube-system", "staging"}, got)
}

func TestCurrentContext_Trimmed(t *testing.T) {
	runner := &fakeRunner{}
	conn := connectedConn(t, runner)
	runner.results = []ExecResult{success("kind-kscale\n")}

	got, err := conn.CurrentContext(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "kind-kscale", got)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"config", "current-context"}, runner.calls[0].Args)
}

func TestFailureText_PrefersStderr(t *testing.T) {
	assert.Equal(t, "boom", FailureText(ExecResult{Stderr: " boom \n"}))
	assert.Equal(t, "partial", FailureText(ExecResult{Stdout: "partial"}))
	assert.True(t, strings.Contains(FailureText(ExecResult{ExitCode: 127}), "127"))
}
