package kubectl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Name string
	Args []string
}

// fakeRunner records every invocation and replays canned results in order.
// When the queue is empty it answers with a plain success.
type fakeRunner struct {
	calls   []recordedCall
	results []ExecResult
	onRun   func(call recordedCall)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ExecResult {
	call := recordedCall{Name: name, Args: args}
	f.calls = append(f.calls, call)
	if f.onRun != nil {
		f.onRun(call)
	}
	if len(f.results) == 0 {
		return ExecResult{Success: true}
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

func success(stdout string) ExecResult {
	return ExecResult{Success: true, Stdout: stdout}
}

func failure(stderr string, code int) ExecResult {
	return ExecResult{Stderr: stderr, ExitCode: code}
}

func TestExecute_BuildsGlobalFlagsFirst(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewExecutorWithRunner("kubectl", "/home/u/.kube/config", "prod", runner)

	result := exec.Execute(context.Background(), []string{"get", "pods"}, "web")

	require.True(t, result.Success)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "kubectl", runner.calls[0].Name)
	assert.Equal(t, []string{
		"--kubeconfig", "/home/u/.kube/config",
		"--context", "prod",
		"--namespace", "web",
		"get", "pods",
	}, runner.calls[0].Args)
}

func TestExecute_OmitsEmptyFlags(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewExecutorWithRunner("kubectl", "", "", runner)

	exec.Execute(context.Background(), []string{"get", "nodes"}, "")

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"get", "nodes"}, runner.calls[0].Args)
}

func TestExecute_EmptyArgs(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewExecutorWithRunner("kubectl", "", "", runner)

	result := exec.Execute(context.Background(), nil, "default")

	assert.False(t, result.Success)
	assert.Equal(t, -1, result.ExitCode)
	assert.NotEmpty(t, result.Stderr)
	assert.Empty(t, runner.calls, "nothing should be spawned for empty args")
}

func TestExecute_MapsScaledObjectKinds(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "singular get",
			in:   []string{"get", "scaledobject", "web"},
			want: []string{"get", "scaledobject.keda.sh", "web"},
		},
		{
			name: "plural get",
			in:   []string{"get", "scaledobjects", "-o", "json"},
			want: []string{"get", "scaledobjects.keda.sh", "-o", "json"},
		},
		{
			name: "delete is untouched",
			in:   []string{"delete", "scaledobject", "web"},
			want: []string{"delete", "scaledobject", "web"},
		},
		{
			name: "other kinds pass through",
			in:   []string{"get", "hpa", "web"},
			want: []string{"get", "hpa", "web"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{}
			exec := NewExecutorWithRunner("kubectl", "", "", runner)

			exec.Execute(context.Background(), tc.in, "")

			require.Len(t, runner.calls, 1)
			assert.Equal(t, tc.want, runner.calls[0].Args)
		})
	}
}

func TestExecute_DoesNotMutateCallerArgs(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewExecutorWithRunner("kubectl", "", "", runner)

	args := []string{"get", "scaledobject", "web"}
	exec.Execute(context.Background(), args, "")

	assert.Equal(t, []string{"get", "scaledobject", "web"}, args)
}

func TestExecuteRaw_SkipsGlobalFlags(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewExecutorWithRunner("kubectl", "/home/u/.kube/config", "prod", runner)

	exec.ExecuteRaw(context.Background(), "helm", "version", "--short")

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "helm", runner.calls[0].Name)
	assert.Equal(t, []string{"version", "--short"}, runner.calls[0].Args)
}

func TestExecRunner_MissingBinary(t *testing.T) {
	result := execRunner{}.Run(context.Background(), "kscale-no-such-binary-for-test")

	assert.False(t, result.Success)
	assert.Equal(t, -1, result.ExitCode)
	assert.NotEmpty(t, result.Stderr)
}
