// Package kubectl shells out to the kubectl binary and exposes the cluster
// operations the rest of the tool is built on. There is no in-process API
// client: every interaction is one subprocess invocation.
package kubectl

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/kscale-dev/kscale/internal/logging"
)

// ExecResult captures one subprocess invocation. Command failure is data, not
// a Go error: callers branch on Success and report Stderr.
type ExecResult struct {
	Success  bool   `json:"success"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Runner executes a single command and captures its output. Tests substitute
// fakes returning canned results.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ExecResult
}

// execRunner is the os/exec-backed default Runner.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ExecResult {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := ExecResult{
		Success: err == nil,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			// Spawn failure: binary missing, context cancelled, etc.
			result.ExitCode = -1
			if result.Stderr == "" {
				result.Stderr = err.Error()
			}
		}
	}
	return result
}

// Executor builds kubectl argv and runs it. Global flags come first
// (--kubeconfig, --context), then --namespace, then the subcommand args.
type Executor struct {
	Binary     string
	Kubeconfig string
	Context    string

	runner Runner
	log    *zap.Logger
}

// NewExecutor returns an Executor shelling out via os/exec. Empty kubeconfig
// or context leaves the corresponding flag off so kubectl falls back to its
// own defaults.
func NewExecutor(binary, kubeconfig, kubeContext string) *Executor {
	return NewExecutorWithRunner(binary, kubeconfig, kubeContext, execRunner{})
}

// NewExecutorWithRunner is NewExecutor with an explicit Runner. Tests use it
// to substitute fake subprocess results.
func NewExecutorWithRunner(binary, kubeconfig, kubeContext string, runner Runner) *Executor {
	if binary == "" {
		binary = "kubectl"
	}
	return &Executor{
		Binary:     binary,
		Kubeconfig: kubeconfig,
		Context:    kubeContext,
		runner:     runner,
		log:        logging.NewLogger("kubectl"),
	}
}

// Execute runs kubectl with the global flags followed by args. A non-empty
// namespace becomes --namespace before the subcommand args; callers pass ""
// for cluster-scoped calls or when the manifest carries metadata.namespace.
func (e *Executor) Execute(ctx context.Context, args []string, namespace string) ExecResult {
	if len(args) == 0 {
		return ExecResult{
			Stderr:   "no kubectl arguments given",
			ExitCode: -1,
		}
	}

	argv := make([]string, 0, len(args)+6)
	if e.Kubeconfig != "" {
		argv = append(argv, "--kubeconfig", e.Kubeconfig)
	}
	if e.Context != "" {
		argv = append(argv, "--context", e.Context)
	}
	if namespace != "" {
		argv = append(argv, "--namespace", namespace)
	}
	argv = append(argv, mapResourceKinds(args)...)

	return e.run(ctx, e.Binary, argv)
}

// ExecuteRaw runs an arbitrary binary without any kubectl global flags. Used
// for helm and for the bare client-side kubectl check during Connect.
func (e *Executor) ExecuteRaw(ctx context.Context, name string, args ...string) ExecResult {
	return e.run(ctx, name, args)
}

func (e *Executor) run(ctx context.Context, name string, argv []string) ExecResult {
	start := time.Now()
	result := e.runner.Run(ctx, name, argv...)
	e.log.Debug("command finished",
		zap.String("binary", name),
		zap.Strings("args", argv),
		zap.Bool("success", result.Success),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", time.Since(start)))
	return result
}

// mapResourceKinds rewrites short custom-resource kinds on get commands to
// their fully qualified names. KEDA ScaledObjects need the group suffix
// because the bare kind is ambiguous on clusters with other CRDs.
func mapResourceKinds(args []string) []string {
	if len(args) < 2 || args[0] != "get" {
		return args
	}
	mapped := make([]string, len(args))
	copy(mapped, args)
	switch mapped[1] {
	case "scaledobject":
		mapped[1] = "scaledobject.keda.sh"
	case "scaledobjects":
		mapped[1] = "scaledobjects.keda.sh"
	}
	return mapped
}
