// Package common holds the helpers shared by all CLI commands: cluster
// connection setup from the global flags, name normalization, and flag value
// parsing.
package common

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stoewer/go-strcase"

	"github.com/kscale-dev/kscale/internal/config"
	"github.com/kscale-dev/kscale/internal/kubectl"
)

// NormalizeName kebab-cases a workload name so "MyApp" and "my_app" both
// become the valid resource name "my-app".
func NormalizeName(name string) string {
	return strcase.KebabCase(strings.TrimSpace(name))
}

// ParseKeyValues parses repeated KEY=VALUE flag values into a map.
func ParseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid format (expected KEY=VALUE): %s", pair)
		}
		values[parts[0]] = parts[1]
	}
	return values, nil
}

// LoadConfig builds the effective configuration: environment first, then the
// global flags on top.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	if v, err := cmd.Flags().GetString("kubeconfig"); err == nil && v != "" {
		cfg.Kubeconfig = v
	}
	if v, err := cmd.Flags().GetString("context"); err == nil && v != "" {
		cfg.Context = v
	}
	if v, err := cmd.Flags().GetString("namespace"); err == nil && v != "" {
		cfg.Namespace = v
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConnection wires an executor and connection from the configuration
// without touching the cluster. Callers that need cluster access use Connect.
func NewConnection(cfg *config.Config) *kubectl.Connection {
	exec := kubectl.NewExecutor(cfg.KubectlBinary, cfg.Kubeconfig, cfg.Context)
	return kubectl.NewConnection(exec, cfg.Namespace)
}

// Connect builds the connection from the command's global flags and performs
// the connectivity handshake. Connection failure is fatal to the command.
func Connect(cmd *cobra.Command) (*config.Config, *kubectl.Connection, error) {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	conn := NewConnection(cfg)
	if err := conn.Connect(cmd.Context()); err != nil {
		return nil, nil, err
	}
	return cfg, conn, nil
}

// Namespace returns the global --namespace flag value, empty when unset.
func Namespace(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("namespace")
	return v
}
