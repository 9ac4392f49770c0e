// Package cli assembles the kscale command tree.
package cli

import (
	"github.com/spf13/cobra"

	internalcli "github.com/kscale-dev/kscale/internal/cli"
	"github.com/kscale-dev/kscale/internal/cli/deployment"
	"github.com/kscale-dev/kscale/internal/cli/install"
	"github.com/kscale-dev/kscale/internal/version"
	cliconfig "github.com/kscale-dev/kscale/pkg/cli/config"
)

// Root builds the root command with the global flags and all subcommands
// registered.
func Root() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "kscale",
		Short:   "Provision and autoscale workloads on Kubernetes",
		Long:    `kscale creates deployments, exposes them through services, attaches threshold or event-driven autoscaling, and reports aggregated status — all through kubectl, no in-cluster agent.`,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			format, _ := cmd.Flags().GetString("output")
			cliconfig.SetOutputFormat(format)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("kubeconfig", "", "Path to the kubeconfig file (default $KUBECONFIG or ~/.kube/config)")
	flags.String("context", "", "Kubeconfig context to use")
	flags.StringP("namespace", "n", "", "Target namespace (default from KSCALE_NAMESPACE)")
	flags.StringP("output", "o", cliconfig.OutputTable, "Output format (table, json)")

	rootCmd.AddCommand(internalcli.ConnectCmd)
	rootCmd.AddCommand(internalcli.ClusterInfoCmd)
	rootCmd.AddCommand(internalcli.VersionCmd)
	rootCmd.AddCommand(deployment.DeploymentCmd)
	rootCmd.AddCommand(install.InstallCmd)

	return rootCmd
}
