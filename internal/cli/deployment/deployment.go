// Package deployment implements the `kscale deployment` command tree:
// create, status, health, delete and list.
package deployment

import (
	"github.com/spf13/cobra"
)

var DeploymentCmd = &cobra.Command{
	Use:   "deployment",
	Short: "Provision and inspect workloads",
	Long:  `Creates deployments with services and autoscaling, and reports their aggregated status.`,
}

func init() {
	DeploymentCmd.AddCommand(CreateCmd)
	DeploymentCmd.AddCommand(StatusCmd)
	DeploymentCmd.AddCommand(HealthCmd)
	DeploymentCmd.AddCommand(DeleteCmd)
	DeploymentCmd.AddCommand(ListCmd)
}
