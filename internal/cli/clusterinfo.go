package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kscale-dev/kscale/internal/addons"
	"github.com/kscale-dev/kscale/internal/cli/common"
	cliconfig "github.com/kscale-dev/kscale/pkg/cli/config"
	"github.com/kscale-dev/kscale/pkg/printer"
)

var ClusterInfoCmd = &cobra.Command{
	Use:          "cluster-info",
	Short:        "Show cluster and addon overview",
	Long:         `Displays the API version, nodes, namespaces, and the state of the addons this tool manages.`,
	RunE:         runClusterInfo,
	SilenceUsage: true,
}

func runClusterInfo(cmd *cobra.Command, args []string) error {
	cfg, conn, err := common.Connect(cmd)
	if err != nil {
		return err
	}

	info, err := addons.NewManager(conn, cfg).ClusterInfo(cmd.Context())
	if err != nil {
		return err
	}

	if cliconfig.JSONOutput() {
		return printer.New(printer.OutputTypeJSON, false).PrintJSON(info)
	}

	printer.PrintInfo("API version: " + info.APIVersion)
	printer.PrintInfo("Context:     " + info.Context)
	printer.PrintInfo("Helm:        " + info.HelmVersion)
	if info.KedaInstalled {
		printer.PrintInfo("KEDA:        " + info.KedaVersion)
	} else {
		printer.PrintInfo("KEDA:        Not installed")
	}

	if len(info.Nodes) > 0 {
		printer.PrintInfo("")
		table := printer.NewTablePrinter(os.Stdout)
		table.SetHeaders("NODE", "STATUS", "ROLES", "KUBELET")
		for _, node := range info.Nodes {
			table.AddRow(node.Name, node.Status, strings.Join(node.Roles, ","), node.KubeletVersion)
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	if len(info.Namespaces) > 0 {
		printer.PrintInfo("")
		printer.PrintInfo(fmt.Sprintf("Namespaces (%d): %s", len(info.Namespaces), strings.Join(info.Namespaces, ", ")))
	}
	return nil
}
