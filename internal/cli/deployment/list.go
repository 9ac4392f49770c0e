package deployment

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kscale-dev/kscale/internal/cli/common"
	"github.com/kscale-dev/kscale/internal/status"
	cliconfig "github.com/kscale-dev/kscale/pkg/cli/config"
	"github.com/kscale-dev/kscale/pkg/printer"
)

var ListCmd = &cobra.Command{
	Use:          "list",
	Short:        "List deployments managed by this tool",
	Long:         `Lists the deployments carrying a deployment-id label, across all namespaces unless one is given.`,
	RunE:         runList,
	SilenceUsage: true,
}

func runList(cmd *cobra.Command, args []string) error {
	_, conn, err := common.Connect(cmd)
	if err != nil {
		return err
	}

	summaries, err := status.NewAggregator(conn).List(cmd.Context(), common.Namespace(cmd))
	if err != nil {
		return err
	}

	if cliconfig.JSONOutput() {
		return printer.New(printer.OutputTypeJSON, false).PrintJSON(summaries)
	}

	if len(summaries) == 0 {
		printer.PrintInfo("no managed deployments found")
		return nil
	}

	table := printer.NewTablePrinter(os.Stdout)
	table.SetHeaders("NAME", "NAMESPACE", "DEPLOYMENT ID", "READY", "CONDITION")
	for _, summary := range summaries {
		table.AddRow(
			summary.Name,
			summary.Namespace,
			summary.DeploymentID,
			fmt.Sprintf("%d/%d", summary.Ready, summary.Desired),
			string(summary.Condition),
		)
	}
	return table.Render()
}
