package install

import (
	"os"

	"github.com/spf13/cobra"

	cliconfig "github.com/kscale-dev/kscale/pkg/cli/config"
	"github.com/kscale-dev/kscale/pkg/printer"
)

var StatusCmd = &cobra.Command{
	Use:          "status",
	Short:        "Show addon installation status",
	RunE:         runStatus,
	SilenceUsage: true,
}

func runStatus(cmd *cobra.Command, args []string) error {
	mgr, err := manager(cmd, true)
	if err != nil {
		return err
	}

	statuses, err := mgr.Status(cmd.Context())
	if err != nil {
		return err
	}

	if cliconfig.JSONOutput() {
		return printer.New(printer.OutputTypeJSON, false).PrintJSON(statuses)
	}

	table := printer.NewTablePrinter(os.Stdout)
	table.SetHeaders("ADDON", "INSTALLED", "VERSION")
	for _, status := range statuses {
		installed := "no"
		if status.Installed {
			installed = "yes"
		}
		table.AddRow(status.Name, installed, status.Version)
	}
	return table.Render()
}
