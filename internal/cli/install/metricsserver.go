package install

import (
	"github.com/spf13/cobra"
)

var MetricsServerCmd = &cobra.Command{
	Use:          "metrics-server",
	Short:        "Install metrics-server",
	Long:         `Applies the metrics-server manifest and waits until the metrics API serves node metrics.`,
	RunE:         runMetricsServer,
	SilenceUsage: true,
}

func runMetricsServer(cmd *cobra.Command, args []string) error {
	mgr, err := manager(cmd, true)
	if err != nil {
		return err
	}
	return report(mgr.InstallMetricsServer(cmd.Context()))
}
