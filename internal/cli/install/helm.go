package install

import (
	"github.com/spf13/cobra"
)

var helmVersion string

var HelmCmd = &cobra.Command{
	Use:          "helm",
	Short:        "Install the helm client",
	RunE:         runHelm,
	SilenceUsage: true,
}

func init() {
	HelmCmd.Flags().StringVar(&helmVersion, "version", "", "Helm version to install (default latest)")
}

func runHelm(cmd *cobra.Command, args []string) error {
	mgr, err := manager(cmd, false)
	if err != nil {
		return err
	}
	return report(mgr.InstallHelm(cmd.Context(), helmVersion))
}
