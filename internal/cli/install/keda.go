package install

import (
	"github.com/spf13/cobra"
)

var kedaVersion string

var KedaCmd = &cobra.Command{
	Use:          "keda",
	Short:        "Install KEDA via its helm chart",
	RunE:         runKeda,
	SilenceUsage: true,
}

func init() {
	KedaCmd.Flags().StringVar(&kedaVersion, "version", "", "KEDA chart version to install (default latest)")
}

func runKeda(cmd *cobra.Command, args []string) error {
	mgr, err := manager(cmd, true)
	if err != nil {
		return err
	}
	return report(mgr.InstallKEDA(cmd.Context(), kedaVersion))
}
