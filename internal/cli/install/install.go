// Package install implements the `kscale install` command tree for the
// cluster addons the tool depends on: helm, KEDA and metrics-server.
package install

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kscale-dev/kscale/internal/addons"
	"github.com/kscale-dev/kscale/internal/cli/common"
	"github.com/kscale-dev/kscale/internal/models"
	cliconfig "github.com/kscale-dev/kscale/pkg/cli/config"
	"github.com/kscale-dev/kscale/pkg/printer"
)

var InstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install cluster addons",
	Long:  `Installs and verifies the addons kscale depends on: the helm client, KEDA, and metrics-server.`,
}

func init() {
	InstallCmd.AddCommand(HelmCmd)
	InstallCmd.AddCommand(KedaCmd)
	InstallCmd.AddCommand(MetricsServerCmd)
	InstallCmd.AddCommand(StatusCmd)
}

// manager wires an addon manager. Helm installation is client-side only, so
// needCluster selects whether the connectivity handshake runs first.
func manager(cmd *cobra.Command, needCluster bool) (*addons.Manager, error) {
	if needCluster {
		cfg, conn, err := common.Connect(cmd)
		if err != nil {
			return nil, err
		}
		return addons.NewManager(conn, cfg), nil
	}

	cfg, err := common.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return addons.NewManager(common.NewConnection(cfg), cfg), nil
}

// report prints one install result and maps failure to a non-zero exit.
func report(result *models.InstallResult) error {
	if cliconfig.JSONOutput() {
		if err := printer.New(printer.OutputTypeJSON, false).PrintJSON(result); err != nil {
			return err
		}
	} else if result.Success {
		msg := result.Message
		if result.Version != "" {
			msg += " (" + result.Version + ")"
		}
		printer.PrintSuccess(msg)
	} else {
		printer.PrintError(result.Message)
	}

	if !result.Success {
		return fmt.Errorf("installation failed: %s", result.Message)
	}
	return nil
}
