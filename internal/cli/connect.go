package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kscale-dev/kscale/internal/cli/common"
	cliconfig "github.com/kscale-dev/kscale/pkg/cli/config"
	"github.com/kscale-dev/kscale/pkg/printer"
)

var ConnectCmd = &cobra.Command{
	Use:          "connect",
	Short:        "Verify connectivity to the cluster",
	Long:         `Checks that kubectl is available and the configured cluster context is reachable.`,
	RunE:         runConnect,
	SilenceUsage: true,
}

type connectOutput struct {
	Success       bool   `json:"success"`
	ServerVersion string `json:"server_version,omitempty"`
	Context       string `json:"context,omitempty"`
	Namespace     string `json:"namespace"`
	NodeCount     int    `json:"node_count"`
}

func runConnect(cmd *cobra.Command, args []string) error {
	_, conn, err := common.Connect(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	out := connectOutput{
		Success:       true,
		ServerVersion: conn.ServerVersion(),
		Namespace:     conn.Namespace,
	}
	if current, err := conn.CurrentContext(ctx); err == nil {
		out.Context = current
	}
	if nodes, err := conn.Nodes(ctx); err == nil {
		out.NodeCount = len(nodes)
	}

	if cliconfig.JSONOutput() {
		return printer.New(printer.OutputTypeJSON, false).PrintJSON(out)
	}

	printer.PrintSuccess(fmt.Sprintf("connected to cluster (server %s)", out.ServerVersion))
	if out.Context != "" {
		printer.PrintInfo("context:   " + out.Context)
	}
	printer.PrintInfo("namespace: " + out.Namespace)
	printer.PrintInfo(fmt.Sprintf("nodes:     %d", out.NodeCount))
	return nil
}
