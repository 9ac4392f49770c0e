package deployment

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kscale-dev/kscale/internal/cli/common"
	"github.com/kscale-dev/kscale/internal/deploy"
	"github.com/kscale-dev/kscale/internal/status"
	cliconfig "github.com/kscale-dev/kscale/pkg/cli/config"
	"github.com/kscale-dev/kscale/pkg/printer"
)

var deleteID string

var DeleteCmd = &cobra.Command{
	Use:          "delete [name]",
	Short:        "Delete a deployment and its related resources",
	Long:         `Deletes the scaled object, autoscaler, service and deployment belonging to one workload. Absent resources are skipped.`,
	Args:         cobra.MaximumNArgs(1),
	RunE:         runDelete,
	SilenceUsage: true,
}

func init() {
	DeleteCmd.Flags().StringVar(&deleteID, "id", "", "Deployment id to delete instead of the name")
}

func runDelete(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && deleteID == "" {
		return fmt.Errorf("a deployment name or --id is required")
	}

	cfg, conn, err := common.Connect(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	name := ""
	namespace := common.Namespace(cmd)
	if len(args) > 0 {
		name = args[0]
	}

	// An id resolves to the deployment that carries it; child resources are
	// then deleted under the deployment's own name.
	if deleteID != "" {
		summaries, err := status.NewAggregator(conn).List(ctx, namespace)
		if err != nil {
			return err
		}
		found := false
		for _, summary := range summaries {
			if summary.DeploymentID == deleteID {
				name = summary.Name
				namespace = summary.Namespace
				found = true
				break
			}
		}
		if !found {
			printer.PrintWarning(fmt.Sprintf("no deployment with id %q found", deleteID))
			return nil
		}
	}

	result := deploy.NewOrchestrator(conn, cfg).Delete(ctx, name, namespace)

	if cliconfig.JSONOutput() {
		if err := printer.New(printer.OutputTypeJSON, false).PrintJSON(result); err != nil {
			return err
		}
	} else {
		if result.Success {
			printer.PrintSuccess(result.Message)
		} else {
			printer.PrintError(result.Message)
		}
		for _, ref := range result.Deleted {
			printer.PrintInfo(fmt.Sprintf("deleted %s/%s", ref.Kind, ref.Name))
		}
		for _, problem := range result.Problems {
			printer.PrintWarning(problem.String())
		}
	}

	if !result.Success {
		return fmt.Errorf("deletion failed: %s", result.Message)
	}
	return nil
}
