package deployment

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kscale-dev/kscale/internal/cli/common"
	"github.com/kscale-dev/kscale/internal/models"
	"github.com/kscale-dev/kscale/internal/status"
	cliconfig "github.com/kscale-dev/kscale/pkg/cli/config"
	"github.com/kscale-dev/kscale/pkg/printer"
)

var statusID string

var StatusCmd = &cobra.Command{
	Use:          "status <name>",
	Short:        "Show aggregated status of a deployment",
	Long:         `Locates a deployment and its related resources (service, autoscaler, pods, events) and reports a condensed health view per namespace match.`,
	Args:         cobra.ExactArgs(1),
	RunE:         runStatus,
	SilenceUsage: true,
}

func init() {
	StatusCmd.Flags().StringVar(&statusID, "id", "", "Deployment id to resolve instead of the name")
}

func runStatus(cmd *cobra.Command, args []string) error {
	_, conn, err := common.Connect(cmd)
	if err != nil {
		return err
	}

	identifier := args[0]
	if statusID != "" {
		identifier = statusID
	}

	report := status.NewAggregator(conn).Status(cmd.Context(), identifier, common.Namespace(cmd))

	if cliconfig.JSONOutput() {
		return printer.New(printer.OutputTypeJSON, false).PrintJSON(report)
	}

	// A missing deployment is a soft outcome, not a command failure.
	if !report.Success {
		printer.PrintWarning(report.Message)
		return nil
	}

	printer.PrintInfo(report.Message)
	for i := range report.Deployments {
		renderDeploymentStatus(&report.Deployments[i])
	}
	return nil
}

func renderDeploymentStatus(entry *models.DeploymentStatus) {
	printer.PrintInfo("")
	switch entry.Condition {
	case models.ConditionHealthy, models.ConditionScaledToZero:
		printer.PrintSuccess(entry.Message)
	case models.ConditionUnavailable, models.ConditionDegraded:
		printer.PrintError(entry.Message)
	default:
		printer.PrintWarning(entry.Message)
	}

	table := printer.NewTablePrinter(os.Stdout)
	table.SetHeaders("KIND", "NAME", "REPLICAS")
	for _, res := range entry.Resources {
		table.AddRow(res.Kind, res.Name, replicaCell(res))
	}
	_ = table.Render()

	printer.PrintInfo(fmt.Sprintf("pods: %d/%d ready%s", entry.PodStatus.Ready, entry.PodStatus.Total, breakdown(entry.PodStatus.Breakdown)))
	for _, endpoint := range entry.ServiceEndpoints {
		printer.PrintInfo("endpoint: " + endpoint)
	}
	for pod, usage := range entry.Metrics {
		printer.PrintInfo(fmt.Sprintf("usage: %s cpu=%s memory=%s", pod, usage.CPU, usage.Memory))
	}
	for _, event := range entry.Events {
		printer.PrintWarning(fmt.Sprintf("[%s] %s %s: %s", event.LastSeen, event.Object, event.Reason, printer.TruncateString(event.Message, 80)))
	}
}

func replicaCell(res models.StatusResource) string {
	var parts []string
	if res.MinReplicas != nil && res.MaxReplicas != nil {
		parts = append(parts, fmt.Sprintf("%d-%d", *res.MinReplicas, *res.MaxReplicas))
	}
	if res.CurrentReplicas != nil {
		parts = append(parts, strconv.Itoa(int(*res.CurrentReplicas))+" current")
	}
	return strings.Join(parts, ", ")
}

func breakdown(phases map[string]int) string {
	if len(phases) == 0 {
		return ""
	}
	keys := make([]string, 0, len(phases))
	for phase := range phases {
		keys = append(keys, phase)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, phase := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", phase, phases[phase]))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
