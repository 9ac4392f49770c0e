package deployment

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kscale-dev/kscale/internal/cli/common"
	"github.com/kscale-dev/kscale/internal/health"
	"github.com/kscale-dev/kscale/internal/models"
	cliconfig "github.com/kscale-dev/kscale/pkg/cli/config"
	"github.com/kscale-dev/kscale/pkg/printer"
)

var HealthCmd = &cobra.Command{
	Use:          "health <name>",
	Short:        "Run a deep health check on a deployment",
	Long:         `Inspects a deployment's conditions, pods, restarts, endpoint reachability and live resource usage.`,
	Args:         cobra.ExactArgs(1),
	RunE:         runHealth,
	SilenceUsage: true,
}

func runHealth(cmd *cobra.Command, args []string) error {
	_, conn, err := common.Connect(cmd)
	if err != nil {
		return err
	}

	snap := health.NewMonitor(conn).Check(cmd.Context(), args[0], common.Namespace(cmd))

	if cliconfig.JSONOutput() {
		return printer.New(printer.OutputTypeJSON, false).PrintJSON(snap)
	}

	if !snap.Success {
		printer.PrintWarning(snap.Message)
		return nil
	}

	if snap.Ready {
		printer.PrintSuccess(snap.Message)
	} else {
		printer.PrintWarning(snap.Message)
	}
	printer.PrintInfo(fmt.Sprintf("pods:     %d/%d ready", snap.PodsReady, snap.PodsTotal))
	printer.PrintInfo(fmt.Sprintf("restarts: %d", snap.Restarts))

	if cpu := snap.Usage.CPU; cpu != nil {
		printer.PrintInfo(fmt.Sprintf("cpu:      %dm total, %.1fm average", cpu.TotalMillicores, cpu.AverageMillicores))
	}
	if mem := snap.Usage.Memory; mem != nil {
		printer.PrintInfo(fmt.Sprintf("memory:   %s total, %s average", mem.TotalFormatted, mem.AverageFormatted))
	}

	for _, warning := range snap.Warnings {
		printer.PrintWarning(renderHealthWarning(warning))
	}
	for _, event := range snap.RecentEvents {
		printer.PrintWarning(fmt.Sprintf("[%s] %s %s: %s", event.LastSeen, event.Object, event.Reason, printer.TruncateString(event.Message, 80)))
	}
	return nil
}

func renderHealthWarning(w models.HealthWarning) string {
	where := ""
	if w.Pod != "" {
		where = " (" + w.Pod
		if w.Container != "" {
			where += "/" + w.Container
		}
		where += ")"
	}
	return fmt.Sprintf("%s: %s %s%s", w.Type, w.Reason, w.Message, where)
}
