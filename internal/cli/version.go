package cli

import (
	"github.com/spf13/cobra"

	"github.com/kscale-dev/kscale/internal/version"
	cliconfig "github.com/kscale-dev/kscale/pkg/cli/config"
	"github.com/kscale-dev/kscale/pkg/printer"
)

type versionOutput struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := versionOutput{
		Version:   version.Version,
		GitCommit: version.GitCommit,
		BuildDate: version.BuildDate,
	}

	if cliconfig.JSONOutput() {
		return printer.New(printer.OutputTypeJSON, false).PrintJSON(out)
	}

	printer.PrintInfo("kscale " + out.Version)
	printer.PrintInfo("commit: " + out.GitCommit)
	printer.PrintInfo("built:  " + out.BuildDate)
	return nil
}
