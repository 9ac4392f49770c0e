package main

import (
	"os"

	"github.com/kscale-dev/kscale/pkg/cli"
	"github.com/kscale-dev/kscale/pkg/cli/config"
)

func main() {
	// Human-readable output unless a command selects otherwise.
	config.SetOutputFormat(config.OutputTable)

	if err := cli.Root().Execute(); err != nil {
		os.Exit(1)
	}
}
