package main

import (
	"cmp"
	"fmt"
	"os"

	"github.com/atinyakov/GophStudy/internal/client/cli"
)

var (
	version   string
	buildDate string
)

func main() {
	cli.RootCmd.Version = fmt.Sprintf("%s (built %s)", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))

	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
