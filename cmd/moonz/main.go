package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const (
	appName = "moonz"
	version = "0.3.0"
)

func main() {
	app := &cli.App{
		Name:    appName,
		Usage:   "autonomous social media persona",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "policy",
				Aliases: []string{"p"},
				Usage:   "Load content policy and persona overrides from `FILE`",
				EnvVars: []string{"POLICY_FILE"},
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			composeCommand(),
			checkCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
