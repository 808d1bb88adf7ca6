package commands

import (
	"fmt"

	"github.com/activecm/flowsentry/config"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:  "version",
		Usage: "Show flowsentry version",
		Flags: []cli.Flag{
			cli.BoolFlag{
				Name:  "check",
				Usage: "Look for a newer release on GitHub",
			},
		},
		Action: showVersion,
	}

	bootstrapCommands(command)
}

func showVersion(c *cli.Context) error {
	fmt.Printf("%s version %s\n", c.App.Name, config.ExactVersion)
	if c.Bool("check") {
		fmt.Print(updateCheck(config.Version))
	}
	return nil
}
