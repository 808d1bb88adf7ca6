package commands

import (
	"strconv"

	"github.com/urfave/cli"
)

var (
	allCommands []cli.Command

	// below are some prebuilt flags that get used often in various commands

	configFlag = cli.StringFlag{
		Name:  "config, c",
		Usage: "Use a given `CONFIG_FILE` when running this command",
		Value: "",
	}

	humanFlag = cli.BoolFlag{
		Name:  "human-readable, H",
		Usage: "Print a report instead of csv",
	}
)

// bootstrapCommands simply adds a given command to the allCommands array
func bootstrapCommands(commands ...cli.Command) {
	allCommands = append(allCommands, commands...)
}

// Commands provides all of the defined commands to the front end
func Commands() []cli.Command {
	return allCommands
}

// helper function for formatting integers
func i(i int64) string {
	return strconv.FormatInt(i, 10)
}
