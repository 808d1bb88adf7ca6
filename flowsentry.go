package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/activecm/flowsentry/commands"
	"github.com/activecm/flowsentry/config"
	"github.com/urfave/cli"
)

// Entry point of flowsentry
func main() {
	app := cli.NewApp()
	app.Name = "flowsentry"
	app.Usage = "Detect brute force logins, DNS tunnels and blacklisted hosts in network flows."
	app.Version = config.Version

	// Define commands used with this application
	app.Commands = commands.Commands()

	runtime.GOMAXPROCS(runtime.NumCPU())
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
