package commands

import (
	"fmt"
	"os"

	"github.com/activecm/flowsentry/config"
	"github.com/activecm/flowsentry/resources"

	"github.com/urfave/cli"
	yaml "gopkg.in/yaml.v2"
)

func init() {
	command := cli.Command{
		Name:   "test-config",
		Usage:  "Check the configuration file for validity",
		Flags:  []cli.Flag{configFlag},
		Action: testConfiguration,
	}

	bootstrapCommands(command)
}

// testConfiguration prints out the result of parsing the config file
func testConfiguration(c *cli.Context) error {
	// First, print out the config as it was parsed
	conf, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return cli.NewExitError("Failed to load config: "+err.Error(), -1)
	}

	staticConfig, err := yaml.Marshal(conf.S)
	if err != nil {
		return err
	}

	tableConfig, err := yaml.Marshal(conf.T)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "\n%s\n", string(staticConfig))
	fmt.Fprintf(os.Stdout, "\n%s\n", string(tableConfig))
	fmt.Fprintf(os.Stdout, "Tracked brute force hosts per service: %d\n", conf.R.BruteForce.MaxHosts)

	// Then test initializing external resources like db connection and file handles
	res, err := resources.InitResources(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	res.Close()
	return nil
}
