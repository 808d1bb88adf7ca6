package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/activecm/flowsentry/config"
	"github.com/activecm/flowsentry/pkg/engine"
	"github.com/activecm/flowsentry/pkg/flow"
	"github.com/activecm/flowsentry/pkg/metrics"
	"github.com/activecm/flowsentry/resources"
	"github.com/activecm/flowsentry/server"
	"github.com/activecm/flowsentry/util"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// natsBuffer is the number of flow messages queued ahead of the loop
const natsBuffer = 4096

func init() {
	command := cli.Command{
		Name:      "detect",
		Usage:     "Run the detectors over flow records",
		ArgsUsage: "[files or directories...]",
		Flags: []cli.Flag{
			configFlag,
			cli.StringSliceFlag{
				Name:  "input, i",
				Usage: "Read flow records from `PATH`, a JSON lines file (optionally gzipped) or a directory of them",
			},
			cli.BoolFlag{
				Name:  "nats, n",
				Usage: "Read flow records from the configured NATS subject instead of files",
			},
			cli.BoolFlag{
				Name:  "progress, p",
				Usage: "Show a progress bar over the input files",
			},
		},
		Action: detect,
	}
	bootstrapCommands(command)
}

func detect(c *cli.Context) error {
	inputs := append(c.StringSlice("input"), c.Args()...)
	useNATS := c.Bool("nats")
	if useNATS == (len(inputs) > 0) {
		return cli.NewExitError("Specify either input files or --nats", -1)
	}

	res, err := resources.InitResources(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	defer res.Close()

	sender, err := res.NewSender()
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	defer sender.Close()

	var src flow.Source
	if useNATS {
		src, err = flow.NewNATSSource(res.Config.S.Input.NATSURL, res.Config.S.Input.NATSSubject, natsBuffer)
		if err != nil {
			return cli.NewExitError("Failed to subscribe to NATS: "+err.Error(), -1)
		}
	} else {
		files := flow.GatherFiles(inputs, res.Log)
		if len(files) == 0 {
			return cli.NewExitError("No flow record files were found", -1)
		}
		src = flow.NewFileSource(files, c.Bool("progress"))
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	eng := engine.New(res.Store, res.Whitelist, res.Blacklist,
		engine.Detectors(m.Sender(sender), res.Log), m, res.Log)

	startWatchers(ctx, res, c.String("config"), m)

	if addr := res.Config.S.Metrics.ListenAddr; addr != "" {
		srv := server.New(addr, m.Registry, func() interface{} { return eng.Status() }, res.Log)
		srv.Start()
		defer srv.Stop()
	}

	start := time.Now()
	if err := eng.Run(ctx, src); err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	status := eng.Status()
	res.Log.WithFields(log.Fields{
		"flows":    status.Flows,
		"duration": util.FormatDuration(time.Since(start)),
	}).Info("Finished detection")
	return nil
}

// startWatchers reloads the whitelist, the blacklist and the config file
// in the background when they change
func startWatchers(ctx context.Context, res *resources.Resources, configPath string, m *metrics.Metrics) {
	lists := engine.NewWatcher(res.Config.S.Whitelist.ReloadInterval, m, res.Log)

	configFiles := []string{config.ResolvePath(configPath)}
	if res.Config.S.BruteForce.ThresholdFile != "" {
		configFiles = append(configFiles, res.Config.S.BruteForce.ThresholdFile)
	}
	lists.Watch("config", configFiles, res.Store.Reload)

	if path := res.Whitelist.Path(); path != "" {
		lists.Watch("whitelist", []string{path}, res.Whitelist.Reload)
	}
	go lists.Run(ctx)

	if res.Blacklist != nil && len(res.Blacklist.Paths()) > 0 {
		bl := engine.NewWatcher(res.Config.S.Blacklist.ReloadInterval, m, res.Log)
		bl.Watch("blacklist", res.Blacklist.Paths(), res.Blacklist.Reload)
		go bl.Run(ctx)
	}
}
