package commands

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/activecm/flowsentry/pkg/report"
	"github.com/activecm/flowsentry/util"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:      "show-reports",
		Usage:     "Print the reports of a report file",
		ArgsUsage: "<report file>",
		Flags: []cli.Flag{
			humanFlag,
			cli.StringFlag{
				Name:  "detector, d",
				Usage: "Only show reports of `DETECTOR` (bruteforce, dnstunnel or blacklist)",
			},
			cli.BoolFlag{
				Name:  "victims, V",
				Usage: "Show the victims of every report. Incompatible with --human-readable.",
			},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().Get(0)
			if path == "" {
				return cli.NewExitError("Specify a report file", -1)
			}
			showVictims := c.Bool("victims")
			humanReadable := c.Bool("human-readable")
			if showVictims && humanReadable {
				return cli.NewExitError("--victims and --human-readable are incompatible", -1)
			}

			reports, err := report.ReadFile(path)
			if err != nil {
				return cli.NewExitError(err.Error(), -1)
			}
			reports = filterReports(reports, c.String("detector"))

			if len(reports) == 0 {
				return cli.NewExitError("No results were found for "+path, -1)
			}

			if humanReadable {
				err = showReportsHuman(os.Stdout, reports)
			} else {
				err = showReports(os.Stdout, reports, showVictims)
			}
			if err != nil {
				return cli.NewExitError(err.Error(), -1)
			}
			return nil
		},
	}
	bootstrapCommands(command)
}

func filterReports(reports []*report.Report, detector string) []*report.Report {
	if detector == "" {
		return reports
	}
	var out []*report.Report
	for _, r := range reports {
		if r.Detector == detector {
			out = append(out, r)
		}
	}
	return out
}

func reportRow(r *report.Report) []string {
	return []string{
		r.Timestamp.Format(util.TimeFormat), r.Detector, r.Protocol, r.Class, r.HostIP,
		i(int64(r.DstPort)), i(int64(r.Intensity)),
		strconv.FormatBool(r.EndOfAttack), i(int64(len(r.Victims))),
	}
}

var reportHeader = []string{
	"Timestamp", "Detector", "Protocol", "Class", "Host", "Port", "Intensity", "End Of Attack", "Victims",
}

func showReports(w io.Writer, reports []*report.Report, showVictims bool) error {
	csvWriter := csv.NewWriter(w)
	header := reportHeader
	if showVictims {
		header = append(append([]string(nil), header...), "Victim List")
	}
	csvWriter.Write(header)
	for _, r := range reports {
		data := reportRow(r)
		if showVictims {
			data = append(data, strings.Join(r.Victims, " "))
		}
		csvWriter.Write(data)
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func showReportsHuman(w io.Writer, reports []*report.Report) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(reportHeader)
	for _, r := range reports {
		table.Append(reportRow(r))
	}
	table.Render()
	return nil
}
