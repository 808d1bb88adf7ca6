package commands

import (
	"fmt"
	"net/netip"
	"strconv"

	"github.com/activecm/flowsentry/pkg/whitelist"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:      "check-whitelist",
		Usage:     "Tell whether a communication is whitelisted",
		ArgsUsage: "<whitelist file> <src ip> <dst ip> <src port> <dst port>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 5 {
				return cli.NewExitError("Specify a whitelist file, two addresses and two ports", -1)
			}
			wl, err := whitelist.Load(c.Args().Get(0))
			if err != nil {
				return cli.NewExitError(err.Error(), -1)
			}
			src, dst, sport, dport, err := parseTuple(c.Args()[1:])
			if err != nil {
				return cli.NewExitError(err.Error(), -1)
			}

			if wl.IsWhitelisted(src, dst, sport, dport) {
				fmt.Println("whitelisted")
			} else {
				fmt.Println("not whitelisted")
			}
			return nil
		},
	}
	bootstrapCommands(command)
}

func parseTuple(args []string) (src, dst netip.Addr, sport, dport uint16, err error) {
	if src, err = netip.ParseAddr(args[0]); err != nil {
		return
	}
	if dst, err = netip.ParseAddr(args[1]); err != nil {
		return
	}
	var port uint64
	if port, err = strconv.ParseUint(args[2], 10, 16); err != nil {
		return
	}
	sport = uint16(port)
	if port, err = strconv.ParseUint(args[3], 10, 16); err != nil {
		return
	}
	dport = uint16(port)
	return
}
