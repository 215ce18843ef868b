//
// main.go
//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"fmt"
	"os"

	"github.com/markkurossi/conclave/config"
	"github.com/markkurossi/conclave/log"
	"github.com/markkurossi/conclave/workflows"
	"github.com/markkurossi/tabulate"
	"github.com/urfave/cli/v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "party configuration `FILE`",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Value: "info",
		Usage: "log level: debug, info, warn, error",
	}
	logJSONFlag = &cli.BoolFlag{
		Name:  "log-json",
		Usage: "log in JSON format",
	}
)

func main() {
	app := &cli.App{
		Name:  "conclave",
		Usage: "compile and run multi-party workflows",
		Flags: []cli.Flag{configFlag, logLevelFlag, logJSONFlag},
		Commands: []*cli.Command{
			workflowsCmd,
			compileCmd,
			dotCmd,
			planCmd,
			runCmd,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "conclave: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cctx *cli.Context) (log.Logger, error) {
	level, err := log.ParseLevel(cctx.String(logLevelFlag.Name))
	if err != nil {
		return nil, err
	}
	return log.New(os.Stderr, level, cctx.Bool(logJSONFlag.Name)), nil
}

// loadConfig loads the party configuration. Without a configuration
// file, the defaults are adjusted to the workflow's parties.
func loadConfig(cctx *cli.Context, wf *workflows.Workflow) (
	*config.Config, error) {

	if path := cctx.String(configFlag.Name); len(path) > 0 {
		return config.Load(path)
	}
	cfg := config.New()
	if wf != nil {
		cfg.Name = wf.Name
		cfg.AllPIDs = wf.Parties
		cfg.PID = wf.Parties[0]
		cfg.UseLeakyOps = wf.LeakyOps
		if len(wf.LocalBackend) > 0 {
			cfg.LocalBackend = wf.LocalBackend
		}
	}
	return cfg, nil
}

var workflowsCmd = &cli.Command{
	Name:  "workflows",
	Usage: "list the built-in workflows",
	Action: func(cctx *cli.Context) error {
		tab := tabulate.New(tabulate.UnicodeLight)
		tab.Header("Name").SetAlign(tabulate.ML)
		tab.Header("Parties").SetAlign(tabulate.ML)
		tab.Header("Description").SetAlign(tabulate.ML)

		for _, name := range workflows.Names() {
			wf, err := workflows.Lookup(name)
			if err != nil {
				return err
			}
			row := tab.Row()
			row.Column(wf.Name)
			row.Column(fmt.Sprintf("%v", wf.Parties))
			row.Column(wf.Description)
		}
		tab.Print(os.Stdout)
		return nil
	},
}
