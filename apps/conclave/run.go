//
// run.go
//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/config"
	"github.com/markkurossi/conclave/dispatch"
	"github.com/markkurossi/conclave/job"
	"github.com/markkurossi/conclave/log"
	"github.com/markkurossi/conclave/p2p"
	"github.com/markkurossi/conclave/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

var (
	partyFlag = &cli.IntFlag{
		Name:  "party",
		Usage: "run the queue of party `ID` (default: configured pid)",
	}
	localFlag = &cli.BoolFlag{
		Name:  "local",
		Usage: "run all parties in this process",
	}
	metricsFlag = &cli.StringFlag{
		Name:  "metrics",
		Usage: "serve Prometheus metrics at `ADDRESS`",
	}
)

var planCmd = &cli.Command{
	Name:      "plan",
	Usage:     "print the jobs of a job manifest",
	ArgsUsage: "MANIFEST",
	Action: func(cctx *cli.Context) error {
		plan, err := loadPlan(cctx)
		if err != nil {
			return err
		}
		fmt.Printf("Workflow:    %s\n", plan.Workflow)
		fmt.Printf("Session:     %s\n", plan.Session)
		fmt.Printf("Fingerprint: %s\n", plan.Fingerprint())
		plan.Print(os.Stdout)
		return nil
	},
}

var runCmd = &cli.Command{
	Name:      "run",
	Usage:     "dispatch the jobs of a job manifest",
	ArgsUsage: "MANIFEST",
	Flags:     []cli.Flag{partyFlag, localFlag, metricsFlag},
	Action: func(cctx *cli.Context) error {
		plan, err := loadPlan(cctx)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cctx, nil)
		if err != nil {
			return err
		}
		logger, err := newLogger(cctx)
		if err != nil {
			return err
		}
		defer logger.Sync()

		registry := prometheus.NewRegistry()
		metrics := dispatch.NewMetrics(registry)
		if addr := cctx.String(metricsFlag.Name); len(addr) > 0 {
			go serveMetrics(addr, registry, logger)
		}

		ctx, cancel := signal.NotifyContext(context.Background(),
			os.Interrupt)
		defer cancel()

		runner := &dispatch.ExecRunner{
			CodePath: cfg.CodePath,
			Stdout:   os.Stdout,
			Stderr:   os.Stderr,
		}
		newDispatcher := func(party types.PartyID, nw p2p.Network,
			addrs map[types.PartyID]string) *dispatch.Dispatcher {
			return &dispatch.Dispatcher{
				Plan:      plan,
				Party:     party,
				Runner:    runner,
				Network:   nw,
				Addresses: addrs,
				Timeout:   cfg.Dispatch.RendezvousTimeout.Duration,
				Logger:    logger,
				Metrics:   metrics,
			}
		}

		if cctx.Bool(localFlag.Name) {
			nw := p2p.NewMemNetwork()
			addrs := make(map[types.PartyID]string)
			for _, party := range plan.Parties().Array() {
				addrs[party] = fmt.Sprintf("party%d", party)
			}
			results := dispatch.RunAll(ctx, plan,
				func(party types.PartyID) *dispatch.Dispatcher {
					return newDispatcher(party, nw, addrs)
				})
			return results.Err()
		}

		party := cfg.PID
		if cctx.IsSet(partyFlag.Name) {
			party = types.PartyID(cctx.Int(partyFlag.Name))
		}
		if len(plan.Queue(party)) == 0 {
			return errors.Newf("party %d has no jobs in %s", party,
				plan.Workflow)
		}
		return newDispatcher(party, &p2p.TCPNetwork{},
			addresses(cfg, plan)).Run(ctx)
	},
}

func loadPlan(cctx *cli.Context) (*job.Plan, error) {
	if cctx.NArg() != 1 {
		return nil, errors.New("expected one manifest file")
	}
	f, err := os.Open(cctx.Args().First())
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return job.DecodePlan(f)
}

func addresses(cfg *config.Config, plan *job.Plan) map[types.PartyID]string {
	result := make(map[types.PartyID]string)
	for _, party := range plan.Parties().Array() {
		if addr, ok := cfg.Address(party); ok {
			result[party] = addr
		}
	}
	return result
}

func serveMetrics(addr string, registry *prometheus.Registry,
	logger log.Logger) {

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry,
		promhttp.HandlerOpts{}))
	logger.Infow("serving metrics", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorw("metrics server failed", "error", err)
	}
}
