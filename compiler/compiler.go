//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

// Package compiler compiles workflows into job plans. The compiler
// builds the workflow graph, prunes the nodes that do not contribute
// to any output, selects the protocols of the multi-party operators,
// places the nodes into job groups, emits the job code, and assembles
// the per-party job queues.
package compiler

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/codegen"
	"github.com/markkurossi/conclave/dag"
	"github.com/markkurossi/conclave/job"
	"github.com/markkurossi/conclave/log"
	"github.com/markkurossi/conclave/placement"
	"github.com/markkurossi/conclave/rewrite"
	"github.com/markkurossi/conclave/types"
)

// Workflow builds the operator graph of a workflow and returns its
// root nodes.
type Workflow func(g *dag.Graph) ([]dag.NodeID, error)

// Result holds the compilation results.
type Result struct {
	Name      string
	Graph     *dag.Graph
	Decisions []rewrite.Decision
	Placement *placement.Placement
	Units     []*codegen.Unit
	Plan      *job.Plan
	Timing    *Timing
}

// Compile compiles the workflow. The first failing pass aborts the
// compilation and no code is emitted for a workflow that fails
// validation.
func Compile(name string, wf Workflow, params *Params) (*Result, error) {
	cfg := params.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := params.Logger
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.Named("compiler").With("workflow", name)

	result := &Result{
		Name:   name,
		Timing: NewTiming(),
	}

	logger.Debugw("pass", "name", "build")
	g := dag.New(logger)
	roots, err := wf(g)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", name)
	}
	if err := checkParties(g, cfg.Parties()); err != nil {
		return nil, errors.Wrapf(err, "%s", name)
	}
	result.Timing.Pass("Build", "%d nodes", g.Len())

	logger.Debugw("pass", "name", "prune")
	g, err = g.Prune(g.Live(roots))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: prune", name)
	}
	result.Graph = g
	result.Timing.Pass("Prune", "%d nodes", g.Len())

	logger.Debugw("pass", "name", "rewrite")
	result.Decisions, err = rewrite.Rewrite(g, rewrite.Policy{
		UseLeakyOps: cfg.UseLeakyOps,
		Coordinator: cfg.Coordinator(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s: rewrite", name)
	}
	var rewritten int
	for _, d := range result.Decisions {
		if !d.Kept() {
			rewritten++
		}
		logger.Infow("protocol", "node", d.Name, "from", d.From, "to", d.To,
			"reason", d.Reason)
	}
	result.Timing.Pass("Rewrite", "%d/%d rewritten", rewritten,
		len(result.Decisions))
	if params.DotOut != nil {
		g.Dot(params.DotOut)
	}
	if params.PPOut != nil {
		g.PP(params.PPOut)
	}

	logger.Debugw("pass", "name", "place")
	result.Placement, err = placement.Place(g)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: place", name)
	}
	result.Timing.Pass("Place", "%d groups", len(result.Placement.Groups))

	logger.Debugw("pass", "name", "emit")
	result.Units, err = codegen.Generate(name, result.Placement, cfg,
		params.Backends)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: emit", name)
	}
	result.Timing.Pass("Emit", "%d units", len(result.Units))

	logger.Debugw("pass", "name", "assemble")
	result.Plan, err = job.Assemble(name, result.Placement, result.Units, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: assemble", name)
	}
	result.Timing.Pass("Assemble", "%d jobs", len(result.Plan.Jobs))

	return result, nil
}

// checkParties verifies that the nodes only name configured parties.
func checkParties(g *dag.Graph, all types.Parties) error {
	for _, n := range g.Nodes() {
		parties := n.Out.AllVisibility().Union(n.Out.Owners(), n.Out.RowMask)
		if extra := parties.Subtract(all); !extra.IsEmpty() {
			return &dag.SchemaError{
				Node: n.Name,
				Msg: fmt.Sprintf("parties %s not in configured parties %s",
					extra, all),
			}
		}
	}
	return nil
}
