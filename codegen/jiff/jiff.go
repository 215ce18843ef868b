//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

// Package jiff implements a backend that runs MPC jobs with the JIFF
// JavaScript library. The jobs have a server role, run by the
// coordinator, and a party role for each participating party.
package jiff

import (
	"embed"
	"strconv"
	"strings"

	"github.com/markkurossi/conclave/codegen"
	"github.com/markkurossi/conclave/config"
	"github.com/markkurossi/conclave/dag"
	"github.com/markkurossi/conclave/placement"
	"github.com/markkurossi/conclave/rel"
	"github.com/markkurossi/conclave/types"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = codegen.MustTemplates(config.BackendJiff, templateFS,
	"templates/*.tmpl")

// Backend implements the JIFF backend.
type Backend struct {
}

// New creates a new JIFF backend.
func New() *Backend {
	return &Backend{}
}

// Name implements codegen.Backend.Name.
func (b *Backend) Name() string {
	return config.BackendJiff
}

// Server returns the party running the server of the domain's jobs.
func Server(domain placement.Domain, cfg *config.Config) types.PartyID {
	if domain.Parties.Contains(cfg.Jiff.ServerPID) {
		return cfg.Jiff.ServerPID
	}
	return domain.Parties.Min()
}

// Assign implements codegen.Backend.Assign.
func (b *Backend) Assign(domain placement.Domain, cfg *config.Config) (
	[]codegen.Assignment, error) {

	result := []codegen.Assignment{
		{
			Party: Server(domain, cfg),
			Role:  codegen.RoleServer,
		},
	}
	for _, party := range domain.Parties.Array() {
		result = append(result, codegen.Assignment{
			Party: party,
			Role:  codegen.RoleParty,
		})
	}
	return result, nil
}

// Emitter implements codegen.Backend.Emitter.
func (b *Backend) Emitter(role codegen.Role) codegen.Emitter {
	if role == codegen.RoleServer {
		return &serverEmitter{}
	}
	return &partyEmitter{}
}

// FileName implements codegen.Backend.FileName.
func (b *Backend) FileName(role codegen.Role) string {
	if role == codegen.RoleServer {
		return "server.js"
	}
	return "party.js"
}

// Command implements codegen.Backend.Command.
func (b *Backend) Command(cfg *config.Config, role codegen.Role,
	file string) []string {
	return []string{cfg.Jiff.Node, file}
}

type input struct {
	Name   string
	Shared bool
	Holder types.PartyID
	Width  int
}

// Wrap implements codegen.Backend.Wrap.
func (b *Backend) Wrap(ctx *codegen.Context, code string) (string, error) {
	var parties []string
	for _, p := range ctx.Group.Domain.Parties.Array() {
		parties = append(parties, p.String())
	}
	var inputs []input
	for _, id := range ctx.Group.Inputs {
		holder, _ := ctx.Holder(id)
		r := ctx.Graph.Node(id).Out
		inputs = append(inputs, input{
			Name:   r.Name,
			Shared: ctx.Shared(id),
			Holder: holder,
			Width:  r.Width(),
		})
	}
	data := struct {
		Workflow   string
		Job        string
		Party      types.PartyID
		PartyCount int
		Parties    string
		JiffPath   string
		ServerIP   string
		ServerPort int
		InputPath  string
		OutputPath string
		Inputs     []input
		Outputs    []*rel.Relation
		Code       string
	}{
		Workflow:   ctx.Workflow,
		Job:        ctx.Job(),
		Party:      ctx.Party,
		PartyCount: ctx.Group.Domain.Parties.Len(),
		Parties:    strings.Join(parties, ", "),
		JiffPath:   ctx.Config.Jiff.Path,
		ServerIP:   ctx.Config.Jiff.ServerIP,
		ServerPort: ctx.Config.Jiff.ServerPort,
		InputPath:  ctx.Config.InputPath,
		OutputPath: ctx.Config.OutputPath,
		Inputs:     inputs,
		Outputs:    ctx.Outputs(),
		Code:       code,
	}
	if ctx.Role == codegen.RoleServer {
		return templates.Execute("server.tmpl", data)
	}
	return templates.Execute("party.tmpl", data)
}

// serverEmitter emits the server code. The server only sets up the
// expected inputs and peer count; the computation is run by the
// parties.
type serverEmitter struct {
	codegen.NoOp
}

func (e *serverEmitter) Create(ctx *codegen.Context, n *dag.Node,
	p *dag.Create) (string, error) {
	return templates.Render(ctx, n, "server_create",
		codegen.Data(ctx, n, "Holder", p.Holder))
}

func (e *serverEmitter) Persist(ctx *codegen.Context, n *dag.Node,
	p *dag.Persist) (string, error) {
	return codegen.Unsupported{}.Persist(ctx, n, p)
}

type partyEmitter struct {
	codegen.Unsupported
}

func (e *partyEmitter) render(ctx *codegen.Context, n *dag.Node,
	name string, kv ...interface{}) (string, error) {
	return templates.Render(ctx, n, name, codegen.Data(ctx, n, kv...))
}

func (e *partyEmitter) Create(ctx *codegen.Context, n *dag.Node,
	p *dag.Create) (string, error) {
	return e.render(ctx, n, "create", "Holder", p.Holder)
}

func (e *partyEmitter) Project(ctx *codegen.Context, n *dag.Node,
	p *dag.Project) (string, error) {
	return e.render(ctx, n, "project", "Columns", p.Columns)
}

func (e *partyEmitter) Filter(ctx *codegen.Context, n *dag.Node,
	p *dag.Filter) (string, error) {
	return e.render(ctx, n, "filter",
		"Column", p.Column,
		"Op", p.Op.String(),
		"Operand", operand(p.Operand))
}

func (e *partyEmitter) FilterBy(ctx *codegen.Context, n *dag.Node,
	p *dag.FilterBy) (string, error) {
	return e.render(ctx, n, "filter_by",
		"Column", p.Column,
		"FilterColumn", p.FilterColumn,
		"NotIn", p.UseNotIn)
}

func (e *partyEmitter) Aggregate(ctx *codegen.Context, n *dag.Node,
	p *dag.Aggregate) (string, error) {
	return e.render(ctx, n, "aggregate",
		"GroupBy", p.GroupBy,
		"Value", p.Value,
		"Func", p.Func.String())
}

func (e *partyEmitter) IndexAggregate(ctx *codegen.Context, n *dag.Node,
	p *dag.IndexAggregate) (string, error) {
	return e.render(ctx, n, "index_aggregate",
		"GroupBy", p.GroupBy,
		"Value", p.Value,
		"Func", p.Func.String(),
		"IndexParty", p.IndexParty)
}

func (e *partyEmitter) Join(ctx *codegen.Context, n *dag.Node,
	p *dag.Join) (string, error) {
	return e.render(ctx, n, "join", "Left", p.Left, "Right", p.Right)
}

func (e *partyEmitter) IndexJoin(ctx *codegen.Context, n *dag.Node,
	p *dag.IndexJoin) (string, error) {

	left := ctx.Input(n, 0)
	return e.render(ctx, n, "index_join",
		"Left", p.Left,
		"Right", p.Right,
		"LeftIndex", left.KeyVisibility(p.Left...).Contains(p.IndexParty),
		"IndexParty", p.IndexParty)
}

func (e *partyEmitter) RevealJoin(ctx *codegen.Context, n *dag.Node,
	p *dag.RevealJoin) (string, error) {
	return e.render(ctx, n, "reveal_join",
		"Left", p.Left,
		"Right", p.Right,
		"Recipient", p.Recipient)
}

func (e *partyEmitter) HybridJoin(ctx *codegen.Context, n *dag.Node,
	p *dag.HybridJoin) (string, error) {
	return e.render(ctx, n, "hybrid_join",
		"Left", p.Left,
		"Right", p.Right,
		"Trusted", p.Trusted)
}

func (e *partyEmitter) Concat(ctx *codegen.Context, n *dag.Node,
	p *dag.Concat) (string, error) {
	return e.render(ctx, n, "concat")
}

func (e *partyEmitter) ConcatCols(ctx *codegen.Context, n *dag.Node,
	p *dag.ConcatCols) (string, error) {
	return e.render(ctx, n, "concat_cols", "UseMult", p.UseMult)
}

func (e *partyEmitter) arithmetic(ctx *codegen.Context, n *dag.Node,
	a dag.Arithmetic, fn string) (string, error) {

	var operands []string
	for _, o := range a.Operands {
		operands = append(operands, operand(o))
	}
	target, err := ctx.Input(n, 0).ColumnIndex(a.Target)
	if err != nil {
		target = -1
	}
	return e.render(ctx, n, "arithmetic",
		"Func", fn,
		"Target", target,
		"Operands", operands)
}

func (e *partyEmitter) Multiply(ctx *codegen.Context, n *dag.Node,
	p *dag.Multiply) (string, error) {
	return e.arithmetic(ctx, n, p.Arithmetic, "multiply")
}

func (e *partyEmitter) Divide(ctx *codegen.Context, n *dag.Node,
	p *dag.Divide) (string, error) {
	return e.arithmetic(ctx, n, p.Arithmetic, "divide")
}

func (e *partyEmitter) Distinct(ctx *codegen.Context, n *dag.Node,
	p *dag.Distinct) (string, error) {
	return e.render(ctx, n, "distinct", "Columns", p.Columns)
}

func (e *partyEmitter) DistinctCount(ctx *codegen.Context, n *dag.Node,
	p *dag.DistinctCount) (string, error) {
	return e.render(ctx, n, "distinct_count",
		"Column", p.Column,
		"UseSort", p.UseSort)
}

func (e *partyEmitter) SortBy(ctx *codegen.Context, n *dag.Node,
	p *dag.SortBy) (string, error) {
	return e.render(ctx, n, "sort_by",
		"Column", p.Column,
		"Ascending", p.Ascending)
}

func (e *partyEmitter) Shuffle(ctx *codegen.Context, n *dag.Node,
	p *dag.Shuffle) (string, error) {
	return e.render(ctx, n, "shuffle")
}

func (e *partyEmitter) Index(ctx *codegen.Context, n *dag.Node,
	p *dag.Index) (string, error) {
	return e.render(ctx, n, "index")
}

func (e *partyEmitter) CompNeighs(ctx *codegen.Context, n *dag.Node,
	p *dag.CompNeighs) (string, error) {
	return e.render(ctx, n, "comp_neighs", "Column", p.Column)
}

func (e *partyEmitter) Open(ctx *codegen.Context, n *dag.Node,
	p *dag.Open) (string, error) {
	return e.render(ctx, n, "open", "Target", p.Target)
}

func (e *partyEmitter) Close(ctx *codegen.Context, n *dag.Node,
	p *dag.Close) (string, error) {

	var holders []string
	for _, h := range p.Holders.Array() {
		holders = append(holders, h.String())
	}
	return e.render(ctx, n, "close", "Holders", strings.Join(holders, ", "))
}

func operand(o dag.Operand) string {
	switch o := o.(type) {
	case dag.ColumnRef:
		return "{ column: " + strconv.Itoa(int(o)) + " }"
	default:
		return "{ scalar: " + o.String() + " }"
	}
}
