//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

// Package oblivc implements a two-party MPC backend that compiles
// the jobs into Obliv-C programs. The lower party ID of the domain
// runs as Obliv-C party 1 and accepts the connection from party 2.
package oblivc

import (
	"embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/codegen"
	"github.com/markkurossi/conclave/config"
	"github.com/markkurossi/conclave/dag"
	"github.com/markkurossi/conclave/placement"
	"github.com/markkurossi/conclave/rel"
	"github.com/markkurossi/conclave/types"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = codegen.MustTemplates(config.BackendOblivc, templateFS,
	"templates/*.tmpl")

var opNames = map[dag.CompareOp]string{
	dag.OpEq: "EQ",
	dag.OpNe: "NE",
	dag.OpLt: "LT",
	dag.OpLe: "LE",
	dag.OpGt: "GT",
	dag.OpGe: "GE",
}

// Backend implements the Obliv-C backend.
type Backend struct {
}

// New creates a new Obliv-C backend.
func New() *Backend {
	return &Backend{}
}

// Name implements codegen.Backend.Name.
func (b *Backend) Name() string {
	return config.BackendOblivc
}

// Assign implements codegen.Backend.Assign.
func (b *Backend) Assign(domain placement.Domain, cfg *config.Config) (
	[]codegen.Assignment, error) {

	if !domain.MPC || domain.Parties.Len() != 2 {
		return nil, errors.Newf("%s: only two-party domains supported: %s",
			config.BackendOblivc, domain)
	}
	var result []codegen.Assignment
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
	return &emitter{}
}

// FileName implements codegen.Backend.FileName.
func (b *Backend) FileName(role codegen.Role) string {
	return "protocol.oc"
}

// Command implements codegen.Backend.Command.
func (b *Backend) Command(cfg *config.Config, role codegen.Role,
	file string) []string {

	bin := strings.TrimSuffix(file, ".oc")
	return []string{
		"sh", "-c",
		fmt.Sprintf("%s -O2 -o %s %s && ./%s",
			cfg.Oblivc.Compiler, bin, file, bin),
	}
}

// Local maps the workflow party to its Obliv-C party number.
func Local(ctx *codegen.Context, party types.PartyID) int {
	if party == ctx.Group.Domain.Parties.Min() {
		return 1
	}
	return 2
}

type input struct {
	Name   string
	Shared bool
	Local  int
	Width  int
}

// Wrap implements codegen.Backend.Wrap.
func (b *Backend) Wrap(ctx *codegen.Context, code string) (string, error) {
	var peer types.PartyID
	for _, p := range ctx.Group.Domain.Parties.Array() {
		if p != ctx.Party {
			peer = p
		}
	}
	var inputs []input
	for _, id := range ctx.Group.Inputs {
		r := ctx.Graph.Node(id).Out
		in := input{
			Name:   r.Name,
			Shared: ctx.Shared(id),
			Width:  r.Width(),
		}
		if holder, ok := ctx.Holder(id); ok {
			in.Local = Local(ctx, holder)
		}
		inputs = append(inputs, in)
	}
	return templates.Execute("protocol.tmpl", struct {
		Workflow   string
		Job        string
		Party      types.PartyID
		Local      int
		Peer       types.PartyID
		Host       string
		Port       string
		InputPath  string
		OutputPath string
		Inputs     []input
		Outputs    []*rel.Relation
		Code       string
	}{
		Workflow:   ctx.Workflow,
		Job:        ctx.Job(),
		Party:      ctx.Party,
		Local:      Local(ctx, ctx.Party),
		Peer:       peer,
		Host:       ctx.Config.Oblivc.Host,
		Port:       strconv.Itoa(ctx.Config.Oblivc.Port),
		InputPath:  ctx.Config.InputPath,
		OutputPath: ctx.Config.OutputPath,
		Inputs:     inputs,
		Outputs:    ctx.Outputs(),
		Code:       code,
	})
}

type emitter struct {
	codegen.Unsupported
}

func (e *emitter) render(ctx *codegen.Context, n *dag.Node, name string,
	kv ...interface{}) (string, error) {
	return templates.Render(ctx, n, name, codegen.Data(ctx, n, kv...))
}

func (e *emitter) Create(ctx *codegen.Context, n *dag.Node,
	p *dag.Create) (string, error) {
	if !ctx.Group.Domain.Parties.Contains(p.Holder) {
		return "", codegen.Errorf(ctx, n, "holder %v outside of domain %s",
			p.Holder, ctx.Group.Domain)
	}
	return e.render(ctx, n, "create", "Local", Local(ctx, p.Holder))
}

func (e *emitter) Project(ctx *codegen.Context, n *dag.Node,
	p *dag.Project) (string, error) {
	return e.render(ctx, n, "project", "Columns", p.Columns)
}

func (e *emitter) Filter(ctx *codegen.Context, n *dag.Node,
	p *dag.Filter) (string, error) {
	return e.render(ctx, n, "filter",
		"Column", p.Column,
		"Op", opNames[p.Op],
		"Operand", operand(p.Operand))
}

func (e *emitter) Aggregate(ctx *codegen.Context, n *dag.Node,
	p *dag.Aggregate) (string, error) {
	return e.render(ctx, n, "aggregate",
		"GroupBy", p.GroupBy,
		"Value", p.Value,
		"Func", p.Func.String())
}

func (e *emitter) IndexAggregate(ctx *codegen.Context, n *dag.Node,
	p *dag.IndexAggregate) (string, error) {

	var party int
	if p.IndexParty != 0 {
		party = Local(ctx, p.IndexParty)
	}
	return e.render(ctx, n, "index_aggregate",
		"GroupBy", p.GroupBy,
		"Value", p.Value,
		"Func", p.Func.String(),
		"IndexParty", party)
}

func (e *emitter) Join(ctx *codegen.Context, n *dag.Node,
	p *dag.Join) (string, error) {
	return e.render(ctx, n, "join", "Left", p.Left, "Right", p.Right)
}

func (e *emitter) IndexJoin(ctx *codegen.Context, n *dag.Node,
	p *dag.IndexJoin) (string, error) {
	return e.render(ctx, n, "index_join",
		"Left", p.Left,
		"Right", p.Right,
		"IndexParty", Local(ctx, p.IndexParty))
}

func (e *emitter) RevealJoin(ctx *codegen.Context, n *dag.Node,
	p *dag.RevealJoin) (string, error) {
	return e.render(ctx, n, "reveal_join",
		"Left", p.Left,
		"Right", p.Right,
		"Recipient", Local(ctx, p.Recipient))
}

func (e *emitter) Concat(ctx *codegen.Context, n *dag.Node,
	p *dag.Concat) (string, error) {
	return e.render(ctx, n, "concat")
}

func (e *emitter) ConcatCols(ctx *codegen.Context, n *dag.Node,
	p *dag.ConcatCols) (string, error) {
	return e.render(ctx, n, "concat_cols", "UseMult", p.UseMult)
}

func (e *emitter) arithmetic(ctx *codegen.Context, n *dag.Node,
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

func (e *emitter) Multiply(ctx *codegen.Context, n *dag.Node,
	p *dag.Multiply) (string, error) {
	return e.arithmetic(ctx, n, p.Arithmetic, "multiply")
}

func (e *emitter) Divide(ctx *codegen.Context, n *dag.Node,
	p *dag.Divide) (string, error) {
	return e.arithmetic(ctx, n, p.Arithmetic, "divide")
}

func (e *emitter) Distinct(ctx *codegen.Context, n *dag.Node,
	p *dag.Distinct) (string, error) {
	return e.render(ctx, n, "distinct", "Columns", p.Columns)
}

func (e *emitter) DistinctCount(ctx *codegen.Context, n *dag.Node,
	p *dag.DistinctCount) (string, error) {
	return e.render(ctx, n, "distinct_count",
		"Column", p.Column,
		"UseSort", p.UseSort)
}

func (e *emitter) SortBy(ctx *codegen.Context, n *dag.Node,
	p *dag.SortBy) (string, error) {
	return e.render(ctx, n, "sort_by",
		"Column", p.Column,
		"Ascending", p.Ascending)
}

func (e *emitter) Open(ctx *codegen.Context, n *dag.Node,
	p *dag.Open) (string, error) {
	if !ctx.Group.Domain.Parties.Contains(p.Target) {
		return "", codegen.Errorf(ctx, n, "target %v outside of domain %s",
			p.Target, ctx.Group.Domain)
	}
	return e.render(ctx, n, "open", "Target", Local(ctx, p.Target))
}

func (e *emitter) Close(ctx *codegen.Context, n *dag.Node,
	p *dag.Close) (string, error) {
	if !p.Holders.Equal(ctx.Group.Domain.Parties) {
		return "", codegen.Errorf(ctx, n, "resharing to %s not supported",
			p.Holders)
	}
	return e.render(ctx, n, "close")
}

func operand(o dag.Operand) string {
	switch o := o.(type) {
	case dag.ColumnRef:
		return fmt.Sprintf("COLUMN(%d)", int(o))
	default:
		return fmt.Sprintf("SCALAR(%s)", o)
	}
}
