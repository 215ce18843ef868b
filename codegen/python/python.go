//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

// Package python implements a backend that runs local cleartext jobs
// as Python programs.
package python

import (
	"embed"
	"strconv"

	"github.com/markkurossi/conclave/codegen"
	"github.com/markkurossi/conclave/config"
	"github.com/markkurossi/conclave/dag"
	"github.com/markkurossi/conclave/placement"
	"github.com/markkurossi/conclave/rel"
	"github.com/markkurossi/conclave/types"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = codegen.MustTemplates(config.BackendPython, templateFS,
	"templates/*.tmpl")

// Backend implements the Python backend.
type Backend struct {
}

// New creates a new Python backend.
func New() *Backend {
	return &Backend{}
}

// Name implements codegen.Backend.Name.
func (b *Backend) Name() string {
	return config.BackendPython
}

// Assign implements codegen.Backend.Assign.
func (b *Backend) Assign(domain placement.Domain, cfg *config.Config) (
	[]codegen.Assignment, error) {
	return codegen.LocalAssign(config.BackendPython, domain)
}

// Emitter implements codegen.Backend.Emitter.
func (b *Backend) Emitter(role codegen.Role) codegen.Emitter {
	return &emitter{}
}

// FileName implements codegen.Backend.FileName.
func (b *Backend) FileName(role codegen.Role) string {
	return "workflow.py"
}

// Command implements codegen.Backend.Command.
func (b *Backend) Command(cfg *config.Config, role codegen.Role,
	file string) []string {
	return []string{cfg.Python.Executable, file}
}

// Wrap implements codegen.Backend.Wrap.
func (b *Backend) Wrap(ctx *codegen.Context, code string) (string, error) {
	return templates.Execute("top_level.tmpl", struct {
		Workflow   string
		Job        string
		Party      types.PartyID
		InputPath  string
		OutputPath string
		Inputs     []*rel.Relation
		Outputs    []*rel.Relation
		Code       string
	}{
		Workflow:   ctx.Workflow,
		Job:        ctx.Job(),
		Party:      ctx.Party,
		InputPath:  ctx.Config.InputPath,
		OutputPath: ctx.Config.OutputPath,
		Inputs:     ctx.Inputs(),
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
	return e.render(ctx, n, "create.tmpl")
}

func (e *emitter) Project(ctx *codegen.Context, n *dag.Node,
	p *dag.Project) (string, error) {
	return e.render(ctx, n, "project.tmpl", "Columns", p.Columns)
}

func (e *emitter) Filter(ctx *codegen.Context, n *dag.Node,
	p *dag.Filter) (string, error) {
	return e.render(ctx, n, "filter.tmpl",
		"Column", p.Column,
		"Op", p.Op.String(),
		"Operand", operand(p.Operand))
}

func (e *emitter) FilterBy(ctx *codegen.Context, n *dag.Node,
	p *dag.FilterBy) (string, error) {
	return e.render(ctx, n, "filter_by.tmpl",
		"Column", p.Column,
		"FilterColumn", p.FilterColumn,
		"NotIn", p.UseNotIn)
}

func (e *emitter) Aggregate(ctx *codegen.Context, n *dag.Node,
	p *dag.Aggregate) (string, error) {
	return e.render(ctx, n, "aggregate.tmpl",
		"GroupBy", p.GroupBy,
		"Value", p.Value,
		"Func", p.Func.String())
}

func (e *emitter) Join(ctx *codegen.Context, n *dag.Node,
	p *dag.Join) (string, error) {
	return e.render(ctx, n, "join.tmpl",
		"Left", p.Left,
		"Right", p.Right)
}

func (e *emitter) Concat(ctx *codegen.Context, n *dag.Node,
	p *dag.Concat) (string, error) {
	return e.render(ctx, n, "concat.tmpl")
}

func (e *emitter) ConcatCols(ctx *codegen.Context, n *dag.Node,
	p *dag.ConcatCols) (string, error) {
	return e.render(ctx, n, "concat_cols.tmpl")
}

func (e *emitter) arithmetic(ctx *codegen.Context, n *dag.Node,
	a dag.Arithmetic, op string) (string, error) {

	in := ctx.Input(n, 0)
	target, err := in.ColumnIndex(a.Target)
	add := err != nil
	if add {
		target = in.Width()
	}
	return e.render(ctx, n, "arithmetic.tmpl",
		"Target", target,
		"Append", add,
		"Operands", Operands(a.Operands),
		"Op", op)
}

func (e *emitter) Multiply(ctx *codegen.Context, n *dag.Node,
	p *dag.Multiply) (string, error) {
	return e.arithmetic(ctx, n, p.Arithmetic, "*")
}

func (e *emitter) Divide(ctx *codegen.Context, n *dag.Node,
	p *dag.Divide) (string, error) {
	return e.arithmetic(ctx, n, p.Arithmetic, "/")
}

func (e *emitter) Distinct(ctx *codegen.Context, n *dag.Node,
	p *dag.Distinct) (string, error) {
	return e.render(ctx, n, "distinct.tmpl", "Columns", p.Columns)
}

func (e *emitter) DistinctCount(ctx *codegen.Context, n *dag.Node,
	p *dag.DistinctCount) (string, error) {
	return e.render(ctx, n, "distinct_count.tmpl", "Column", p.Column)
}

func (e *emitter) SortBy(ctx *codegen.Context, n *dag.Node,
	p *dag.SortBy) (string, error) {
	return e.render(ctx, n, "sort_by.tmpl",
		"Column", p.Column,
		"Ascending", p.Ascending)
}

func (e *emitter) Shuffle(ctx *codegen.Context, n *dag.Node,
	p *dag.Shuffle) (string, error) {
	return e.render(ctx, n, "shuffle.tmpl")
}

func (e *emitter) Index(ctx *codegen.Context, n *dag.Node,
	p *dag.Index) (string, error) {
	return e.render(ctx, n, "index.tmpl")
}

func (e *emitter) CompNeighs(ctx *codegen.Context, n *dag.Node,
	p *dag.CompNeighs) (string, error) {
	return e.render(ctx, n, "comp_neighs.tmpl", "Column", p.Column)
}

func (e *emitter) Open(ctx *codegen.Context, n *dag.Node,
	p *dag.Open) (string, error) {
	return e.render(ctx, n, "store.tmpl")
}

func (e *emitter) Persist(ctx *codegen.Context, n *dag.Node,
	p *dag.Persist) (string, error) {
	return e.render(ctx, n, "store.tmpl")
}

// Operand is the template representation of an operand.
type Operand struct {
	Column bool
	Value  string
}

// Operands converts the operands into their template representation.
func Operands(operands []dag.Operand) []Operand {
	var result []Operand
	for _, o := range operands {
		switch o := o.(type) {
		case dag.ColumnRef:
			result = append(result, Operand{
				Column: true,
				Value:  strconv.Itoa(int(o)),
			})
		case dag.Scalar:
			result = append(result, Operand{
				Value: o.String(),
			})
		}
	}
	return result
}

func operand(o dag.Operand) string {
	switch o := o.(type) {
	case dag.ColumnRef:
		return "row[" + strconv.Itoa(int(o)) + "]"
	default:
		return o.String()
	}
}
