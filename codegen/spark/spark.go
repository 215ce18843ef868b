//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

// Package spark implements a backend that runs local cleartext jobs
// as Spark applications.
package spark

import (
	"embed"
	"fmt"
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

var templates = codegen.MustTemplates(config.BackendSpark, templateFS,
	"templates/*.tmpl")

// Backend implements the Spark backend.
type Backend struct {
}

// New creates a new Spark backend.
func New() *Backend {
	return &Backend{}
}

// Name implements codegen.Backend.Name.
func (b *Backend) Name() string {
	return config.BackendSpark
}

// Assign implements codegen.Backend.Assign.
func (b *Backend) Assign(domain placement.Domain, cfg *config.Config) (
	[]codegen.Assignment, error) {
	return codegen.LocalAssign(config.BackendSpark, domain)
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
	return []string{cfg.Spark.Submit, "--master", cfg.Spark.Master, file}
}

type input struct {
	Name      string
	IntCols   []int
	FloatCols []int
}

// splitTypes returns the indices of the integer and float columns.
// The other columns are kept as strings.
func splitTypes(r *rel.Relation) ([]int, []int) {
	var ints, floats []int
	for idx, col := range r.Columns {
		switch col.Type {
		case types.TInteger:
			ints = append(ints, idx)
		case types.TFloat:
			floats = append(floats, idx)
		}
	}
	return ints, floats
}

// Wrap implements codegen.Backend.Wrap.
func (b *Backend) Wrap(ctx *codegen.Context, code string) (string, error) {
	var inputs []input
	for _, r := range ctx.Inputs() {
		ints, floats := splitTypes(r)
		inputs = append(inputs, input{
			Name:      r.Name,
			IntCols:   ints,
			FloatCols: floats,
		})
	}
	return templates.Execute("job.tmpl", struct {
		Workflow   string
		Job        string
		Party      types.PartyID
		Master     string
		InputPath  string
		OutputPath string
		Inputs     []input
		Outputs    []*rel.Relation
		Code       string
	}{
		Workflow:   ctx.Workflow,
		Job:        ctx.Job(),
		Party:      ctx.Party,
		Master:     ctx.Config.Spark.Master,
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
	ints, floats := splitTypes(n.Out)
	return e.render(ctx, n, "create.tmpl",
		"IntCols", ints,
		"FloatCols", floats)
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
		"Operand", expr(p.Operand))
}

func (e *emitter) Aggregate(ctx *codegen.Context, n *dag.Node,
	p *dag.Aggregate) (string, error) {
	return e.render(ctx, n, "agg_"+p.Func.String()+".tmpl",
		"GroupBy", p.GroupBy,
		"Value", p.Value)
}

func (e *emitter) Join(ctx *codegen.Context, n *dag.Node,
	p *dag.Join) (string, error) {
	return e.render(ctx, n, "join.tmpl",
		"LeftParent", codegen.Ident(ctx.Input(n, 0).Name),
		"RightParent", codegen.Ident(ctx.Input(n, 1).Name),
		"LeftCols", p.Left,
		"RightCols", p.Right)
}

func (e *emitter) Concat(ctx *codegen.Context, n *dag.Node,
	p *dag.Concat) (string, error) {
	return e.render(ctx, n, "concat.tmpl")
}

func (e *emitter) arithmetic(ctx *codegen.Context, n *dag.Node,
	a dag.Arithmetic, op string) (string, error) {

	var parts []string
	for _, o := range a.Operands {
		parts = append(parts, expr(o))
	}
	in := ctx.Input(n, 0)
	target, err := in.ColumnIndex(a.Target)
	return e.render(ctx, n, "arithmetic.tmpl",
		"Target", target,
		"Append", err != nil,
		"Expr", strings.Join(parts, fmt.Sprintf(" %s ", op)))
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

func (e *emitter) SortBy(ctx *codegen.Context, n *dag.Node,
	p *dag.SortBy) (string, error) {
	return e.render(ctx, n, "sort_by.tmpl",
		"Column", p.Column,
		"Ascending", p.Ascending)
}

func (e *emitter) Open(ctx *codegen.Context, n *dag.Node,
	p *dag.Open) (string, error) {
	return e.render(ctx, n, "store.tmpl")
}

func (e *emitter) Persist(ctx *codegen.Context, n *dag.Node,
	p *dag.Persist) (string, error) {
	return e.render(ctx, n, "store.tmpl")
}

func expr(o dag.Operand) string {
	switch o := o.(type) {
	case dag.ColumnRef:
		return "row[" + strconv.Itoa(int(o)) + "]"
	default:
		return o.String()
	}
}
