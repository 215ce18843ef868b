//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package codegen

import (
	"github.com/markkurossi/conclave/dag"
)

// NoOp implements an Emitter that emits empty fragments for all
// kinds. Roles that only act on some kinds embed it and override
// those kinds.
type NoOp struct {
}

// Create implements Emitter.Create.
func (e NoOp) Create(ctx *Context, n *dag.Node,
	p *dag.Create) (string, error) {
	return "", nil
}

// Project implements Emitter.Project.
func (e NoOp) Project(ctx *Context, n *dag.Node,
	p *dag.Project) (string, error) {
	return "", nil
}

// Filter implements Emitter.Filter.
func (e NoOp) Filter(ctx *Context, n *dag.Node,
	p *dag.Filter) (string, error) {
	return "", nil
}

// FilterBy implements Emitter.FilterBy.
func (e NoOp) FilterBy(ctx *Context, n *dag.Node,
	p *dag.FilterBy) (string, error) {
	return "", nil
}

// Aggregate implements Emitter.Aggregate.
func (e NoOp) Aggregate(ctx *Context, n *dag.Node,
	p *dag.Aggregate) (string, error) {
	return "", nil
}

// IndexAggregate implements Emitter.IndexAggregate.
func (e NoOp) IndexAggregate(ctx *Context, n *dag.Node,
	p *dag.IndexAggregate) (string, error) {
	return "", nil
}

// Join implements Emitter.Join.
func (e NoOp) Join(ctx *Context, n *dag.Node, p *dag.Join) (string, error) {
	return "", nil
}

// IndexJoin implements Emitter.IndexJoin.
func (e NoOp) IndexJoin(ctx *Context, n *dag.Node,
	p *dag.IndexJoin) (string, error) {
	return "", nil
}

// RevealJoin implements Emitter.RevealJoin.
func (e NoOp) RevealJoin(ctx *Context, n *dag.Node,
	p *dag.RevealJoin) (string, error) {
	return "", nil
}

// HybridJoin implements Emitter.HybridJoin.
func (e NoOp) HybridJoin(ctx *Context, n *dag.Node,
	p *dag.HybridJoin) (string, error) {
	return "", nil
}

// Concat implements Emitter.Concat.
func (e NoOp) Concat(ctx *Context, n *dag.Node,
	p *dag.Concat) (string, error) {
	return "", nil
}

// ConcatCols implements Emitter.ConcatCols.
func (e NoOp) ConcatCols(ctx *Context, n *dag.Node,
	p *dag.ConcatCols) (string, error) {
	return "", nil
}

// Multiply implements Emitter.Multiply.
func (e NoOp) Multiply(ctx *Context, n *dag.Node,
	p *dag.Multiply) (string, error) {
	return "", nil
}

// Divide implements Emitter.Divide.
func (e NoOp) Divide(ctx *Context, n *dag.Node,
	p *dag.Divide) (string, error) {
	return "", nil
}

// Distinct implements Emitter.Distinct.
func (e NoOp) Distinct(ctx *Context, n *dag.Node,
	p *dag.Distinct) (string, error) {
	return "", nil
}

// DistinctCount implements Emitter.DistinctCount.
func (e NoOp) DistinctCount(ctx *Context, n *dag.Node,
	p *dag.DistinctCount) (string, error) {
	return "", nil
}

// SortBy implements Emitter.SortBy.
func (e NoOp) SortBy(ctx *Context, n *dag.Node,
	p *dag.SortBy) (string, error) {
	return "", nil
}

// Shuffle implements Emitter.Shuffle.
func (e NoOp) Shuffle(ctx *Context, n *dag.Node,
	p *dag.Shuffle) (string, error) {
	return "", nil
}

// Index implements Emitter.Index.
func (e NoOp) Index(ctx *Context, n *dag.Node, p *dag.Index) (string, error) {
	return "", nil
}

// CompNeighs implements Emitter.CompNeighs.
func (e NoOp) CompNeighs(ctx *Context, n *dag.Node,
	p *dag.CompNeighs) (string, error) {
	return "", nil
}

// Open implements Emitter.Open.
func (e NoOp) Open(ctx *Context, n *dag.Node, p *dag.Open) (string, error) {
	return "", nil
}

// Close implements Emitter.Close.
func (e NoOp) Close(ctx *Context, n *dag.Node, p *dag.Close) (string, error) {
	return "", nil
}

// Persist implements Emitter.Persist.
func (e NoOp) Persist(ctx *Context, n *dag.Node,
	p *dag.Persist) (string, error) {
	return "", nil
}
