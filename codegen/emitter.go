//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package codegen

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/dag"
)

// Emitter renders the code fragments of the operator kinds. A method
// returns an empty fragment for nodes that are irrelevant for the
// emitter's role. An emitter that cannot execute a kind must return
// an EmissionError; embedding Unsupported provides this for all
// kinds.
type Emitter interface {
	Create(ctx *Context, n *dag.Node, p *dag.Create) (string, error)
	Project(ctx *Context, n *dag.Node, p *dag.Project) (string, error)
	Filter(ctx *Context, n *dag.Node, p *dag.Filter) (string, error)
	FilterBy(ctx *Context, n *dag.Node, p *dag.FilterBy) (string, error)
	Aggregate(ctx *Context, n *dag.Node, p *dag.Aggregate) (string, error)
	IndexAggregate(ctx *Context, n *dag.Node, p *dag.IndexAggregate) (
		string, error)
	Join(ctx *Context, n *dag.Node, p *dag.Join) (string, error)
	IndexJoin(ctx *Context, n *dag.Node, p *dag.IndexJoin) (string, error)
	RevealJoin(ctx *Context, n *dag.Node, p *dag.RevealJoin) (string, error)
	HybridJoin(ctx *Context, n *dag.Node, p *dag.HybridJoin) (string, error)
	Concat(ctx *Context, n *dag.Node, p *dag.Concat) (string, error)
	ConcatCols(ctx *Context, n *dag.Node, p *dag.ConcatCols) (string, error)
	Multiply(ctx *Context, n *dag.Node, p *dag.Multiply) (string, error)
	Divide(ctx *Context, n *dag.Node, p *dag.Divide) (string, error)
	Distinct(ctx *Context, n *dag.Node, p *dag.Distinct) (string, error)
	DistinctCount(ctx *Context, n *dag.Node, p *dag.DistinctCount) (
		string, error)
	SortBy(ctx *Context, n *dag.Node, p *dag.SortBy) (string, error)
	Shuffle(ctx *Context, n *dag.Node, p *dag.Shuffle) (string, error)
	Index(ctx *Context, n *dag.Node, p *dag.Index) (string, error)
	CompNeighs(ctx *Context, n *dag.Node, p *dag.CompNeighs) (string, error)
	Open(ctx *Context, n *dag.Node, p *dag.Open) (string, error)
	Close(ctx *Context, n *dag.Node, p *dag.Close) (string, error)
	Persist(ctx *Context, n *dag.Node, p *dag.Persist) (string, error)
}

// EmissionError reports a node that the backend cannot emit.
type EmissionError struct {
	Node    string
	Kind    dag.Kind
	Backend string
	Role    Role
	Err     error
}

func (e *EmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("emission error: %s: %s %s/%s: %s",
			e.Node, e.Kind, e.Backend, e.Role, e.Err)
	}
	return fmt.Sprintf("emission error: %s: %s not supported by %s/%s",
		e.Node, e.Kind, e.Backend, e.Role)
}

func (e *EmissionError) Unwrap() error {
	return e.Err
}

// Errorf creates an EmissionError for the node.
func Errorf(ctx *Context, n *dag.Node, format string,
	a ...interface{}) error {
	return &EmissionError{
		Node:    n.Name,
		Kind:    n.Kind(),
		Backend: ctx.Backend,
		Role:    ctx.Role,
		Err:     errors.Newf(format, a...),
	}
}

// Emit emits the node with the emitter.
func Emit(ctx *Context, e Emitter, n *dag.Node) (string, error) {
	switch p := n.Params.(type) {
	case *dag.Create:
		return e.Create(ctx, n, p)
	case *dag.Project:
		return e.Project(ctx, n, p)
	case *dag.Filter:
		return e.Filter(ctx, n, p)
	case *dag.FilterBy:
		return e.FilterBy(ctx, n, p)
	case *dag.Aggregate:
		return e.Aggregate(ctx, n, p)
	case *dag.IndexAggregate:
		return e.IndexAggregate(ctx, n, p)
	case *dag.Join:
		return e.Join(ctx, n, p)
	case *dag.IndexJoin:
		return e.IndexJoin(ctx, n, p)
	case *dag.RevealJoin:
		return e.RevealJoin(ctx, n, p)
	case *dag.HybridJoin:
		return e.HybridJoin(ctx, n, p)
	case *dag.Concat:
		return e.Concat(ctx, n, p)
	case *dag.ConcatCols:
		return e.ConcatCols(ctx, n, p)
	case *dag.Multiply:
		return e.Multiply(ctx, n, p)
	case *dag.Divide:
		return e.Divide(ctx, n, p)
	case *dag.Distinct:
		return e.Distinct(ctx, n, p)
	case *dag.DistinctCount:
		return e.DistinctCount(ctx, n, p)
	case *dag.SortBy:
		return e.SortBy(ctx, n, p)
	case *dag.Shuffle:
		return e.Shuffle(ctx, n, p)
	case *dag.Index:
		return e.Index(ctx, n, p)
	case *dag.CompNeighs:
		return e.CompNeighs(ctx, n, p)
	case *dag.Open:
		return e.Open(ctx, n, p)
	case *dag.Close:
		return e.Close(ctx, n, p)
	case *dag.Persist:
		return e.Persist(ctx, n, p)
	default:
		return "", &EmissionError{
			Node:    n.Name,
			Kind:    n.Kind(),
			Backend: ctx.Backend,
			Role:    ctx.Role,
		}
	}
}

// Unsupported implements an Emitter that fails for all kinds.
// Backends embed it and override the kinds they support.
type Unsupported struct {
}

func unsupported(ctx *Context, n *dag.Node) (string, error) {
	return "", &EmissionError{
		Node:    n.Name,
		Kind:    n.Kind(),
		Backend: ctx.Backend,
		Role:    ctx.Role,
	}
}

// Create implements Emitter.Create.
func (u Unsupported) Create(ctx *Context, n *dag.Node, p *dag.Create) (
	string, error) {
	return unsupported(ctx, n)
}

// Project implements Emitter.Project.
func (u Unsupported) Project(ctx *Context, n *dag.Node, p *dag.Project) (
	string, error) {
	return unsupported(ctx, n)
}

// Filter implements Emitter.Filter.
func (u Unsupported) Filter(ctx *Context, n *dag.Node, p *dag.Filter) (
	string, error) {
	return unsupported(ctx, n)
}

// FilterBy implements Emitter.FilterBy.
func (u Unsupported) FilterBy(ctx *Context, n *dag.Node, p *dag.FilterBy) (
	string, error) {
	return unsupported(ctx, n)
}

// Aggregate implements Emitter.Aggregate.
func (u Unsupported) Aggregate(ctx *Context, n *dag.Node,
	p *dag.Aggregate) (string, error) {
	return unsupported(ctx, n)
}

// IndexAggregate implements Emitter.IndexAggregate.
func (u Unsupported) IndexAggregate(ctx *Context, n *dag.Node,
	p *dag.IndexAggregate) (string, error) {
	return unsupported(ctx, n)
}

// Join implements Emitter.Join.
func (u Unsupported) Join(ctx *Context, n *dag.Node, p *dag.Join) (
	string, error) {
	return unsupported(ctx, n)
}

// IndexJoin implements Emitter.IndexJoin.
func (u Unsupported) IndexJoin(ctx *Context, n *dag.Node,
	p *dag.IndexJoin) (string, error) {
	return unsupported(ctx, n)
}

// RevealJoin implements Emitter.RevealJoin.
func (u Unsupported) RevealJoin(ctx *Context, n *dag.Node,
	p *dag.RevealJoin) (string, error) {
	return unsupported(ctx, n)
}

// HybridJoin implements Emitter.HybridJoin.
func (u Unsupported) HybridJoin(ctx *Context, n *dag.Node,
	p *dag.HybridJoin) (string, error) {
	return unsupported(ctx, n)
}

// Concat implements Emitter.Concat.
func (u Unsupported) Concat(ctx *Context, n *dag.Node, p *dag.Concat) (
	string, error) {
	return unsupported(ctx, n)
}

// ConcatCols implements Emitter.ConcatCols.
func (u Unsupported) ConcatCols(ctx *Context, n *dag.Node,
	p *dag.ConcatCols) (string, error) {
	return unsupported(ctx, n)
}

// Multiply implements Emitter.Multiply.
func (u Unsupported) Multiply(ctx *Context, n *dag.Node, p *dag.Multiply) (
	string, error) {
	return unsupported(ctx, n)
}

// Divide implements Emitter.Divide.
func (u Unsupported) Divide(ctx *Context, n *dag.Node, p *dag.Divide) (
	string, error) {
	return unsupported(ctx, n)
}

// Distinct implements Emitter.Distinct.
func (u Unsupported) Distinct(ctx *Context, n *dag.Node, p *dag.Distinct) (
	string, error) {
	return unsupported(ctx, n)
}

// DistinctCount implements Emitter.DistinctCount.
func (u Unsupported) DistinctCount(ctx *Context, n *dag.Node,
	p *dag.DistinctCount) (string, error) {
	return unsupported(ctx, n)
}

// SortBy implements Emitter.SortBy.
func (u Unsupported) SortBy(ctx *Context, n *dag.Node, p *dag.SortBy) (
	string, error) {
	return unsupported(ctx, n)
}

// Shuffle implements Emitter.Shuffle.
func (u Unsupported) Shuffle(ctx *Context, n *dag.Node, p *dag.Shuffle) (
	string, error) {
	return unsupported(ctx, n)
}

// Index implements Emitter.Index.
func (u Unsupported) Index(ctx *Context, n *dag.Node, p *dag.Index) (
	string, error) {
	return unsupported(ctx, n)
}

// CompNeighs implements Emitter.CompNeighs.
func (u Unsupported) CompNeighs(ctx *Context, n *dag.Node,
	p *dag.CompNeighs) (string, error) {
	return unsupported(ctx, n)
}

// Open implements Emitter.Open.
func (u Unsupported) Open(ctx *Context, n *dag.Node, p *dag.Open) (
	string, error) {
	return unsupported(ctx, n)
}

// Close implements Emitter.Close.
func (u Unsupported) Close(ctx *Context, n *dag.Node, p *dag.Close) (
	string, error) {
	return unsupported(ctx, n)
}

// Persist implements Emitter.Persist.
func (u Unsupported) Persist(ctx *Context, n *dag.Node, p *dag.Persist) (
	string, error) {
	return unsupported(ctx, n)
}
