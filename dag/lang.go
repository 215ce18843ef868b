//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package dag

import (
	"github.com/markkurossi/conclave/rel"
	"github.com/markkurossi/conclave/types"
)

// Term is an operand given by column name or as a public constant.
type Term struct {
	Column string
	Value  Scalar
	scalar bool
}

// Col creates a column term.
func Col(name string) Term {
	return Term{
		Column: name,
	}
}

// Val creates a scalar term.
func Val(v float64) Term {
	return Term{
		Value:  Scalar(v),
		scalar: true,
	}
}

// IsScalar tests if the term is a scalar.
func (t Term) IsScalar() bool {
	return t.scalar
}

// DefCol defines a create column. The owners default to the holder
// of the created relation.
func DefCol(name string, typ types.DataType, visibility []types.PartyID,
	owners ...types.PartyID) rel.Column {

	return rel.Column{
		Name:       name,
		Type:       typ,
		Visibility: types.NewParties(visibility...),
		Owners:     types.NewParties(owners...),
	}
}

func (g *Graph) columns(name string, in NodeID, columns ...string) (
	[]int, error) {

	n := g.Node(in)
	if n == nil {
		return nil, schemaErrorf(name, "unknown input node %s", in)
	}
	indices, err := n.Out.ColumnIndices(columns...)
	if err != nil {
		return nil, &SchemaError{
			Node: name,
			Msg:  err.Error(),
		}
	}
	return indices, nil
}

func (g *Graph) column(name string, in NodeID, column string) (int, error) {
	indices, err := g.columns(name, in, column)
	if err != nil {
		return 0, err
	}
	return indices[0], nil
}

func (g *Graph) operand(name string, in NodeID, t Term) (Operand, error) {
	if t.scalar {
		return t.Value, nil
	}
	idx, err := g.column(name, in, t.Column)
	if err != nil {
		return nil, err
	}
	return ColumnRef(idx), nil
}

// Create adds an input relation held by the party.
func (g *Graph) Create(name string, columns []rel.Column,
	holder types.PartyID) (NodeID, error) {

	return g.AddNode(name, nil, &Create{
		Columns: columns,
		Holder:  holder,
	})
}

// Project selects the named columns of the input.
func (g *Graph) Project(name string, in NodeID, columns ...string) (
	NodeID, error) {

	indices, err := g.columns(name, in, columns...)
	if err != nil {
		return 0, err
	}
	return g.AddNode(name, []NodeID{in}, &Project{
		Columns: indices,
	})
}

// Filter selects the rows where the column compares to the operand.
func (g *Graph) Filter(name string, in NodeID, column, op string,
	operand Term) (NodeID, error) {

	cmp, ok := ParseCompareOp(op)
	if !ok {
		return 0, schemaErrorf(name, "unknown comparison operator %s", op)
	}
	idx, err := g.column(name, in, column)
	if err != nil {
		return 0, err
	}
	o, err := g.operand(name, in, operand)
	if err != nil {
		return 0, err
	}
	return g.AddNode(name, []NodeID{in}, &Filter{
		Column:  idx,
		Op:      cmp,
		Operand: o,
	})
}

// FilterBy selects the rows of in whose column value is (or with
// useNotIn is not) in the filter relation's column.
func (g *Graph) FilterBy(name string, in NodeID, column string,
	filter NodeID, filterColumn string, useNotIn bool) (NodeID, error) {

	idx, err := g.column(name, in, column)
	if err != nil {
		return 0, err
	}
	fidx, err := g.column(name, filter, filterColumn)
	if err != nil {
		return 0, err
	}
	return g.AddNode(name, []NodeID{in, filter}, &FilterBy{
		Column:       idx,
		FilterColumn: fidx,
		UseNotIn:     useNotIn,
	})
}

// Aggregate groups the input by the key columns and aggregates the
// value column with the function.
func (g *Graph) Aggregate(name string, in NodeID, groupBy []string,
	fn, value, output string) (NodeID, error) {

	f, ok := ParseAggFunc(fn)
	if !ok {
		return 0, schemaErrorf(name, "unknown aggregation function %s", fn)
	}
	keys, err := g.columns(name, in, groupBy...)
	if err != nil {
		return 0, err
	}
	v, err := g.column(name, in, value)
	if err != nil {
		return 0, err
	}
	return g.AddNode(name, []NodeID{in}, &Aggregate{
		Grouping: Grouping{
			GroupBy: keys,
			Func:    f,
			Value:   v,
			Output:  output,
		},
	})
}

// Join joins the left and right relations on the key columns.
func (g *Graph) Join(name string, left, right NodeID,
	leftKeys, rightKeys []string) (NodeID, error) {

	l, err := g.columns(name, left, leftKeys...)
	if err != nil {
		return 0, err
	}
	r, err := g.columns(name, right, rightKeys...)
	if err != nil {
		return 0, err
	}
	return g.AddNode(name, []NodeID{left, right}, &Join{
		JoinKeys: JoinKeys{
			Left:  l,
			Right: r,
		},
	})
}

// Concat concatenates the input relations row-wise.
func (g *Graph) Concat(name string, inputs ...NodeID) (NodeID, error) {
	return g.AddNode(name, inputs, &Concat{})
}

// ConcatCols concatenates the columns of the input relations.
func (g *Graph) ConcatCols(name string, inputs []NodeID, useMult bool) (
	NodeID, error) {

	return g.AddNode(name, inputs, &ConcatCols{
		UseMult: useMult,
	})
}

func (g *Graph) arithmetic(name string, in NodeID, target string,
	terms []Term) (Arithmetic, error) {

	a := Arithmetic{
		Target: target,
	}
	for _, t := range terms {
		o, err := g.operand(name, in, t)
		if err != nil {
			return a, err
		}
		a.Operands = append(a.Operands, o)
	}
	return a, nil
}

// Multiply stores the product of the operands into the target column.
func (g *Graph) Multiply(name string, in NodeID, target string,
	operands ...Term) (NodeID, error) {

	a, err := g.arithmetic(name, in, target, operands)
	if err != nil {
		return 0, err
	}
	return g.AddNode(name, []NodeID{in}, &Multiply{
		Arithmetic: a,
	})
}

// Divide stores the quotient of the operands into the target column.
func (g *Graph) Divide(name string, in NodeID, target string,
	operands ...Term) (NodeID, error) {

	a, err := g.arithmetic(name, in, target, operands)
	if err != nil {
		return 0, err
	}
	return g.AddNode(name, []NodeID{in}, &Divide{
		Arithmetic: a,
	})
}

// Distinct selects the distinct values of the columns.
func (g *Graph) Distinct(name string, in NodeID, columns ...string) (
	NodeID, error) {

	indices, err := g.columns(name, in, columns...)
	if err != nil {
		return 0, err
	}
	return g.AddNode(name, []NodeID{in}, &Distinct{
		Columns: indices,
	})
}

// DistinctCount counts the distinct values of the column.
func (g *Graph) DistinctCount(name string, in NodeID, column,
	output string, useSort bool) (NodeID, error) {

	idx, err := g.column(name, in, column)
	if err != nil {
		return 0, err
	}
	return g.AddNode(name, []NodeID{in}, &DistinctCount{
		Column:  idx,
		Output:  output,
		UseSort: useSort,
	})
}

// SortBy sorts the input by the column.
func (g *Graph) SortBy(name string, in NodeID, column string,
	ascending bool) (NodeID, error) {

	idx, err := g.column(name, in, column)
	if err != nil {
		return 0, err
	}
	return g.AddNode(name, []NodeID{in}, &SortBy{
		Column:    idx,
		Ascending: ascending,
	})
}

// Shuffle permutes the input rows.
func (g *Graph) Shuffle(name string, in NodeID) (NodeID, error) {
	return g.AddNode(name, []NodeID{in}, &Shuffle{})
}

// Index prepends a row index column.
func (g *Graph) Index(name string, in NodeID, output string) (
	NodeID, error) {

	return g.AddNode(name, []NodeID{in}, &Index{
		Output: output,
	})
}

// CompNeighs compares the column values of neighboring rows.
func (g *Graph) CompNeighs(name string, in NodeID, column, output string) (
	NodeID, error) {

	idx, err := g.column(name, in, column)
	if err != nil {
		return 0, err
	}
	return g.AddNode(name, []NodeID{in}, &CompNeighs{
		Column: idx,
		Output: output,
	})
}

// Open reveals the input to the target party.
func (g *Graph) Open(name string, in NodeID, target types.PartyID) (
	NodeID, error) {

	return g.AddNode(name, []NodeID{in}, &Open{
		Target: target,
	})
}

// Collect is an alias for Open.
func (g *Graph) Collect(name string, in NodeID, target types.PartyID) (
	NodeID, error) {
	return g.Open(name, in, target)
}

// Declassify reveals the input to the target party regardless of the
// column visibility. Declassifications are logged.
func (g *Graph) Declassify(name string, in NodeID, target types.PartyID) (
	NodeID, error) {

	return g.AddNode(name, []NodeID{in}, &Open{
		Target:     target,
		Declassify: true,
	})
}

// Close secret-shares the input between the holders.
func (g *Graph) Close(name string, in NodeID, holders ...types.PartyID) (
	NodeID, error) {

	return g.AddNode(name, []NodeID{in}, &Close{
		Holders: types.NewParties(holders...),
	})
}

// Persist stores the input.
func (g *Graph) Persist(name string, in NodeID) (NodeID, error) {
	return g.AddNode(name, []NodeID{in}, &Persist{})
}
