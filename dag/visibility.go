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

// derive computes the output relation of a node from its inputs and
// params. The column visibility of the output follows the operator
// kind:
//
//   - structure preserving operators keep the input visibility
//   - Concat unions the visibility of the corresponding columns
//   - ConcatCols keeps the source visibility; with UseMult the rows
//     are masked by all input parties
//   - aggregations and joins see the union of the key and value
//     visibilities
//   - arithmetic results see the union of the column operands
//   - Open reveals the relation to its target only
func derive(name string, ins []*Node, params Params) (*rel.Relation, error) {
	switch p := params.(type) {
	case *Create:
		return deriveCreate(name, p)

	case *Project:
		in := ins[0].Out
		if len(p.Columns) == 0 {
			return nil, schemaErrorf(name, "empty projection")
		}
		if err := checkIndices(name, in, p.Columns...); err != nil {
			return nil, err
		}
		return selectColumns(name, in, p.Columns), nil

	case *Filter:
		in := ins[0].Out
		if err := checkIndices(name, in, p.Column); err != nil {
			return nil, err
		}
		if err := checkOperand(name, in, p.Operand); err != nil {
			return nil, err
		}
		return in.Clone(name), nil

	case *FilterBy:
		in := ins[0].Out
		filter := ins[1].Out
		if err := checkIndices(name, in, p.Column); err != nil {
			return nil, err
		}
		if err := checkIndices(name, filter, p.FilterColumn); err != nil {
			return nil, err
		}
		out := in.Clone(name)
		keyVis := filter.KeyVisibility(p.FilterColumn)
		for idx := range out.Columns {
			out.Columns[idx].Visibility =
				out.Columns[idx].Visibility.Union(keyVis)
		}
		return out, nil

	case *Aggregate:
		return deriveAggregate(name, ins[0].Out, p.Grouping)

	case *IndexAggregate:
		return deriveAggregate(name, ins[0].Out, p.Grouping)

	case *Join:
		return deriveJoin(name, ins[0].Out, ins[1].Out, p.JoinKeys)

	case *IndexJoin:
		return deriveJoin(name, ins[0].Out, ins[1].Out, p.JoinKeys)

	case *RevealJoin:
		return deriveJoin(name, ins[0].Out, ins[1].Out, p.JoinKeys)

	case *HybridJoin:
		return deriveJoin(name, ins[0].Out, ins[1].Out, p.JoinKeys)

	case *Concat:
		return deriveConcat(name, ins)

	case *ConcatCols:
		return deriveConcatCols(name, ins, p.UseMult)

	case *Multiply:
		return deriveArithmetic(name, ins[0].Out, p.Arithmetic, false)

	case *Divide:
		return deriveArithmetic(name, ins[0].Out, p.Arithmetic, true)

	case *Distinct:
		in := ins[0].Out
		if len(p.Columns) == 0 {
			return nil, schemaErrorf(name, "no distinct columns")
		}
		if err := checkIndices(name, in, p.Columns...); err != nil {
			return nil, err
		}
		return selectColumns(name, in, p.Columns), nil

	case *DistinctCount:
		in := ins[0].Out
		if err := checkIndices(name, in, p.Column); err != nil {
			return nil, err
		}
		return derivedColumn(name, in, p.Column, p.Output, "count"), nil

	case *SortBy:
		in := ins[0].Out
		if err := checkIndices(name, in, p.Column); err != nil {
			return nil, err
		}
		return in.Clone(name), nil

	case *Shuffle:
		return ins[0].Out.Clone(name), nil

	case *Index:
		in := ins[0].Out
		output := p.Output
		if len(output) == 0 {
			output = "index"
		}
		if _, err := in.ColumnIndex(output); err == nil {
			return nil, schemaErrorf(name, "column %s already defined",
				output)
		}
		out := &rel.Relation{
			Name:    name,
			RowMask: in.RowMask,
		}
		var vis types.Parties
		for idx := range in.Columns {
			vis = vis.Union(in.EffectiveVisibility(idx))
		}
		out.Columns = append(out.Columns, rel.Column{
			Name:       output,
			Type:       types.TInteger,
			Visibility: vis,
			Owners:     in.Owners(),
		})
		out.Columns = append(out.Columns, in.Columns...)
		return out, nil

	case *CompNeighs:
		in := ins[0].Out
		if err := checkIndices(name, in, p.Column); err != nil {
			return nil, err
		}
		return derivedColumn(name, in, p.Column, p.Output,
			in.Columns[p.Column].Name), nil

	case *Open:
		return deriveOpen(name, ins[0].Out, p)

	case *Close:
		if p.Holders.IsEmpty() {
			return nil, schemaErrorf(name, "no holders")
		}
		out := ins[0].Out.Clone(name)
		for idx := range out.Columns {
			out.Columns[idx].Owners = p.Holders
		}
		return out, nil

	case *Persist:
		return ins[0].Out.Clone(name), nil

	default:
		return nil, schemaErrorf(name, "unknown params %T", params)
	}
}

func deriveCreate(name string, p *Create) (*rel.Relation, error) {
	if p.Holder <= 0 {
		return nil, schemaErrorf(name, "invalid holder party %d", p.Holder)
	}
	if len(p.Columns) == 0 {
		return nil, schemaErrorf(name, "no columns")
	}
	out := &rel.Relation{
		Name: name,
	}
	seen := make(map[string]bool)
	for _, col := range p.Columns {
		if len(col.Name) == 0 {
			return nil, schemaErrorf(name, "unnamed column")
		}
		if seen[col.Name] {
			return nil, schemaErrorf(name, "duplicate column %s", col.Name)
		}
		seen[col.Name] = true
		if col.Type.Undefined() {
			return nil, schemaErrorf(name, "column %s: undefined type",
				col.Name)
		}
		if col.Visibility.IsEmpty() {
			return nil, schemaErrorf(name, "column %s: empty visibility",
				col.Name)
		}
		if col.Owners.IsEmpty() {
			col.Owners = types.NewParties(p.Holder)
		}
		out.Columns = append(out.Columns, col)
	}
	return out, nil
}

func deriveAggregate(name string, in *rel.Relation, g Grouping) (
	*rel.Relation, error) {

	if len(g.GroupBy) == 0 {
		return nil, schemaErrorf(name, "no group by columns")
	}
	if err := checkIndices(name, in, g.GroupBy...); err != nil {
		return nil, err
	}
	if err := checkIndices(name, in, g.Value); err != nil {
		return nil, err
	}
	valueCol := in.Columns[g.Value]
	if g.Func != AggCount && !valueCol.Type.Numeric() {
		return nil, schemaErrorf(name, "%s over non-numeric column %s",
			g.Func, valueCol.Name)
	}
	vis := in.KeyVisibility(g.GroupBy...).Union(in.KeyVisibility(g.Value))
	owners := valueCol.Owners
	for _, idx := range g.GroupBy {
		owners = owners.Union(in.Columns[idx].Owners)
	}
	out := &rel.Relation{
		Name: name,
	}
	for _, idx := range g.GroupBy {
		col := in.Columns[idx]
		col.Visibility = vis
		col.Owners = owners
		out.Columns = append(out.Columns, col)
	}
	output := g.Output
	if len(output) == 0 {
		output = valueCol.Name
	}
	typ := valueCol.Type
	switch g.Func {
	case AggCount:
		typ = types.TInteger
	case AggMean:
		typ = types.TFloat
	}
	out.Columns = append(out.Columns, rel.Column{
		Name:       output,
		Type:       typ,
		Visibility: vis,
		Owners:     owners,
	})
	if err := checkUnique(name, out); err != nil {
		return nil, err
	}
	return out, nil
}

// joinVisibility returns the visibility of the left and right join
// keys.
func joinVisibility(left, right *rel.Relation, keys JoinKeys) (
	types.Parties, types.Parties) {
	return left.KeyVisibility(keys.Left...), right.KeyVisibility(keys.Right...)
}

func deriveJoin(name string, left, right *rel.Relation, keys JoinKeys) (
	*rel.Relation, error) {

	if len(keys.Left) == 0 || len(keys.Left) != len(keys.Right) {
		return nil, schemaErrorf(name, "invalid join keys: left %d, right %d",
			len(keys.Left), len(keys.Right))
	}
	if err := checkIndices(name, left, keys.Left...); err != nil {
		return nil, err
	}
	if err := checkIndices(name, right, keys.Right...); err != nil {
		return nil, err
	}
	rightKey := make(map[int]bool)
	for i := range keys.Left {
		l := left.Columns[keys.Left[i]]
		r := right.Columns[keys.Right[i]]
		if l.Type != r.Type {
			return nil, schemaErrorf(name, "join key type mismatch: %s, %s",
				l, r)
		}
		rightKey[keys.Right[i]] = true
	}
	lvis, rvis := joinVisibility(left, right, keys)
	keyVis := lvis.Union(rvis)
	owners := left.Owners().Union(right.Owners())

	out := &rel.Relation{
		Name: name,
	}
	for idx, col := range left.Columns {
		col.Visibility = left.EffectiveVisibility(idx).Union(keyVis)
		col.Owners = owners
		out.Columns = append(out.Columns, col)
	}
	for idx, col := range right.Columns {
		if rightKey[idx] {
			continue
		}
		col.Visibility = right.EffectiveVisibility(idx).Union(keyVis)
		col.Owners = owners
		out.Columns = append(out.Columns, col)
	}
	if err := checkUnique(name, out); err != nil {
		return nil, err
	}
	return out, nil
}

func deriveConcat(name string, ins []*Node) (*rel.Relation, error) {
	first := ins[0].Out
	for _, in := range ins[1:] {
		if !first.SameSchema(in.Out) {
			return nil, schemaErrorf(name, "mismatched concat schemas: %s, %s",
				first, in.Out)
		}
	}
	out := &rel.Relation{
		Name: name,
	}
	for idx, col := range first.Columns {
		var vis, owners types.Parties
		for _, in := range ins {
			vis = vis.Union(in.Out.EffectiveVisibility(idx))
			owners = owners.Union(in.Out.Columns[idx].Owners)
		}
		col.Visibility = vis
		col.Owners = owners
		out.Columns = append(out.Columns, col)
	}
	return out, nil
}

func deriveConcatCols(name string, ins []*Node, useMult bool) (
	*rel.Relation, error) {

	out := &rel.Relation{
		Name: name,
	}
	var mask types.Parties
	for _, in := range ins {
		for idx, col := range in.Out.Columns {
			col.Visibility = in.Out.EffectiveVisibility(idx)
			out.Columns = append(out.Columns, col)
			if useMult {
				mask = mask.Union(col.Visibility)
			}
		}
		mask = mask.Union(in.Out.RowMask)
	}
	out.RowMask = mask
	if err := checkUnique(name, out); err != nil {
		return nil, err
	}
	return out, nil
}

func deriveArithmetic(name string, in *rel.Relation, a Arithmetic,
	divide bool) (*rel.Relation, error) {

	if len(a.Target) == 0 {
		return nil, schemaErrorf(name, "no target column")
	}
	if len(a.Operands) == 0 || (divide && len(a.Operands) < 2) {
		return nil, schemaErrorf(name, "invalid number of operands: %d",
			len(a.Operands))
	}
	var vis, owners types.Parties
	var columns int
	typ := types.TInteger
	if divide {
		typ = types.TFloat
	}
	for idx, op := range a.Operands {
		if err := checkOperand(name, in, op); err != nil {
			return nil, err
		}
		switch op := op.(type) {
		case ColumnRef:
			col := in.Columns[op]
			if !col.Type.Numeric() {
				return nil, schemaErrorf(name,
					"arithmetic over non-numeric column %s", col.Name)
			}
			if col.Type == types.TFloat {
				typ = types.TFloat
			}
			vis = vis.Union(in.EffectiveVisibility(int(op)))
			owners = owners.Union(col.Owners)
			columns++

		case Scalar:
			if divide && idx > 0 && op == 0 {
				return nil, schemaErrorf(name, "division by zero")
			}
			if !op.IsInt() {
				typ = types.TFloat
			}
		}
	}
	if columns == 0 {
		return nil, schemaErrorf(name, "no column operands")
	}
	col := rel.Column{
		Name:       a.Target,
		Type:       typ,
		Visibility: vis,
		Owners:     owners,
	}
	out := in.Clone(name)
	idx, err := in.ColumnIndex(a.Target)
	if err == nil {
		out.Columns[idx] = col
	} else {
		out.Columns = append(out.Columns, col)
	}
	return out, nil
}

func deriveOpen(name string, in *rel.Relation, p *Open) (
	*rel.Relation, error) {

	if p.Target <= 0 {
		return nil, schemaErrorf(name, "invalid target party %d", p.Target)
	}
	if !p.Declassify {
		for idx, col := range in.Columns {
			vis := in.EffectiveVisibility(idx)
			if !vis.Contains(p.Target) {
				return nil, &VisibilityError{
					Node:       name,
					Party:      p.Target,
					Column:     col.Name,
					Visibility: vis,
				}
			}
		}
	}
	target := types.NewParties(p.Target)
	out := &rel.Relation{
		Name: name,
	}
	for _, col := range in.Columns {
		col.Visibility = target
		col.Owners = target
		out.Columns = append(out.Columns, col)
	}
	return out, nil
}

func selectColumns(name string, in *rel.Relation, indices []int) *rel.Relation {
	out := &rel.Relation{
		Name:    name,
		RowMask: in.RowMask,
	}
	for _, idx := range indices {
		out.Columns = append(out.Columns, in.Columns[idx])
	}
	return out
}

func derivedColumn(name string, in *rel.Relation, idx int,
	output, def string) *rel.Relation {

	if len(output) == 0 {
		output = def
	}
	return &rel.Relation{
		Name: name,
		Columns: []rel.Column{
			{
				Name:       output,
				Type:       types.TInteger,
				Visibility: in.EffectiveVisibility(idx),
				Owners:     in.Columns[idx].Owners,
			},
		},
	}
}

func checkIndices(name string, in *rel.Relation, indices ...int) error {
	for _, idx := range indices {
		if err := in.CheckIndex(idx); err != nil {
			return &SchemaError{
				Node: name,
				Msg:  err.Error(),
			}
		}
	}
	return nil
}

func checkOperand(name string, in *rel.Relation, op Operand) error {
	switch op := op.(type) {
	case ColumnRef:
		return checkIndices(name, in, int(op))
	case Scalar:
		return nil
	default:
		return schemaErrorf(name, "invalid operand %v", op)
	}
}

func checkUnique(name string, out *rel.Relation) error {
	seen := make(map[string]bool)
	for _, col := range out.Columns {
		if seen[col.Name] {
			return schemaErrorf(name, "duplicate output column %s", col.Name)
		}
		seen[col.Name] = true
	}
	return nil
}
