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

// Params hold the kind specific parameters of a node. The set of
// implementations is closed: each operator kind has exactly one
// params type defined in this package.
type Params interface {
	Kind() Kind
	params()
}

// Create defines an input relation held by a party.
type Create struct {
	Columns []rel.Column
	// Holder is the party holding the input file.
	Holder types.PartyID
}

// Project selects and orders input columns.
type Project struct {
	Columns []int
}

// Filter selects the rows where Column Op Operand holds.
type Filter struct {
	Column  int
	Op      CompareOp
	Operand Operand
}

// FilterBy selects the rows of the first parent whose Column value
// appears (or with UseNotIn does not appear) in the FilterColumn of
// the second parent.
type FilterBy struct {
	Column       int
	FilterColumn int
	UseNotIn     bool
}

// Grouping defines an aggregation.
type Grouping struct {
	GroupBy []int
	Func    AggFunc
	Value   int
	Output  string
}

// Aggregate groups the input by the key columns and aggregates the
// value column.
type Aggregate struct {
	Grouping
}

// IndexAggregate is an aggregation where the grouping key is first
// converted into an oblivious index. IndexParty is the party that
// builds the index, or 0 if the index is built obliviously from
// shared keys.
type IndexAggregate struct {
	Grouping
	IndexParty types.PartyID
}

// JoinKeys define the key columns of the left and right parent.
type JoinKeys struct {
	Left  []int
	Right []int
}

// Join is an equi-join of two relations.
type Join struct {
	JoinKeys
}

// IndexJoin is an oblivious join where IndexParty builds an index
// keyed by the blinded join key.
type IndexJoin struct {
	JoinKeys
	IndexParty types.PartyID
}

// RevealJoin reveals the join keys to Recipient, which matches them
// in the clear. Other columns remain hidden.
type RevealJoin struct {
	JoinKeys
	Recipient types.PartyID
}

// HybridJoin reveals the keys that Trusted may see and joins the
// remainder obliviously.
type HybridJoin struct {
	JoinKeys
	Trusted types.PartyID
}

// Concat concatenates relations with identical schemas row-wise.
type Concat struct {
}

// ConcatCols concatenates the columns of aligned relations. With
// UseMult, the row membership is masked jointly by all input parties.
type ConcatCols struct {
	UseMult bool
}

// Arithmetic defines an arithmetic operation. The operation result is
// stored in the Target column. If the column exists, it is replaced,
// otherwise a new column is appended.
type Arithmetic struct {
	Target   string
	Operands []Operand
}

// Multiply multiplies the operands.
type Multiply struct {
	Arithmetic
}

// Divide divides the first operand by the remaining operands.
type Divide struct {
	Arithmetic
}

// Distinct selects the distinct values of the columns.
type Distinct struct {
	Columns []int
}

// DistinctCount counts the distinct values of the column.
type DistinctCount struct {
	Column  int
	Output  string
	UseSort bool
}

// SortBy sorts the relation by the column.
type SortBy struct {
	Column    int
	Ascending bool
}

// Shuffle permutes the rows of the relation.
type Shuffle struct {
}

// Index prepends a row index column.
type Index struct {
	Output string
}

// CompNeighs compares the column values of neighboring rows.
type CompNeighs struct {
	Column int
	Output string
}

// Open reveals the relation to the Target party. With Declassify, the
// reveal is an explicit declassification and it is not checked
// against the column visibility.
type Open struct {
	Target     types.PartyID
	Declassify bool
}

// Close secret-shares the relation between the Holders.
type Close struct {
	Holders types.Parties
}

// Persist stores the relation.
type Persist struct {
}

// Kind implements Params.Kind.
func (p *Create) Kind() Kind { return KCreate }

// Kind implements Params.Kind.
func (p *Project) Kind() Kind { return KProject }

// Kind implements Params.Kind.
func (p *Filter) Kind() Kind { return KFilter }

// Kind implements Params.Kind.
func (p *FilterBy) Kind() Kind { return KFilterBy }

// Kind implements Params.Kind.
func (p *Aggregate) Kind() Kind { return KAggregate }

// Kind implements Params.Kind.
func (p *IndexAggregate) Kind() Kind { return KIndexAggregate }

// Kind implements Params.Kind.
func (p *Join) Kind() Kind { return KJoin }

// Kind implements Params.Kind.
func (p *IndexJoin) Kind() Kind { return KIndexJoin }

// Kind implements Params.Kind.
func (p *RevealJoin) Kind() Kind { return KRevealJoin }

// Kind implements Params.Kind.
func (p *HybridJoin) Kind() Kind { return KHybridJoin }

// Kind implements Params.Kind.
func (p *Concat) Kind() Kind { return KConcat }

// Kind implements Params.Kind.
func (p *ConcatCols) Kind() Kind { return KConcatCols }

// Kind implements Params.Kind.
func (p *Multiply) Kind() Kind { return KMultiply }

// Kind implements Params.Kind.
func (p *Divide) Kind() Kind { return KDivide }

// Kind implements Params.Kind.
func (p *Distinct) Kind() Kind { return KDistinct }

// Kind implements Params.Kind.
func (p *DistinctCount) Kind() Kind { return KDistinctCount }

// Kind implements Params.Kind.
func (p *SortBy) Kind() Kind { return KSortBy }

// Kind implements Params.Kind.
func (p *Shuffle) Kind() Kind { return KShuffle }

// Kind implements Params.Kind.
func (p *Index) Kind() Kind { return KIndex }

// Kind implements Params.Kind.
func (p *CompNeighs) Kind() Kind { return KCompNeighs }

// Kind implements Params.Kind.
func (p *Open) Kind() Kind { return KOpen }

// Kind implements Params.Kind.
func (p *Close) Kind() Kind { return KClose }

// Kind implements Params.Kind.
func (p *Persist) Kind() Kind { return KPersist }

func (p *Create) params()         {}
func (p *Project) params()        {}
func (p *Filter) params()         {}
func (p *FilterBy) params()       {}
func (p *Aggregate) params()      {}
func (p *IndexAggregate) params() {}
func (p *Join) params()           {}
func (p *IndexJoin) params()      {}
func (p *RevealJoin) params()     {}
func (p *HybridJoin) params()     {}
func (p *Concat) params()         {}
func (p *ConcatCols) params()     {}
func (p *Multiply) params()       {}
func (p *Divide) params()         {}
func (p *Distinct) params()       {}
func (p *DistinctCount) params()  {}
func (p *SortBy) params()         {}
func (p *Shuffle) params()        {}
func (p *Index) params()          {}
func (p *CompNeighs) params()     {}
func (p *Open) params()           {}
func (p *Close) params()          {}
func (p *Persist) params()        {}

// Keys returns the join keys of the join family params. The boolean
// result is false if the params are not a join.
func Keys(p Params) (JoinKeys, bool) {
	switch p := p.(type) {
	case *Join:
		return p.JoinKeys, true
	case *IndexJoin:
		return p.JoinKeys, true
	case *RevealJoin:
		return p.JoinKeys, true
	case *HybridJoin:
		return p.JoinKeys, true
	default:
		return JoinKeys{}, false
	}
}

// Groups returns the grouping of the aggregate family params. The
// boolean result is false if the params are not an aggregation.
func Groups(p Params) (Grouping, bool) {
	switch p := p.(type) {
	case *Aggregate:
		return p.Grouping, true
	case *IndexAggregate:
		return p.Grouping, true
	default:
		return Grouping{}, false
	}
}
