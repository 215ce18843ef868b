//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package dag

import (
	"fmt"
)

// Kind specifies the operator kind of a node.
type Kind int

// Operator kinds.
const (
	KCreate Kind = iota
	KProject
	KFilter
	KFilterBy
	KAggregate
	KIndexAggregate
	KJoin
	KIndexJoin
	KRevealJoin
	KHybridJoin
	KConcat
	KConcatCols
	KMultiply
	KDivide
	KDistinct
	KDistinctCount
	KSortBy
	KShuffle
	KIndex
	KCompNeighs
	KOpen
	KClose
	KPersist
	numKinds
)

// Kinds define the kind names.
var Kinds = map[Kind]string{
	KCreate:         "Create",
	KProject:        "Project",
	KFilter:         "Filter",
	KFilterBy:       "FilterBy",
	KAggregate:      "Aggregate",
	KIndexAggregate: "IndexAggregate",
	KJoin:           "Join",
	KIndexJoin:      "IndexJoin",
	KRevealJoin:     "RevealJoin",
	KHybridJoin:     "HybridJoin",
	KConcat:         "Concat",
	KConcatCols:     "ConcatCols",
	KMultiply:       "Multiply",
	KDivide:         "Divide",
	KDistinct:       "Distinct",
	KDistinctCount:  "DistinctCount",
	KSortBy:         "SortBy",
	KShuffle:        "Shuffle",
	KIndex:          "Index",
	KCompNeighs:     "CompNeighs",
	KOpen:           "Open",
	KClose:          "Close",
	KPersist:        "Persist",
}

func (k Kind) String() string {
	name, ok := Kinds[k]
	if ok {
		return name
	}
	return fmt.Sprintf("{Kind %d}", k)
}

// Protocol tests if the kind is a protocol variant produced by the
// rewrite pass. Protocol variants always run under MPC.
func (k Kind) Protocol() bool {
	switch k {
	case KIndexAggregate, KIndexJoin, KRevealJoin, KHybridJoin:
		return true
	default:
		return false
	}
}

// Sink tests if the kind terminates a computation.
func (k Kind) Sink() bool {
	return k == KOpen || k == KPersist
}

// arity returns the minimum and maximum number of parents for the
// kind. The maximum -1 means no limit.
func (k Kind) arity() (int, int) {
	switch k {
	case KCreate:
		return 0, 0
	case KConcat, KConcatCols:
		return 2, -1
	case KJoin, KIndexJoin, KRevealJoin, KHybridJoin, KFilterBy:
		return 2, 2
	default:
		return 1, 1
	}
}

// AggFunc specifies an aggregation function.
type AggFunc int

// Aggregation functions.
const (
	AggSum AggFunc = iota
	AggCount
	AggMean
	AggMin
	AggMax
)

// AggFuncs define the aggregation function names.
var AggFuncs = map[string]AggFunc{
	"sum":   AggSum,
	"count": AggCount,
	"mean":  AggMean,
	"min":   AggMin,
	"max":   AggMax,
}

func (f AggFunc) String() string {
	for k, v := range AggFuncs {
		if v == f {
			return k
		}
	}
	return fmt.Sprintf("{AggFunc %d}", f)
}

// ParseAggFunc parses the aggregation function name. The operator
// "+" is accepted as an alias for sum.
func ParseAggFunc(name string) (AggFunc, bool) {
	if name == "+" {
		return AggSum, true
	}
	f, ok := AggFuncs[name]
	return f, ok
}

// CompareOp specifies a filter comparison operator.
type CompareOp int

// Comparison operators.
const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// CompareOps define the comparison operator names.
var CompareOps = map[string]CompareOp{
	"==": OpEq,
	"!=": OpNe,
	"<":  OpLt,
	"<=": OpLe,
	">":  OpGt,
	">=": OpGe,
}

func (op CompareOp) String() string {
	for k, v := range CompareOps {
		if v == op {
			return k
		}
	}
	return fmt.Sprintf("{CompareOp %d}", op)
}

// ParseCompareOp parses the comparison operator.
func ParseCompareOp(name string) (CompareOp, bool) {
	op, ok := CompareOps[name]
	return op, ok
}
