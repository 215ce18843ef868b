//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package dag

import (
	"fmt"
	"strconv"
)

// Operand is an arithmetic or comparison operand: either a column
// reference (ColumnRef) or a public constant (Scalar).
type Operand interface {
	isOperand()
	String() string
}

// ColumnRef references a column of the input relation by index.
type ColumnRef int

func (c ColumnRef) isOperand() {}

func (c ColumnRef) String() string {
	return fmt.Sprintf("$%d", int(c))
}

// Scalar is a public constant operand.
type Scalar float64

func (s Scalar) isOperand() {}

func (s Scalar) String() string {
	return strconv.FormatFloat(float64(s), 'g', -1, 64)
}

// IsInt tests if the scalar has an integer value.
func (s Scalar) IsInt() bool {
	return float64(s) == float64(int64(s))
}
