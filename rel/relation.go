//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

// Package rel implements the relation and column model of workflow
// datasets.
package rel

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/types"
)

// ErrColumnNotFound is returned when a column lookup fails.
var ErrColumnNotFound = errors.New("column not found")

// Column describes a relation column.
type Column struct {
	Name string
	Type types.DataType
	// Visibility is the set of parties allowed to see the column
	// values in the clear.
	Visibility types.Parties
	// Owners is the set of parties physically holding the column
	// data. It is tracked separately and never merged into the
	// visibility.
	Owners types.Parties
}

func (col Column) String() string {
	return fmt.Sprintf("%s:%s%s", col.Name, col.Type.ShortString(),
		col.Visibility)
}

// Relation describes a dataset: its name and its ordered columns.
type Relation struct {
	Name    string
	Columns []Column
	// RowMask is the set of parties jointly masking the row
	// membership of the relation. It is empty for relations whose
	// row membership follows the column visibility.
	RowMask types.Parties
}

// Clone returns a deep copy of the relation under a new name.
func (r *Relation) Clone(name string) *Relation {
	result := &Relation{
		Name:    name,
		Columns: make([]Column, len(r.Columns)),
		RowMask: r.RowMask,
	}
	copy(result.Columns, r.Columns)
	return result
}

// Width returns the number of columns.
func (r *Relation) Width() int {
	return len(r.Columns)
}

// ColumnIndex returns the index of the named column.
func (r *Relation) ColumnIndex(name string) (int, error) {
	for idx, col := range r.Columns {
		if col.Name == name {
			return idx, nil
		}
	}
	return -1, errors.Wrapf(ErrColumnNotFound, "relation %s: column %s",
		r.Name, name)
}

// ColumnIndices resolves the named columns.
func (r *Relation) ColumnIndices(names ...string) ([]int, error) {
	var result []int
	for _, name := range names {
		idx, err := r.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		result = append(result, idx)
	}
	return result, nil
}

// CheckIndex verifies that the column index is in range.
func (r *Relation) CheckIndex(idx int) error {
	if idx < 0 || idx >= len(r.Columns) {
		return errors.Newf("relation %s: column index %d out of range 0...%d",
			r.Name, idx, len(r.Columns)-1)
	}
	return nil
}

// EffectiveVisibility returns the visibility of column idx. When the
// relation has a row mask, the rows are secret-shared between the
// masking parties and the column is treated as visible to all of
// them jointly.
func (r *Relation) EffectiveVisibility(idx int) types.Parties {
	vis := r.Columns[idx].Visibility
	if r.RowMask.IsEmpty() {
		return vis
	}
	return vis.Union(r.RowMask)
}

// KeyVisibility returns the visibility of a key consisting of the
// argument columns: the union of their effective visibilities.
func (r *Relation) KeyVisibility(indices ...int) types.Parties {
	var result types.Parties
	for _, idx := range indices {
		result = result.Union(r.EffectiveVisibility(idx))
	}
	return result
}

// AllVisibility returns the union of all column visibilities.
func (r *Relation) AllVisibility() types.Parties {
	var result types.Parties
	for _, col := range r.Columns {
		result = result.Union(col.Visibility)
	}
	return result
}

// Owners returns the union of all column owners.
func (r *Relation) Owners() types.Parties {
	var result types.Parties
	for _, col := range r.Columns {
		result = result.Union(col.Owners)
	}
	return result
}

// SameSchema tests if the relations have the same column names and
// types in the same order.
func (r *Relation) SameSchema(o *Relation) bool {
	if len(r.Columns) != len(o.Columns) {
		return false
	}
	for idx, col := range r.Columns {
		if col.Name != o.Columns[idx].Name || col.Type != o.Columns[idx].Type {
			return false
		}
	}
	return true
}

// Equal tests if the relations are identical.
func (r *Relation) Equal(o *Relation) bool {
	if r.Name != o.Name || !r.RowMask.Equal(o.RowMask) ||
		len(r.Columns) != len(o.Columns) {
		return false
	}
	for idx, col := range r.Columns {
		ocol := o.Columns[idx]
		if col.Name != ocol.Name || col.Type != ocol.Type ||
			!col.Visibility.Equal(ocol.Visibility) ||
			!col.Owners.Equal(ocol.Owners) {
			return false
		}
	}
	return true
}

// ColumnNames returns the column names in order.
func (r *Relation) ColumnNames() []string {
	var result []string
	for _, col := range r.Columns {
		result = append(result, col.Name)
	}
	return result
}

func (r *Relation) String() string {
	var parts []string
	for _, col := range r.Columns {
		parts = append(parts, col.String())
	}
	result := fmt.Sprintf("%s(%s)", r.Name, strings.Join(parts, ", "))
	if !r.RowMask.IsEmpty() {
		result += "#" + r.RowMask.String()
	}
	return result
}
