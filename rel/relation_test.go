//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package rel

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRelation() *Relation {
	return &Relation{
		Name: "in1",
		Columns: []Column{
			{
				Name:       "a",
				Type:       types.TInteger,
				Visibility: types.NewParties(1),
				Owners:     types.NewParties(1),
			},
			{
				Name:       "b",
				Type:       types.TFloat,
				Visibility: types.NewParties(1, 2),
				Owners:     types.NewParties(1),
			},
		},
	}
}

func TestColumnIndex(t *testing.T) {
	r := require.New(t)
	in := testRelation()

	idx, err := in.ColumnIndex("b")
	r.NoError(err)
	r.Equal(1, idx)

	_, err = in.ColumnIndex("c")
	r.Error(err)
	r.True(errors.Is(err, ErrColumnNotFound))

	indices, err := in.ColumnIndices("b", "a")
	r.NoError(err)
	r.Equal([]int{1, 0}, indices)

	r.NoError(in.CheckIndex(0))
	r.Error(in.CheckIndex(2))
	r.Error(in.CheckIndex(-1))
}

func TestVisibility(t *testing.T) {
	in := testRelation()

	assert.Equal(t, "{1}", in.EffectiveVisibility(0).String())
	assert.Equal(t, "{1,2}", in.KeyVisibility(0, 1).String())
	assert.Equal(t, "{1,2}", in.AllVisibility().String())
	assert.Equal(t, "{1}", in.Owners().String())

	masked := in.Clone("masked")
	masked.RowMask = types.NewParties(1, 3)
	assert.Equal(t, "{1,3}", masked.EffectiveVisibility(0).String())
	assert.Equal(t, "{1}", in.EffectiveVisibility(0).String())
	assert.Equal(t, "masked(a:i{1}, b:f{1,2})#{1,3}", masked.String())
}

func TestSameSchema(t *testing.T) {
	a := testRelation()
	b := a.Clone("in2")
	b.Columns[0].Visibility = types.NewParties(2)
	assert.True(t, a.SameSchema(b))
	assert.Equal(t, "{1}", a.Columns[0].Visibility.String())

	b.Columns[1].Type = types.TInteger
	assert.False(t, a.SameSchema(b))
	assert.Equal(t, []string{"a", "b"}, a.ColumnNames())
}
