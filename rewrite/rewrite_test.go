//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package rewrite

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/dag"
	"github.com/markkurossi/conclave/rel"
	"github.com/markkurossi/conclave/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vis(ids ...types.PartyID) []types.PartyID {
	return ids
}

func joinGraph(t *testing.T, lvis, rvis []types.PartyID) (*dag.Graph,
	dag.NodeID) {

	g := dag.New(nil)
	left, err := g.Create("left", []rel.Column{
		dag.DefCol("a", types.TInteger, lvis),
		dag.DefCol("b", types.TInteger, lvis),
	}, lvis[0])
	require.NoError(t, err)
	right, err := g.Create("right", []rel.Column{
		dag.DefCol("c", types.TInteger, rvis),
		dag.DefCol("d", types.TInteger, rvis),
	}, rvis[0])
	require.NoError(t, err)
	j, err := g.Join("joined", left, right, []string{"a"}, []string{"c"})
	require.NoError(t, err)
	return g, j
}

var joinTests = []struct {
	lvis  []types.PartyID
	rvis  []types.PartyID
	leaky bool
	kind  dag.Kind
}{
	{vis(1), vis(1), false, dag.KJoin},
	{vis(1), vis(1), true, dag.KJoin},
	{vis(1), vis(2), true, dag.KRevealJoin},
	{vis(1), vis(2), false, dag.KIndexJoin},
	{vis(1), vis(1, 2), true, dag.KIndexJoin},
	{vis(1, 2), vis(2), false, dag.KIndexJoin},
	{vis(1, 2), vis(1, 2), false, dag.KHybridJoin},
	{vis(1, 2, 3), vis(2, 3), true, dag.KHybridJoin},
}

func TestJoinRewrite(t *testing.T) {
	for idx, test := range joinTests {
		g, j := joinGraph(t, test.lvis, test.rvis)
		before := g.Node(j).Out

		decisions, err := Rewrite(g, Policy{
			UseLeakyOps: test.leaky,
		})
		require.NoError(t, err, "test %d", idx)
		require.Len(t, decisions, 1)

		n := g.Node(j)
		assert.Equal(t, test.kind, n.Kind(), "test %d", idx)
		assert.Equal(t, dag.KJoin, decisions[0].From)
		assert.Equal(t, test.kind, decisions[0].To)
		assert.Equal(t, test.kind == dag.KJoin, decisions[0].Kept())
		assert.True(t, before.Equal(n.Out), "test %d: output changed", idx)
	}
}

// Join keys private to different parties.
func TestRevealJoinPolicy(t *testing.T) {
	g, j := joinGraph(t, vis(1), vis(2))
	_, err := Rewrite(g, Policy{UseLeakyOps: true, Coordinator: 2})
	require.NoError(t, err)
	p, ok := g.Node(j).Params.(*dag.RevealJoin)
	require.True(t, ok)
	require.Equal(t, types.PartyID(2), p.Recipient)

	g, j = joinGraph(t, vis(1), vis(2))
	_, err = Rewrite(g, Policy{UseLeakyOps: true, Coordinator: 3})
	require.NoError(t, err)
	p, ok = g.Node(j).Params.(*dag.RevealJoin)
	require.True(t, ok)
	require.Equal(t, types.PartyID(1), p.Recipient)

	g, j = joinGraph(t, vis(1), vis(2))
	_, err = Rewrite(g, Policy{UseLeakyOps: false})
	require.NoError(t, err)
	kind := g.Node(j).Kind()
	require.NotEqual(t, dag.KRevealJoin, kind)
	require.Contains(t, []dag.Kind{dag.KIndexJoin, dag.KHybridJoin}, kind)

	ij, ok := g.Node(j).Params.(*dag.IndexJoin)
	require.True(t, ok)
	require.Equal(t, types.PartyID(1), ij.IndexParty)
}

func TestUnsupportedProtocol(t *testing.T) {
	for _, leaky := range []bool{false, true} {
		g, j := joinGraph(t, vis(1), vis(2, 3))
		_, err := Rewrite(g, Policy{UseLeakyOps: leaky})

		var upe *UnsupportedProtocolError
		require.True(t, errors.As(err, &upe))
		require.Equal(t, "joined", upe.Node)
		require.Equal(t, dag.KJoin, upe.Kind)
		require.Contains(t, err.Error(), "joined")
		require.Equal(t, dag.KJoin, g.Node(j).Kind())
	}
}

// Concatenated inputs aggregated by a key visible to
// both parties.
func TestAggregateRewrite(t *testing.T) {
	r := require.New(t)
	g := dag.New(nil)

	in1, err := g.Create("in1", []rel.Column{
		dag.DefCol("a", types.TInteger, vis(1)),
	}, 1)
	r.NoError(err)
	in2, err := g.Create("in2", []rel.Column{
		dag.DefCol("a", types.TInteger, vis(2)),
	}, 2)
	r.NoError(err)
	cat, err := g.Concat("cat", in1, in2)
	r.NoError(err)
	agg, err := g.Aggregate("agg", cat, []string{"a"}, "count", "a", "n")
	r.NoError(err)
	local, err := g.Aggregate("local", in1, []string{"a"}, "sum", "a", "s")
	r.NoError(err)

	decisions, err := Rewrite(g, Policy{UseLeakyOps: false})
	r.NoError(err)
	r.Len(decisions, 2)

	r.Equal(dag.KIndexAggregate, g.Node(agg).Kind())
	p := g.Node(agg).Params.(*dag.IndexAggregate)
	r.Equal(types.PartyID(0), p.IndexParty)
	r.Equal("{1,2}", g.Node(agg).Out.Columns[0].Visibility.String())

	r.Equal(dag.KAggregate, g.Node(local).Kind())
	r.True(decisions[1].Kept())
}

func TestAggregateIndexParty(t *testing.T) {
	r := require.New(t)
	g := dag.New(nil)

	in, err := g.Create("in", []rel.Column{
		dag.DefCol("k", types.TInteger, vis(1)),
		dag.DefCol("v", types.TInteger, vis(2)),
	}, 1)
	r.NoError(err)
	agg, err := g.Aggregate("agg", in, []string{"k"}, "sum", "v", "")
	r.NoError(err)

	_, err = Rewrite(g, Policy{})
	r.NoError(err)
	p, ok := g.Node(agg).Params.(*dag.IndexAggregate)
	r.True(ok)
	r.Equal(types.PartyID(1), p.IndexParty)
}

func TestDeterminism(t *testing.T) {
	build := func() *dag.Graph {
		g := dag.New(nil)
		a, err := g.Create("a", []rel.Column{
			dag.DefCol("k", types.TInteger, vis(1)),
		}, 1)
		require.NoError(t, err)
		b, err := g.Create("b", []rel.Column{
			dag.DefCol("k", types.TInteger, vis(2)),
		}, 2)
		require.NoError(t, err)
		c, err := g.Create("c", []rel.Column{
			dag.DefCol("x", types.TInteger, vis(2)),
		}, 2)
		require.NoError(t, err)
		cat, err := g.Concat("cat", a, b)
		require.NoError(t, err)
		j, err := g.Join("j", cat, c, []string{"k"}, []string{"x"})
		require.NoError(t, err)
		_, err = g.Aggregate("agg", j, []string{"k"}, "count", "k", "n")
		require.NoError(t, err)
		return g
	}
	g1 := build()
	g2 := build()
	d1, err := Rewrite(g1, Policy{UseLeakyOps: true})
	require.NoError(t, err)
	d2, err := Rewrite(g2, Policy{UseLeakyOps: true})
	require.NoError(t, err)

	require.Equal(t, d1, d2)
	require.Equal(t, g1.TopSort(), g2.TopSort())
	require.Equal(t, dag.KIndexJoin, d1[0].To)
	require.Equal(t, dag.KIndexAggregate, d1[1].To)
}
