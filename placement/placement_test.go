//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package placement

import (
	"testing"

	"github.com/markkurossi/conclave/dag"
	"github.com/markkurossi/conclave/rel"
	"github.com/markkurossi/conclave/rewrite"
	"github.com/markkurossi/conclave/types"
	"github.com/stretchr/testify/require"
)

func create(t *testing.T, g *dag.Graph, name string,
	party types.PartyID) dag.NodeID {

	id, err := g.Create(name, []rel.Column{
		dag.DefCol("a", types.TInteger, []types.PartyID{party}),
		dag.DefCol("b", types.TInteger, []types.PartyID{party}),
	}, party)
	require.NoError(t, err)
	return id
}

func TestPlaceConcatAggregate(t *testing.T) {
	r := require.New(t)
	g := dag.New(nil)

	in1 := create(t, g, "in1", 1)
	in2 := create(t, g, "in2", 2)
	local, err := g.Project("local", in1, "a")
	r.NoError(err)
	cat, err := g.Concat("cat", in1, in2)
	r.NoError(err)
	agg, err := g.Aggregate("agg", cat, []string{"a"}, "sum", "b", "")
	r.NoError(err)
	out, err := g.Open("out", agg, 1)
	r.NoError(err)
	post, err := g.Multiply("post", out, "b", dag.Col("b"), dag.Val(2))
	r.NoError(err)
	_, err = rewrite.Rewrite(g, rewrite.Policy{})
	r.NoError(err)

	p, err := Place(g)
	r.NoError(err)

	mpc := MPC(types.NewParties(1, 2))
	r.Equal(Local(1), p.Domains[in1])
	r.Equal(Local(1), p.Domains[local])
	r.Equal(mpc, p.Domains[in2])
	r.Equal(mpc, p.Domains[cat])
	r.Equal(mpc, p.Domains[agg])
	r.Equal(mpc, p.Domains[out])
	r.Equal(Local(1), p.Domains[post])

	r.Equal(0, p.Stages[in1])
	r.Equal(1, p.Stages[in2])
	r.Equal(1, p.Stages[cat])
	r.Equal(1, p.Stages[out])
	r.Equal(2, p.Stages[post])

	r.Len(p.Groups, 3)
	r.Equal([]dag.NodeID{in1, local}, p.Groups[0].Nodes)
	r.Equal([]dag.NodeID{in2, cat, agg, out}, p.Groups[1].Nodes)
	r.Equal([]int{0}, p.Groups[1].Deps)
	r.Equal([]dag.NodeID{in1}, p.Groups[1].Inputs)
	r.Equal([]dag.NodeID{out}, p.Groups[1].Outputs)
	r.Equal([]dag.NodeID{in1, local}, p.Groups[0].Outputs)
	r.Equal([]int{1}, p.Groups[2].Deps)
	r.Equal("2-local1", p.GroupOf(post).String())
	r.Equal("mpc1_2", mpc.String())
}

func TestPlaceInputsShared(t *testing.T) {
	r := require.New(t)
	g := dag.New(nil)

	in1 := create(t, g, "in1", 1)
	in2 := create(t, g, "in2", 2)
	cat, err := g.Concat("cat", in1, in2)
	r.NoError(err)
	_, err = g.Open("out", cat, 2)
	r.NoError(err)

	p, err := Place(g)
	r.NoError(err)
	r.Len(p.Groups, 1)
	r.True(p.Groups[0].Domain.MPC)
	r.Empty(p.Groups[0].Deps)
	r.Equal(0, p.Stages[cat])
}

func TestPlaceLocal(t *testing.T) {
	r := require.New(t)
	g := dag.New(nil)

	in1 := create(t, g, "in1", 1)
	in2, err := g.Create("in2", []rel.Column{
		dag.DefCol("c", types.TInteger, []types.PartyID{1}),
	}, 1)
	r.NoError(err)
	j, err := g.Join("joined", in1, in2, []string{"a"}, []string{"c"})
	r.NoError(err)
	_, err = g.Close("shared", j, 1, 2)
	r.NoError(err)

	p, err := Place(g)
	r.NoError(err)
	r.Equal(Local(1), p.Domains[j])
	r.Len(p.Groups, 2)
	r.Equal(MPC(types.NewParties(1, 2)), p.Groups[1].Domain)
	r.Equal(1, p.Groups[1].Stage)
}
