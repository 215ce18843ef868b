//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package dag

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/log"
	"github.com/markkurossi/conclave/rel"
	"github.com/markkurossi/conclave/types"
	"github.com/stretchr/testify/require"
)

func cols(vis ...types.PartyID) []rel.Column {
	return []rel.Column{
		DefCol("a", types.TInteger, vis),
		DefCol("b", types.TInteger, vis),
	}
}

func requireTopOrder(t *testing.T, g *Graph, order []NodeID) {
	t.Helper()
	require.Len(t, order, g.Len())
	pos := make(map[NodeID]int)
	for idx, id := range order {
		pos[id] = idx
	}
	for _, n := range g.Nodes() {
		for _, p := range n.Parents {
			require.Less(t, pos[p], pos[n.ID], "%s before %s",
				g.Node(p).Name, n.Name)
		}
	}
}

func TestGraphTopologicalSort(t *testing.T) {
	t.Run("diamond", func(t *testing.T) {
		r := require.New(t)
		g := New(nil)

		in1, err := g.Create("in1", cols(1), 1)
		r.NoError(err)
		p1, err := g.Project("p1", in1, "a")
		r.NoError(err)
		p2, err := g.Project("p2", in1, "b")
		r.NoError(err)
		cc, err := g.ConcatCols("cc", []NodeID{p2, p1}, false)
		r.NoError(err)
		_, err = g.Open("out", cc, 1)
		r.NoError(err)

		order := g.TopSort()
		requireTopOrder(t, g, order)
		r.Equal([]NodeID{0, 1, 2, 3, 4}, order)
	})

	// Two disconnected subgraphs are interleaved in creation order.
	t.Run("disconnected", func(t *testing.T) {
		r := require.New(t)
		g := New(nil)

		a, err := g.Create("a", cols(1), 1)
		r.NoError(err)
		b, err := g.Create("b", cols(2), 2)
		r.NoError(err)
		pb, err := g.Project("pb", b, "a")
		r.NoError(err)
		pa, err := g.Project("pa", a, "b")
		r.NoError(err)
		_, err = g.Open("ob", pb, 2)
		r.NoError(err)
		_, err = g.Open("oa", pa, 1)
		r.NoError(err)

		order := g.TopSort()
		requireTopOrder(t, g, order)

		var names []string
		for _, id := range order {
			names = append(names, g.Node(id).Name)
		}
		r.Equal([]string{"a", "b", "pb", "pa", "ob", "oa"}, names)
		r.Equal(order, g.TopSort())
	})

	t.Run("unknown parent", func(t *testing.T) {
		g := New(nil)
		_, err := g.Project("p", NodeID(3), "a")
		var se *SchemaError
		require.True(t, errors.As(err, &se))
		require.Equal(t, "p", se.Node)

		_, err = g.AddNode("q", []NodeID{NodeID(0)}, &Shuffle{})
		require.True(t, errors.As(err, &se))
		require.Equal(t, 0, g.Len())
	})
}

func TestSchemaErrors(t *testing.T) {
	g := New(nil)
	in1, err := g.Create("in1", cols(1), 1)
	require.NoError(t, err)
	in2, err := g.Create("in2", []rel.Column{
		DefCol("a", types.TInteger, []types.PartyID{2}),
	}, 2)
	require.NoError(t, err)

	var tests = []struct {
		name string
		add  func() (NodeID, error)
	}{
		{"unknown column", func() (NodeID, error) {
			return g.Project("e1", in1, "c")
		}},
		{"index out of range", func() (NodeID, error) {
			return g.AddNode("e2", []NodeID{in1}, &Project{Columns: []int{2}})
		}},
		{"negative index", func() (NodeID, error) {
			return g.AddNode("e3", []NodeID{in1}, &SortBy{Column: -1})
		}},
		{"concat schemas", func() (NodeID, error) {
			return g.Concat("e4", in1, in2)
		}},
		{"duplicate name", func() (NodeID, error) {
			return g.Project("in2", in1, "a")
		}},
		{"empty visibility", func() (NodeID, error) {
			return g.Create("e5", []rel.Column{
				DefCol("a", types.TInteger, nil),
			}, 1)
		}},
		{"concat arity", func() (NodeID, error) {
			return g.Concat("e6", in1)
		}},
		{"join key count", func() (NodeID, error) {
			return g.Join("e7", in1, in2, []string{"a", "b"}, []string{"a"})
		}},
		{"division by zero", func() (NodeID, error) {
			return g.Divide("e8", in1, "a", Col("a"), Val(0))
		}},
		{"unknown aggregate", func() (NodeID, error) {
			return g.Aggregate("e9", in1, []string{"a"}, "median", "b", "")
		}},
		{"scalar only", func() (NodeID, error) {
			return g.Multiply("e10", in1, "c", Val(2), Val(3))
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := test.add()
			var se *SchemaError
			require.True(t, errors.As(err, &se), "got %v", err)
		})
	}
	require.Equal(t, 2, g.Len())
}

func TestOpenVisibility(t *testing.T) {
	g := New(nil)
	in1, err := g.Create("in1", cols(1), 1)
	require.NoError(t, err)
	in2, err := g.Create("in2", cols(2), 2)
	require.NoError(t, err)
	cat, err := g.Concat("cat", in1, in2)
	require.NoError(t, err)
	require.Equal(t, "{1,2}", g.Node(cat).Out.Columns[0].Visibility.String())

	_, err = g.Open("out3", cat, 3)
	var ve *VisibilityError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, types.PartyID(3), ve.Party)
	require.Equal(t, "out3", ve.Node)
	require.Contains(t, err.Error(), "party 3")

	for _, party := range []types.PartyID{1, 2} {
		id, err := g.Open("out"+party.String(), cat, party)
		require.NoError(t, err)
		out := g.Node(id).Out
		for _, col := range out.Columns {
			require.Equal(t, types.NewParties(party), col.Visibility)
		}
	}

	_, err = g.Open("p1only", in1, 2)
	require.True(t, errors.As(err, &ve))
}

func TestDeclassify(t *testing.T) {
	var buf bytes.Buffer
	g := New(log.New(&buf, log.WarnLevel, true))

	in1, err := g.Create("in1", cols(1), 1)
	require.NoError(t, err)
	id, err := g.Declassify("reveal", in1, 2)
	require.NoError(t, err)
	require.Equal(t, "{2}", g.Node(id).Out.AllVisibility().String())
	require.Contains(t, buf.String(), "declassification")
	require.Contains(t, buf.String(), `"node":"reveal"`)
}

func TestLive(t *testing.T) {
	r := require.New(t)
	g := New(nil)

	in1, err := g.Create("in1", cols(1), 1)
	r.NoError(err)
	in2, err := g.Create("in2", cols(2), 2)
	r.NoError(err)
	cat, err := g.Concat("cat", in1, in2)
	r.NoError(err)
	_, err = g.Project("dead", cat, "a")
	r.NoError(err)
	out, err := g.Open("out", cat, 1)
	r.NoError(err)

	live := g.Live([]NodeID{in1, in2})
	r.Equal([]NodeID{in1, in2, cat, out}, live)

	pruned, err := g.Prune(live)
	r.NoError(err)
	r.Equal(4, pruned.Len())
	_, ok := pruned.Lookup("dead")
	r.False(ok)
	id, ok := pruned.Lookup("out")
	r.True(ok)
	r.Equal(NodeID(3), id)
	r.Equal([]NodeID{2}, pruned.Node(id).Parents)

	// Without sinks everything reachable is live.
	g2 := New(nil)
	a, err := g2.Create("a", cols(1), 1)
	r.NoError(err)
	_, err = g2.Project("pa", a, "a")
	r.NoError(err)
	r.Len(g2.Live([]NodeID{a}), 2)

	_, err = g.Prune([]NodeID{cat})
	r.Error(err)
}

func TestReplace(t *testing.T) {
	r := require.New(t)
	g := New(nil)

	in1, err := g.Create("in1", cols(1), 1)
	r.NoError(err)
	in2, err := g.Create("in2", cols(2), 2)
	r.NoError(err)
	j, err := g.Join("j", in1, in2, []string{"a"}, []string{"a"})
	r.NoError(err)

	keys, ok := Keys(g.Node(j).Params)
	r.True(ok)
	r.NoError(g.Replace(j, &IndexJoin{
		JoinKeys:   keys,
		IndexParty: 1,
	}))
	r.Equal(KIndexJoin, g.Node(j).Kind())

	// Replacement must keep the output relation.
	err = g.Replace(j, &Join{
		JoinKeys: JoinKeys{
			Left:  []int{1},
			Right: []int{1},
		},
	})
	var se *SchemaError
	r.True(errors.As(err, &se))
	r.Equal(KIndexJoin, g.Node(j).Kind())
}

func TestDot(t *testing.T) {
	g := New(nil)
	in1, err := g.Create("in1", cols(1), 1)
	require.NoError(t, err)
	_, err = g.Open("out", in1, 1)
	require.NoError(t, err)

	var buf bytes.Buffer
	g.Dot(&buf)
	require.Contains(t, buf.String(), "n0 -> n1;")
	require.Contains(t, buf.String(), "digraph workflow")

	buf.Reset()
	g.PP(&buf)
	require.Contains(t, buf.String(), "out\t= Open(in1)")
}
