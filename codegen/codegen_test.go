//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package codegen_test

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/codegen"
	"github.com/markkurossi/conclave/codegen/jiff"
	"github.com/markkurossi/conclave/codegen/oblivc"
	"github.com/markkurossi/conclave/codegen/python"
	"github.com/markkurossi/conclave/codegen/spark"
	"github.com/markkurossi/conclave/config"
	"github.com/markkurossi/conclave/dag"
	"github.com/markkurossi/conclave/placement"
	"github.com/markkurossi/conclave/rel"
	"github.com/markkurossi/conclave/rewrite"
	"github.com/markkurossi/conclave/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var backends = codegen.NewBackends(python.New(), spark.New(), jiff.New(),
	oblivc.New())

func create(t *testing.T, g *dag.Graph, name string,
	party types.PartyID) dag.NodeID {

	id, err := g.Create(name, []rel.Column{
		dag.DefCol("a", types.TInteger, []types.PartyID{party}),
		dag.DefCol("b", types.TInteger, []types.PartyID{party}),
	}, party)
	require.NoError(t, err)
	return id
}

// concatAggregate builds a workflow where parties 1 and 2 sum their
// values by key and party 1 post-processes the result locally.
func concatAggregate(t *testing.T) *placement.Placement {
	r := require.New(t)
	g := dag.New(nil)

	in1 := create(t, g, "in1", 1)
	in2 := create(t, g, "in2", 2)
	cat, err := g.Concat("cat", in1, in2)
	r.NoError(err)
	agg, err := g.Aggregate("agg", cat, []string{"a"}, "sum", "b", "")
	r.NoError(err)
	out, err := g.Open("out", agg, 1)
	r.NoError(err)
	_, err = g.Multiply("post", out, "b", dag.Col("b"), dag.Val(2))
	r.NoError(err)

	_, err = rewrite.Rewrite(g, rewrite.Policy{})
	r.NoError(err)
	pl, err := placement.Place(g)
	r.NoError(err)
	return pl
}

func TestGenerateJiff(t *testing.T) {
	r := require.New(t)
	pl := concatAggregate(t)
	r.Len(pl.Groups, 2)

	cfg := config.New()
	units, err := codegen.Generate("test", pl, cfg, backends)
	r.NoError(err)
	r.Len(units, 4)

	server := units[0]
	r.Equal(config.BackendJiff, server.Backend)
	r.Equal(codegen.RoleServer, server.Role)
	r.Equal(types.PartyID(1), server.Party)
	r.Equal("server.js", server.File)
	r.Equal([]string{"node", "server.js"}, server.Command)
	assert.Contains(t, server.Code, "inputs.push({ relation: \"in1\", party: 1")
	assert.Contains(t, server.Code, "inputs.push({ relation: \"in2\", party: 2")
	assert.Contains(t, server.Code, "http.listen(9000")
	assert.NotContains(t, server.Code, "lib.")

	for i, party := range []types.PartyID{1, 2} {
		u := units[1+i]
		r.Equal(codegen.RoleParty, u.Role)
		r.Equal(party, u.Party)
		r.Equal("party.js", u.File)
		assert.Contains(t, u.Code, "party_id: "+party.String())
		assert.Contains(t, u.Code, "party_count: 2")
		assert.Contains(t, u.Code, "const in1 = await lib.input(jiff, 1,")
		assert.Contains(t, u.Code, "const in2 = await lib.input(jiff, 2,")
		assert.Contains(t, u.Code, "lib.concat([in1, in2])")
		assert.Contains(t, u.Code, "lib.indexAggregate(jiff, cat,")
		assert.Contains(t, u.Code, "lib.open(jiff, agg, 1,")
		assert.NotContains(t, u.Code, "writeShares")
	}

	local := units[3]
	r.Equal(config.BackendPython, local.Backend)
	r.Equal(types.PartyID(1), local.Party)
	r.Equal([]string{"python3", "workflow.py"}, local.Command)
	assert.Contains(t, local.Code, `out = read_rel(os.path.join(OUTPUT_PATH, "out.csv")`)
	assert.Contains(t, local.Code, "post = arithmetic(out,")
	assert.Contains(t, local.Code, `write_rel(os.path.join(OUTPUT_PATH, "post.csv")`)
}

func TestGenerateOblivc(t *testing.T) {
	r := require.New(t)
	pl := concatAggregate(t)

	cfg := config.New()
	cfg.MPCBackend = config.BackendOblivc
	units, err := codegen.Generate("test", pl, cfg, backends)
	r.NoError(err)
	r.Len(units, 3)

	for i, u := range units[:2] {
		r.Equal(config.BackendOblivc, u.Backend)
		r.Equal("protocol.oc", u.File)
		r.Equal("sh", u.Command[0])
		assert.Contains(t, u.Command[2], "oblivcc -O2 -o protocol protocol.oc")
		assert.Contains(t, u.Code, "static const int PARTY = "+
			types.PartyID(i+1).String()+";")
		assert.Contains(t, u.Code, "share_input(2, INPUT_PATH \"/in2.csv\", 2)")
		assert.Contains(t, u.Code, "index_aggregate_sum(cat,")
		assert.Contains(t, u.Code, "reveal(agg, 1, OUTPUT_PATH \"/out.csv\")")
	}
	assert.Contains(t, units[0].Code, "protocolAcceptTcp2P")
}

func TestOblivcThreeParties(t *testing.T) {
	r := require.New(t)
	g := dag.New(nil)

	in1 := create(t, g, "in1", 1)
	in2 := create(t, g, "in2", 2)
	in3 := create(t, g, "in3", 3)
	cat, err := g.Concat("cat", in1, in2, in3)
	r.NoError(err)
	_, err = g.Persist("out", cat)
	r.NoError(err)

	pl, err := placement.Place(g)
	r.NoError(err)

	cfg := config.New()
	cfg.AllPIDs = []types.PartyID{1, 2, 3}
	cfg.MPCBackend = config.BackendOblivc
	_, err = codegen.Generate("test", pl, cfg, backends)

	var emissionErr *codegen.EmissionError
	r.True(errors.As(err, &emissionErr))
	r.Equal(config.BackendOblivc, emissionErr.Backend)
}

func TestUnsupportedKind(t *testing.T) {
	r := require.New(t)
	g := dag.New(nil)

	in := create(t, g, "in", 1)
	shuffled, err := g.Shuffle("shuffled", in)
	r.NoError(err)
	_, err = g.Persist("stored", shuffled)
	r.NoError(err)

	pl, err := placement.Place(g)
	r.NoError(err)

	cfg := config.New()
	_, err = codegen.Generate("test", pl, cfg, backends)
	r.NoError(err)

	cfg.LocalBackend = config.BackendSpark
	_, err = codegen.Generate("test", pl, cfg, backends)

	var emissionErr *codegen.EmissionError
	r.True(errors.As(err, &emissionErr))
	r.Equal("shuffled", emissionErr.Node)
	r.Equal(dag.KShuffle, emissionErr.Kind)
	r.Equal(config.BackendSpark, emissionErr.Backend)
	r.Contains(err.Error(), "not supported by spark/party")
}

func TestUnknownBackend(t *testing.T) {
	pl := concatAggregate(t)
	cfg := config.New()
	_, err := codegen.Generate("test", pl, cfg,
		codegen.NewBackends(python.New()))
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "unknown backend jiff"))
}

func TestSpark(t *testing.T) {
	r := require.New(t)
	g := dag.New(nil)

	in := create(t, g, "in", 1)
	agg, err := g.Aggregate("agg", in, []string{"a"}, "mean", "b", "avg")
	r.NoError(err)
	_, err = g.Persist("stored", agg)
	r.NoError(err)

	pl, err := placement.Place(g)
	r.NoError(err)

	cfg := config.New()
	cfg.LocalBackend = config.BackendSpark
	units, err := codegen.Generate("test", pl, cfg, backends)
	r.NoError(err)
	r.Len(units, 1)
	r.Equal([]string{"spark-submit", "--master", "local", "workflow.py"},
		units[0].Command)
	r.NotEmpty(units[0].Code)
}

func TestNoOp(t *testing.T) {
	r := require.New(t)
	g := dag.New(nil)
	in := create(t, g, "in", 1)
	pl, err := placement.Place(g)
	r.NoError(err)

	ctx := &codegen.Context{
		Workflow:  "test",
		Party:     1,
		Graph:     g,
		Placement: pl,
		Group:     pl.Groups[0],
	}
	code, err := codegen.Emit(ctx, codegen.NoOp{}, g.Node(in))
	r.NoError(err)
	r.Empty(code)

	_, err = codegen.Emit(ctx, codegen.Unsupported{}, g.Node(in))
	r.Error(err)
	r.Equal("test-0-local1", ctx.Job())
}

func TestIdent(t *testing.T) {
	tests := map[string]string{
		"in1":       "in1",
		"1st":       "_1st",
		"foo-bar":   "foo_bar",
		"a.b c":     "a_b_c",
		"Persisted": "Persisted",
	}
	for input, expected := range tests {
		assert.Equal(t, expected, codegen.Ident(input), input)
	}
}
