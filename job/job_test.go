//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package job

import (
	"bytes"
	"strings"
	"testing"

	"github.com/markkurossi/conclave/codegen"
	"github.com/markkurossi/conclave/codegen/jiff"
	"github.com/markkurossi/conclave/codegen/python"
	"github.com/markkurossi/conclave/config"
	"github.com/markkurossi/conclave/dag"
	"github.com/markkurossi/conclave/placement"
	"github.com/markkurossi/conclave/rel"
	"github.com/markkurossi/conclave/rewrite"
	"github.com/markkurossi/conclave/types"
	"github.com/stretchr/testify/assert"
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

// compile compiles a workflow where party 1 pre-processes its input
// locally, parties 1 and 2 aggregate in MPC, and party 1
// post-processes the result.
func compile(t *testing.T) *Plan {
	r := require.New(t)
	g := dag.New(nil)

	in1 := create(t, g, "in1", 1)
	in2 := create(t, g, "in2", 2)
	pre, err := g.Multiply("pre", in1, "b", dag.Col("b"), dag.Val(10))
	r.NoError(err)
	cat, err := g.Concat("cat", pre, in2)
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

	cfg := config.New()
	units, err := codegen.Generate("wf", pl, cfg,
		codegen.NewBackends(python.New(), jiff.New()))
	r.NoError(err)

	plan, err := Assemble("wf", pl, units, cfg)
	r.NoError(err)
	return plan
}

func TestAssemble(t *testing.T) {
	plan := compile(t)

	var ids []string
	for _, j := range plan.Jobs {
		ids = append(ids, j.ID)
	}
	require.Equal(t, []string{
		"wf-0-local1-p1-party",
		"wf-1-mpc1_2-p1-server",
		"wf-1-mpc1_2-p1-party",
		"wf-1-mpc1_2-p2-party",
		"wf-2-local1-p1-party",
	}, ids)

	assert.Equal(t, []string{
		"wf-0-local1-p1-party",
		"wf-1-mpc1_2-p1-server",
		"wf-1-mpc1_2-p1-party",
		"wf-2-local1-p1-party",
	}, plan.Queues[1])
	assert.Equal(t, []string{"wf-1-mpc1_2-p2-party"}, plan.Queues[2])
	assert.True(t, plan.Parties().Equal(types.NewParties(1, 2)))

	mpc, ok := plan.Job("wf-1-mpc1_2-p1-party")
	require.True(t, ok)
	assert.True(t, mpc.Rendezvous)
	assert.True(t, mpc.Peers.Equal(types.NewParties(1, 2)))
	assert.Equal(t, types.PartyID(1), mpc.Coordinator)
	assert.Equal(t, []string{"wf-0-local1-p1-party"}, mpc.DependsOn)
	assert.Equal(t, "wf-1-mpc1_2", mpc.Name)

	peer, _ := plan.Job("wf-1-mpc1_2-p2-party")
	assert.Empty(t, peer.DependsOn)

	post, _ := plan.Job("wf-2-local1-p1-party")
	assert.False(t, post.Rendezvous)
	assert.Equal(t, []string{
		"wf-1-mpc1_2-p1-party",
		"wf-1-mpc1_2-p1-server",
	}, post.DependsOn)

	require.NoError(t, plan.Validate())
}

func assemble(t *testing.T, g *dag.Graph) *Plan {
	r := require.New(t)
	_, err := rewrite.Rewrite(g, rewrite.Policy{})
	r.NoError(err)
	pl, err := placement.Place(g)
	r.NoError(err)

	cfg := config.New()
	cfg.AllPIDs = []types.PartyID{1, 2, 3}
	units, err := codegen.Generate("wf", pl, cfg,
		codegen.NewBackends(python.New(), jiff.New()))
	r.NoError(err)

	plan, err := Assemble("wf", pl, units, cfg)
	r.NoError(err)
	return plan
}

func TestAssembleHandoff(t *testing.T) {
	r := require.New(t)
	g := dag.New(nil)

	// Party 1 computes locally and opens the result to party 2 that
	// continues locally.
	in1 := create(t, g, "in1", 1)
	pre, err := g.Multiply("pre", in1, "b", dag.Col("b"), dag.Val(10))
	r.NoError(err)
	shared, err := g.Declassify("shared", pre, 2)
	r.NoError(err)
	post, err := g.Multiply("post", shared, "b", dag.Col("b"), dag.Val(2))
	r.NoError(err)
	_, err = g.Open("out", post, 2)
	r.NoError(err)

	plan := assemble(t, g)
	r.Equal([]string{"wf-0-local1-p1-party"}, plan.Queues[1])
	r.Equal([]string{"wf-1-local2-p2-party"}, plan.Queues[2])

	consumer, _ := plan.Job("wf-1-local2-p2-party")
	assert.False(t, consumer.Rendezvous)
	assert.Equal(t, []string{"wf-0-local1-p1-party"}, consumer.DependsOn)

	assert.Equal(t, "{2}", plan.Handoffs("wf-0-local1-p1-party").String())
	assert.True(t, plan.Handoffs("wf-1-local2-p2-party").IsEmpty())
	assert.True(t, plan.Handoffs("missing").IsEmpty())
	r.NoError(plan.Validate())
}

func TestAssembleHandoffFromMPC(t *testing.T) {
	r := require.New(t)
	g := dag.New(nil)

	// Parties 1 and 2 aggregate in MPC and open the result to party 3
	// that is not in the MPC group.
	in1 := create(t, g, "in1", 1)
	in2 := create(t, g, "in2", 2)
	cat, err := g.Concat("cat", in1, in2)
	r.NoError(err)
	agg, err := g.Aggregate("agg", cat, []string{"a"}, "sum", "b", "")
	r.NoError(err)
	out, err := g.Declassify("out", agg, 3)
	r.NoError(err)
	_, err = g.Multiply("post", out, "b", dag.Col("b"), dag.Val(2))
	r.NoError(err)

	plan := assemble(t, g)
	queue := plan.Queue(3)
	r.Len(queue, 1)
	post := queue[0]
	assert.False(t, post.Rendezvous)
	r.NotEmpty(post.DependsOn)
	for _, dep := range post.DependsOn {
		d, ok := plan.Job(dep)
		r.True(ok)
		assert.True(t, d.Rendezvous, dep)
		assert.NotEqual(t, types.PartyID(3), d.Party)
		assert.Equal(t, "{3}", plan.Handoffs(dep).String())
	}
	r.NoError(plan.Validate())
}

func TestDeterministic(t *testing.T) {
	a := compile(t)
	b := compile(t)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Session, b.Session)

	j := a.Jobs[0]
	digest := j.Digest()
	j.Code += " "
	assert.NotEqual(t, digest, j.Digest())
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestManifest(t *testing.T) {
	r := require.New(t)
	plan := compile(t)

	var buf bytes.Buffer
	r.NoError(plan.Encode(&buf))

	decoded, err := DecodePlan(bytes.NewReader(buf.Bytes()))
	r.NoError(err)
	r.Equal(plan.Fingerprint(), decoded.Fingerprint())
	r.Equal(plan.Session, decoded.Session)
	r.Equal(plan.Queues, decoded.Queues)

	j, ok := decoded.Job("wf-1-mpc1_2-p1-server")
	r.True(ok)
	r.Equal(codegen.RoleServer, j.Role)
	r.True(j.Peers.Equal(types.NewParties(1, 2)))

	tampered := strings.Replace(buf.String(), "lib.concat", "lib.concat2", 1)
	_, err = DecodePlan(strings.NewReader(tampered))
	r.ErrorContains(err, "fingerprint mismatch")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *Plan)
		err    string
	}{
		{
			name: "unknown dependency",
			modify: func(p *Plan) {
				p.Jobs[0].DependsOn = []string{"missing"}
			},
			err: "unknown dependency",
		},
		{
			name: "later handoff",
			modify: func(p *Plan) {
				p.Jobs[0].DependsOn = []string{"wf-1-mpc1_2-p2-party"}
			},
			err: "not before job",
		},
		{
			name: "handoff within group",
			modify: func(p *Plan) {
				j, _ := p.Job("wf-1-mpc1_2-p2-party")
				j.DependsOn = []string{"wf-1-mpc1_2-p1-party"}
			},
			err: "within group",
		},
		{
			name: "order",
			modify: func(p *Plan) {
				p.Jobs[0].DependsOn = []string{"wf-2-local1-p1-party"}
			},
			err: "not before job",
		},
		{
			name: "peers",
			modify: func(p *Plan) {
				j, _ := p.Job("wf-1-mpc1_2-p2-party")
				j.Coordinator = 3
			},
			err: "coordinator 3",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			plan := compile(t)
			test.modify(plan)
			require.ErrorContains(t, plan.Validate(), test.err)
		})
	}
}

func TestPrint(t *testing.T) {
	plan := compile(t)
	var buf bytes.Buffer
	plan.Print(&buf)
	assert.Contains(t, buf.String(), "wf-1-mpc1_2-p2-party")
	assert.Contains(t, buf.String(), "{1,2}@1")
}
