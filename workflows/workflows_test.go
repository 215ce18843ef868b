//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package workflows

import (
	"testing"

	"github.com/markkurossi/conclave/compiler"
	"github.com/markkurossi/conclave/config"
	"github.com/markkurossi/conclave/dag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, name, backend string) *compiler.Result {
	wf, err := Lookup(name)
	require.NoError(t, err)

	cfg := config.New()
	cfg.Name = wf.Name
	cfg.PID = wf.Parties[0]
	cfg.AllPIDs = wf.Parties
	cfg.UseLeakyOps = wf.LeakyOps
	cfg.MPCBackend = backend
	if len(wf.LocalBackend) > 0 {
		cfg.LocalBackend = wf.LocalBackend
	}

	result, err := compiler.Compile(wf.Name, wf.Build, compiler.NewParams(cfg))
	require.NoError(t, err)
	return result
}

func decision(t *testing.T, result *compiler.Result, node string) dag.Kind {
	for _, d := range result.Decisions {
		if d.Name == node {
			return d.To
		}
	}
	t.Fatalf("no decision for %s", node)
	return 0
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{
		"aspirin",
		"aspirin-local",
		"concat-aggregate",
		"dispatch-test",
		"nielsen",
		"ssn",
	}, Names())

	for _, name := range Names() {
		wf, err := Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, wf.Name)
		assert.NotEmpty(t, wf.Description)
	}

	_, err := Lookup("nope")
	assert.ErrorContains(t, err, "unknown workflow: nope")
}

func TestCompileAll(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			result := compile(t, name, config.BackendJiff)
			require.NotEmpty(t, result.Plan.Jobs)
			assert.NoError(t, result.Plan.Validate())
		})
	}
}

func TestConcatAggregate(t *testing.T) {
	result := compile(t, "concat-aggregate", config.BackendOblivc)
	assert.Equal(t, dag.KIndexAggregate, decision(t, result, "agg"))

	for _, j := range result.Plan.Jobs {
		if j.Backend == config.BackendOblivc {
			assert.True(t, j.Rendezvous, j.ID)
			assert.Contains(t, j.Code, "index_aggregate_sum")
		}
	}
}

func TestSSN(t *testing.T) {
	result := compile(t, "ssn", config.BackendJiff)
	assert.Equal(t, dag.KHybridJoin, decision(t, result, "joined"))
	assert.Equal(t, dag.KIndexAggregate, decision(t, result, "actual"))

	// Three parties do not fit the two-party backend.
	wf, err := Lookup("ssn")
	require.NoError(t, err)
	cfg := config.New()
	cfg.AllPIDs = wf.Parties
	cfg.UseLeakyOps = true
	cfg.MPCBackend = config.BackendOblivc
	_, err = compiler.Compile(wf.Name, wf.Build, compiler.NewParams(cfg))
	assert.Error(t, err)
}

func TestAspirin(t *testing.T) {
	result := compile(t, "aspirin", config.BackendOblivc)
	assert.Equal(t, dag.KJoin, decision(t, result, "join"))
	assert.Equal(t, dag.KJoin, decision(t, result, "rjoin"))

	var local, mpc int
	for _, j := range result.Plan.Jobs {
		switch j.Backend {
		case config.BackendPython:
			local++
		case config.BackendOblivc:
			mpc++
		}
	}
	assert.Equal(t, 2, local)
	assert.Equal(t, 2, mpc)
}

func TestAspirinLocal(t *testing.T) {
	result := compile(t, "aspirin-local", config.BackendJiff)
	require.Len(t, result.Plan.Jobs, 1)
	j := result.Plan.Jobs[0]
	assert.Equal(t, config.BackendPython, j.Backend)
	assert.False(t, j.Rendezvous)
	assert.Contains(t, j.Code, "actual_p1")
}

func TestDispatchTest(t *testing.T) {
	result := compile(t, "dispatch-test", config.BackendJiff)
	assert.Empty(t, result.Decisions)
	assert.Len(t, result.Plan.Queue(2), 1)
}

func TestNielsen(t *testing.T) {
	result := compile(t, "nielsen", config.BackendJiff)
	assert.Len(t, result.Decisions, 4)
	for _, d := range result.Decisions {
		assert.True(t, d.Kept(), d.Name)
	}

	require.Len(t, result.Plan.Jobs, 1)
	j := result.Plan.Jobs[0]
	assert.Equal(t, config.BackendSpark, j.Backend)
	assert.False(t, j.Rendezvous)
	for _, name := range []string{
		"w_unit_p", "sum_units", "total_units", "wghtd_total_final",
		"total_unit_wghts", "final_join",
	} {
		assert.Contains(t, j.Code, name)
	}

	n, ok := result.Graph.Lookup("final_join")
	require.True(t, ok)
	var names []string
	for _, col := range result.Graph.Node(n).Out.Columns {
		names = append(names, col.Name)
	}
	assert.Equal(t, []string{
		"store_code_uc", "upc", "week_end", "units", "prmult", "price",
		"feature", "display", "unit_price", "q", "avg_unit_p",
	}, names)
}
