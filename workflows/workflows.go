//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

// Package workflows implements the built-in example workflows.
package workflows

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/compiler"
	"github.com/markkurossi/conclave/config"
	"github.com/markkurossi/conclave/dag"
	"github.com/markkurossi/conclave/rel"
	"github.com/markkurossi/conclave/types"
)

// Workflow describes a built-in workflow.
type Workflow struct {
	Name        string
	Description string
	Build       compiler.Workflow
	// Parties lists the parties the workflow needs.
	Parties []types.PartyID
	// LeakyOps tells if the workflow is meant to be compiled with
	// leaky operators enabled.
	LeakyOps bool
	// LocalBackend overrides the configured local backend.
	LocalBackend string
}

var registry = map[string]*Workflow{
	"concat-aggregate": {
		Description: "sum of values per key over the union of two inputs",
		Build:       ConcatAggregate,
		Parties:     []types.PartyID{1, 2},
	},
	"ssn": {
		Description: "join of a government registry with company records",
		Build:       SSN,
		Parties:     []types.PartyID{1, 2, 3},
		LeakyOps:    true,
	},
	"aspirin": {
		Description: "aspirin count over partitioned medical records",
		Build:       Aspirin,
		Parties:     []types.PartyID{1, 2},
	},
	"aspirin-local": {
		Description: "aspirin count over party 1's unshared records",
		Build:       AspirinLocal(1),
		Parties:     []types.PartyID{1},
	},
	"nielsen": {
		Description:  "weighted average unit prices of store sales",
		Build:        Nielsen,
		Parties:      []types.PartyID{1},
		LocalBackend: config.BackendSpark,
	},
	"dispatch-test": {
		Description: "two projections of a shared union",
		Build:       DispatchTest,
		Parties:     []types.PartyID{1, 2},
	},
}

func init() {
	for name, wf := range registry {
		wf.Name = name
	}
}

// Names returns the names of the built-in workflows in sorted
// order.
func Names() []string {
	var names []string
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named workflow.
func Lookup(name string) (*Workflow, error) {
	wf, ok := registry[name]
	if !ok {
		return nil, errors.Newf("unknown workflow: %s", name)
	}
	return wf, nil
}

var (
	p1 = []types.PartyID{1}
	p2 = []types.PartyID{2}
)

type builder struct {
	g   *dag.Graph
	err error
}

func (b *builder) do(id dag.NodeID, err error) dag.NodeID {
	if b.err == nil && err != nil {
		b.err = err
	}
	return id
}

func ints(vis []types.PartyID, names ...string) []rel.Column {
	var cols []rel.Column
	for _, name := range names {
		cols = append(cols, dag.DefCol(name, types.TInteger, vis))
	}
	return cols
}

func numbered(prefix string, from, count int) []string {
	var names []string
	for i := 0; i < count; i++ {
		names = append(names, fmt.Sprintf("%s%d", prefix, from+i))
	}
	return names
}

// ConcatAggregate sums the values of two parties' inputs per key and
// reveals the totals to party 1.
func ConcatAggregate(g *dag.Graph) ([]dag.NodeID, error) {
	b := &builder{g: g}

	in1 := b.do(g.Create("in1", ints(p1, "a", "b"), 1))
	in2 := b.do(g.Create("in2", ints(p2, "a", "b"), 2))
	cc := b.do(g.Concat("cc1", in1, in2))
	agg := b.do(g.Aggregate("agg", cc, []string{"b"}, "sum", "a", "total"))
	out := b.do(g.Collect("out", agg, 1))

	return []dag.NodeID{out}, b.err
}

// SSN joins the government registry of party 1 with the company
// records of parties 2 and 3 and reveals the per-region totals to
// party 1.
func SSN(g *dag.Graph) ([]dag.NodeID, error) {
	b := &builder{g: g}

	govreg := b.do(g.Create("govreg", ints(p1, "a", "b"), 1))
	company0 := b.do(g.Create("company0", []rel.Column{
		dag.DefCol("c", types.TInteger, []types.PartyID{1, 2}, 2),
		dag.DefCol("d", types.TInteger, []types.PartyID{2}, 2),
	}, 2))
	company1 := b.do(g.Create("company1", []rel.Column{
		dag.DefCol("c", types.TInteger, []types.PartyID{1, 3}, 3),
		dag.DefCol("d", types.TInteger, []types.PartyID{3}, 3),
	}, 3))

	govregDummy := b.do(g.Project("govreg_dummy", govreg, "a", "b"))
	company0Dummy := b.do(g.Project("company0_dummy", company0, "c", "d"))
	company1Dummy := b.do(g.Project("company1_dummy", company1, "c", "d"))

	companies := b.do(g.Concat("companies", company0Dummy, company1Dummy))
	joined := b.do(g.Join("joined", govregDummy, companies,
		[]string{"a"}, []string{"c"}))
	actual := b.do(g.Aggregate("actual", joined, []string{"b"}, "sum", "d",
		"total"))
	out := b.do(g.Collect("out", actual, 1))

	return []dag.NodeID{out}, b.err
}

const (
	numMedCols  = 8
	numDiagCols = 13
)

// Medication and diagnosis column names.
const (
	pidMeds   = "0"
	medMeds   = "4"
	dateMeds  = "7"
	pidDiags  = "8"
	diagDiags = "16"
	dateDiags = "18"
)

// medicalJoin creates the party's medication and diagnosis records
// and joins them on the patient ID. The column names are prefixed
// with the prefix.
func (b *builder) medicalJoin(prefix string, pid types.PartyID) dag.NodeID {
	vis := []types.PartyID{pid}
	col := func(name string) string {
		return prefix + name
	}
	med := b.do(b.g.Create(prefix+"medication",
		ints(vis, numbered(prefix, 0, numMedCols)...), pid))
	diag := b.do(b.g.Create(prefix+"diagnosis",
		ints(vis, numbered(prefix, numMedCols, numDiagCols)...), pid))

	medProj := b.do(b.g.Project(prefix+"medication_proj", med,
		col(pidMeds), col(medMeds), col(dateMeds)))
	diagProj := b.do(b.g.Project(prefix+"diagnosis_proj", diag,
		col(pidDiags), col(diagDiags), col(dateDiags)))

	return b.do(b.g.Join(prefix+"join", medProj, diagProj,
		[]string{col(pidMeds)}, []string{col(pidDiags)}))
}

// heartPatients selects the aspirin users with a heart condition
// diagnosed after the medication and counts the distinct patients.
func (b *builder) heartPatients(in dag.NodeID, output string,
	useSort bool) dag.NodeID {

	cases := b.do(b.g.Filter("cases", in, dateDiags, "<", dag.Col(dateMeds)))
	aspirin := b.do(b.g.Filter("aspirin", cases, medMeds, "==", dag.Val(1)))
	heart := b.do(b.g.Filter("heart_patients", aspirin, diagDiags, "==",
		dag.Val(1)))
	return b.do(b.g.DistinctCount(output, heart, pidMeds, "count", useSort))
}

// Aspirin counts the heart patients over the medical records of
// parties 1 and 2. Each party joins its own records locally and the
// joined records are combined column-wise under MPC. The count is
// revealed to party 1.
func Aspirin(g *dag.Graph) ([]dag.NodeID, error) {
	b := &builder{g: g}

	left := b.medicalJoin("", 1)
	right := b.medicalJoin("r", 2)
	joined := b.do(g.ConcatCols("joined", []dag.NodeID{left, right}, true))
	actual := b.heartPatients(joined, "actual", false)
	out := b.do(g.Collect("out", actual, 1))

	return []dag.NodeID{out}, b.err
}

// AspirinLocal returns a workflow that counts the heart patients
// over the party's records that are not shared with other parties.
// The count is persisted at the party.
func AspirinLocal(pid types.PartyID) compiler.Workflow {
	return func(g *dag.Graph) ([]dag.NodeID, error) {
		b := &builder{g: g}
		vis := []types.PartyID{pid}

		med := b.do(g.Create("medication",
			ints(vis, numbered("", 0, numMedCols)...), pid))
		diag := b.do(g.Create("diagnosis",
			ints(vis, numbered("", numMedCols, numDiagCols)...), pid))
		shared := b.do(g.Create("shared_pids", ints(vis, pidMeds), pid))

		medProj := b.do(g.Project("medication_proj", med,
			pidMeds, medMeds, dateMeds))
		medMine := b.do(g.FilterBy("medication_mine", medProj, pidMeds,
			shared, pidMeds, true))
		diagProj := b.do(g.Project("diagnosis_proj", diag,
			pidDiags, diagDiags, dateDiags))
		diagMine := b.do(g.FilterBy("diagnosis_mine", diagProj, pidDiags,
			shared, pidMeds, true))

		joined := b.do(g.Join("joined", medMine, diagMine,
			[]string{pidMeds}, []string{pidDiags}))
		actual := b.heartPatients(joined, fmt.Sprintf("actual_p%d", pid),
			true)
		out := b.do(g.Persist("out", actual))

		return []dag.NodeID{out}, b.err
	}
}

// DispatchTest projects the union of two parties' inputs in two
// ways and reveals both projections to party 1.
func DispatchTest(g *dag.Graph) ([]dag.NodeID, error) {
	b := &builder{g: g}

	in1 := b.do(g.Create("in1", ints(p1, "a", "b", "c"), 1))
	in2 := b.do(g.Create("in2", ints(p2, "a", "b", "c"), 2))
	cc := b.do(g.Concat("cc", in1, in2))
	projA := b.do(g.Project("proj_a", cc, "a", "b"))
	projB := b.do(g.Project("proj_b", cc, "b", "c"))
	outA := b.do(g.Collect("out_a", projA, 1))
	outB := b.do(g.Collect("out_b", projB, 1))

	return []dag.NodeID{outA, outB}, b.err
}

// Nielsen computes the weighted average unit price of each product
// per store and week from party 1's store sales records. The result
// is joined back to the sales rows and revealed to party 1.
func Nielsen(g *dag.Graph) ([]dag.NodeID, error) {
	b := &builder{g: g}
	keys := []string{"store_code_uc", "upc", "week_end"}

	movement := b.do(g.Create("movement", []rel.Column{
		dag.DefCol("store_code_uc", types.TInteger, p1),
		dag.DefCol("upc", types.TInteger, p1),
		dag.DefCol("week_end", types.TInteger, p1),
		dag.DefCol("units", types.TInteger, p1),
		dag.DefCol("prmult", types.TInteger, p1),
		dag.DefCol("price", types.TFloat, p1),
		dag.DefCol("feature", types.TString, p1),
		dag.DefCol("display", types.TString, p1),
	}, 1))

	unitPrice := b.do(g.Divide("w_unit_p", movement, "unit_price",
		dag.Col("price"), dag.Col("prmult")))
	sumUnits := b.do(g.Aggregate("sum_units", unitPrice, keys, "sum",
		"units", "q"))
	totalUnits := b.do(g.Join("total_units", unitPrice, sumUnits,
		keys, keys))
	weighted := b.do(g.Multiply("wghtd_total", totalUnits, "wghtd_unit_p",
		dag.Col("units"), dag.Col("unit_price")))
	weightedFinal := b.do(g.Divide("wghtd_total_final", weighted,
		"wghtd_unit_p", dag.Col("wghtd_unit_p"), dag.Col("q")))
	avgPrice := b.do(g.Aggregate("total_unit_wghts", weightedFinal, keys,
		"sum", "wghtd_unit_p", "avg_unit_p"))
	final := b.do(g.Join("final_join", totalUnits, avgPrice, keys, keys))
	out := b.do(g.Collect("opened", final, 1))

	return []dag.NodeID{out}, b.err
}
