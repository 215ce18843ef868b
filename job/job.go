//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

// Package job assembles the emitted code units into per-party job
// queues. A job depends on the jobs that produce its inputs. The
// dependencies on other parties' jobs are handoffs: the consuming
// party waits until the producing party announces that the job has
// completed. Jobs of MPC groups rendezvous with their peers before
// they are started.
package job

import (
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/markkurossi/conclave/codegen"
	"github.com/markkurossi/conclave/config"
	"github.com/markkurossi/conclave/placement"
	"github.com/markkurossi/conclave/types"
	"github.com/markkurossi/tabulate"
	"golang.org/x/crypto/blake2b"
)

// Job is a program that one party runs in one role.
type Job struct {
	ID string `toml:"id"`
	// Name identifies the job group. All jobs of the group have the
	// same name and it is used as the rendezvous identity.
	Name        string        `toml:"name"`
	Group       int           `toml:"group"`
	Stage       int           `toml:"stage"`
	Domain      string        `toml:"domain"`
	Backend     string        `toml:"backend"`
	Party       types.PartyID `toml:"party"`
	Role        codegen.Role  `toml:"role"`
	File        string        `toml:"file"`
	Code        string        `toml:"code"`
	Command     []string      `toml:"command"`
	DependsOn   []string      `toml:"depends_on"`
	Rendezvous  bool          `toml:"rendezvous"`
	Peers       types.Parties `toml:"peers"`
	Coordinator types.PartyID `toml:"coordinator"`
}

// ID creates the job ID.
func ID(workflow string, grp *placement.Group, party types.PartyID,
	role codegen.Role) string {
	return fmt.Sprintf("%s-%d-%s-p%d-%s",
		workflow, grp.Stage, grp.Domain, party, role)
}

func (j *Job) String() string {
	return j.ID
}

// Digest computes the BLAKE2b-256 digest of the job contents.
func (j *Job) Digest() []byte {
	h, _ := blake2b.New256(nil)
	field := func(v string) {
		fmt.Fprintf(h, "%d:%s", len(v), v)
	}
	field(j.ID)
	field(j.Name)
	field(j.Backend)
	field(j.Party.String())
	field(j.Role.String())
	field(j.File)
	field(j.Code)
	field(strings.Join(j.Command, "\x00"))
	field(strings.Join(j.DependsOn, "\x00"))
	field(fmt.Sprintf("%v", j.Rendezvous))
	field(j.Peers.String())
	field(j.Coordinator.String())
	return h.Sum(nil)
}

// Plan is the job plan of a workflow. The Jobs are in dispatch order
// and each party's queue lists the party's jobs in that order.
type Plan struct {
	Workflow string
	// Session identifies the compilation. It separates the
	// rendezvous of different runs of the same workflow.
	Session string
	Jobs    []*Job
	Queues  map[types.PartyID][]string
	byID    map[string]*Job
}

// Assemble creates the job plan from the code units.
func Assemble(workflow string, pl *placement.Placement,
	units []*codegen.Unit, cfg *config.Config) (*Plan, error) {

	// Group jobs by group and party.
	type key struct {
		group int
		party types.PartyID
	}
	byKey := make(map[key][]*Job)
	peers := make(map[int]types.Parties)

	var jobs []*Job
	for _, u := range units {
		j := &Job{
			ID:      ID(workflow, u.Group, u.Party, u.Role),
			Name:    fmt.Sprintf("%s-%s", workflow, u.Group),
			Group:   u.Group.ID,
			Stage:   u.Group.Stage,
			Domain:  u.Group.Domain.String(),
			Backend: u.Backend,
			Party:   u.Party,
			Role:    u.Role,
			File:    u.File,
			Code:    u.Code,
			Command: u.Command,
		}
		jobs = append(jobs, j)
		k := key{group: u.Group.ID, party: u.Party}
		byKey[k] = append(byKey[k], j)
		peers[u.Group.ID] = peers[u.Group.ID].Union(
			types.NewParties(u.Party))
	}

	for _, j := range jobs {
		grp := pl.Groups[j.Group]
		if grp.Domain.MPC {
			j.Rendezvous = true
			j.Peers = peers[j.Group]
			j.Coordinator = cfg.Coordinator()
			if !j.Peers.Contains(j.Coordinator) {
				j.Coordinator = j.Peers.Min()
			}
		}
		for _, dep := range grp.Deps {
			own := byKey[key{group: dep, party: j.Party}]
			if len(own) > 0 {
				for _, d := range own {
					j.DependsOn = append(j.DependsOn, d.ID)
				}
				continue
			}
			// The party receives the relation from the producing
			// group's parties. A rendezvous with a producing party
			// already orders the job after the party's producer jobs.
			for _, party := range peers[dep].Array() {
				if j.Rendezvous && j.Peers.Contains(party) {
					continue
				}
				for _, d := range byKey[key{group: dep, party: party}] {
					j.DependsOn = append(j.DependsOn, d.ID)
				}
			}
		}
		sort.Strings(j.DependsOn)
	}

	// Dispatch order: the group dependencies have lower stages so
	// stage order is a topological order of the groups.
	sort.SliceStable(jobs, func(i, j int) bool {
		a, b := jobs[i], jobs[j]
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.Party != b.Party {
			return a.Party < b.Party
		}
		return a.Role > b.Role
	})

	return NewPlan(workflow, uuid.NewString(), jobs)
}

// NewPlan creates a plan from the jobs that are in dispatch order.
func NewPlan(workflow, session string, jobs []*Job) (*Plan, error) {
	plan := &Plan{
		Workflow: workflow,
		Session:  session,
		Jobs:     jobs,
	}
	if err := plan.index(); err != nil {
		return nil, err
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

func (plan *Plan) index() error {
	plan.byID = make(map[string]*Job)
	plan.Queues = make(map[types.PartyID][]string)
	for _, j := range plan.Jobs {
		if _, ok := plan.byID[j.ID]; ok {
			return errors.Newf("job: duplicate job %s", j.ID)
		}
		plan.byID[j.ID] = j
		plan.Queues[j.Party] = append(plan.Queues[j.Party], j.ID)
	}
	return nil
}

// Job returns the job by its ID.
func (plan *Plan) Job(id string) (*Job, bool) {
	j, ok := plan.byID[id]
	return j, ok
}

// Parties returns the parties that have jobs in the plan.
func (plan *Plan) Parties() types.Parties {
	var ids []types.PartyID
	for party := range plan.Queues {
		ids = append(ids, party)
	}
	return types.NewParties(ids...)
}

// Queue returns the party's jobs in dispatch order.
func (plan *Plan) Queue(party types.PartyID) []*Job {
	var result []*Job
	for _, id := range plan.Queues[party] {
		result = append(result, plan.byID[id])
	}
	return result
}

// Validate checks that the job dependencies are satisfiable: each
// dependency precedes the job in the dispatch order, a dependency of
// the same party is earlier in the party's queue, and rendezvous jobs
// have valid peers.
func (plan *Plan) Validate() error {
	order := make(map[string]int)
	for idx, j := range plan.Jobs {
		order[j.ID] = idx
	}
	for party, queue := range plan.Queues {
		seen := make(map[string]bool)
		for _, id := range queue {
			j := plan.byID[id]
			for _, dep := range j.DependsOn {
				d, ok := plan.byID[dep]
				if !ok {
					return errors.Newf("job %s: unknown dependency %s",
						id, dep)
				}
				if (d.Party == party && !seen[dep]) ||
					order[dep] >= order[id] {
					return errors.Newf("job %s: dependency %s not before job",
						id, dep)
				}
				if d.Party != party && d.Name == j.Name {
					return errors.Newf("job %s: handoff %s within group",
						id, dep)
				}
			}
			if j.Rendezvous {
				if j.Peers.Len() < 2 {
					return errors.Newf("job %s: rendezvous with peers %s",
						id, j.Peers)
				}
				if !j.Peers.Contains(party) ||
					!j.Peers.Contains(j.Coordinator) {
					return errors.Newf(
						"job %s: party %d or coordinator %d not in peers %s",
						id, party, j.Coordinator, j.Peers)
				}
			}
			seen[id] = true
		}
	}
	return nil
}

// Handoffs returns the parties that have jobs depending on the job
// but do not run the job's group.
func (plan *Plan) Handoffs(id string) types.Parties {
	producer, ok := plan.byID[id]
	if !ok {
		return types.Parties{}
	}
	var ids []types.PartyID
	for _, j := range plan.Jobs {
		if j.Party == producer.Party {
			continue
		}
		for _, dep := range j.DependsOn {
			if dep == id {
				ids = append(ids, j.Party)
				break
			}
		}
	}
	return types.NewParties(ids...)
}

// Fingerprint returns the hex-encoded BLAKE2b-256 digest over the
// digests of all jobs. Two plans with equal fingerprints have the same
// jobs in the same order.
func (plan *Plan) Fingerprint() string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(plan.Workflow))
	for _, j := range plan.Jobs {
		h.Write(j.Digest())
	}
	return hex.EncodeToString(h.Sum(nil))
}

type manifest struct {
	Workflow    string `toml:"workflow"`
	Session     string `toml:"session"`
	Fingerprint string `toml:"fingerprint"`
	Jobs        []*Job `toml:"job"`
}

// Encode writes the plan as a TOML manifest.
func (plan *Plan) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(&manifest{
		Workflow:    plan.Workflow,
		Session:     plan.Session,
		Fingerprint: plan.Fingerprint(),
		Jobs:        plan.Jobs,
	})
}

// DecodePlan reads a TOML manifest. The manifest fingerprint must
// match the decoded jobs.
func DecodePlan(r io.Reader) (*Plan, error) {
	var m manifest
	if _, err := toml.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.Wrap(err, "job: decode plan")
	}
	plan, err := NewPlan(m.Workflow, m.Session, m.Jobs)
	if err != nil {
		return nil, err
	}
	if fp := plan.Fingerprint(); fp != m.Fingerprint {
		return nil, errors.Newf("job: plan fingerprint mismatch: %s != %s",
			fp, m.Fingerprint)
	}
	return plan, nil
}

// Print prints the plan as a table.
func (plan *Plan) Print(w io.Writer) {
	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Job").SetAlign(tabulate.ML)
	tab.Header("Party").SetAlign(tabulate.MR)
	tab.Header("Role").SetAlign(tabulate.ML)
	tab.Header("Backend").SetAlign(tabulate.ML)
	tab.Header("Peers").SetAlign(tabulate.ML)
	tab.Header("Depends On").SetAlign(tabulate.ML)

	for _, j := range plan.Jobs {
		row := tab.Row()
		row.Column(j.ID)
		row.Column(j.Party.String())
		row.Column(j.Role.String())
		row.Column(j.Backend)
		if j.Rendezvous {
			row.Column(fmt.Sprintf("%s@%d", j.Peers, j.Coordinator))
		} else {
			row.Column("")
		}
		row.Column(strings.Join(j.DependsOn, ", "))
	}
	tab.Print(w)
}
