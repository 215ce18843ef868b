//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

// Package codegen implements the code emission driver. The driver
// visits the nodes of each job group in topological order and
// invokes the group's backend emitter for each node and role.
package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/config"
	"github.com/markkurossi/conclave/dag"
	"github.com/markkurossi/conclave/placement"
	"github.com/markkurossi/conclave/rel"
	"github.com/markkurossi/conclave/types"
)

// Role specifies the program type a party runs in a job.
type Role int

// Roles.
const (
	RoleParty Role = iota
	RoleServer
)

// Roles define the role names.
var Roles = map[Role]string{
	RoleParty:  "party",
	RoleServer: "server",
}

func (r Role) String() string {
	name, ok := Roles[r]
	if ok {
		return name
	}
	return fmt.Sprintf("{Role %d}", int(r))
}

// ParseRole parses the role name.
func ParseRole(name string) (Role, error) {
	for k, v := range Roles {
		if v == name {
			return k, nil
		}
	}
	return RoleParty, errors.Newf("unknown role: %s", name)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Assignment assigns a role to a party.
type Assignment struct {
	Party types.PartyID
	Role  Role
}

// Backend generates the code of one execution environment.
type Backend interface {
	// Name returns the backend name.
	Name() string
	// Assign returns the party roles of the domain's jobs.
	Assign(domain placement.Domain, cfg *config.Config) ([]Assignment, error)
	// Emitter returns the emitter for the role.
	Emitter(role Role) Emitter
	// Wrap creates the complete program from the concatenated node
	// fragments.
	Wrap(ctx *Context, code string) (string, error)
	// Command returns the command that runs the program file.
	Command(cfg *config.Config, role Role, file string) []string
	// FileName returns the program file name for the role.
	FileName(role Role) string
}

// LocalAssign assigns the party role to the party of a local domain.
func LocalAssign(backend string, domain placement.Domain) (
	[]Assignment, error) {

	party, ok := domain.Parties.Single()
	if domain.MPC || !ok {
		return nil, errors.Newf("%s: unsupported domain %s", backend, domain)
	}
	return []Assignment{
		{
			Party: party,
			Role:  RoleParty,
		},
	}, nil
}

// Backends map backend names to backends.
type Backends map[string]Backend

// NewBackends creates a backend map.
func NewBackends(backends ...Backend) Backends {
	result := make(Backends)
	for _, b := range backends {
		result[b.Name()] = b
	}
	return result
}

// Names returns the backend names in sorted order.
func (b Backends) Names() []string {
	var result []string
	for name := range b {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Context holds the information of the job whose code is emitted.
type Context struct {
	Workflow  string
	Party     types.PartyID
	Role      Role
	Backend   string
	Config    *config.Config
	Graph     *dag.Graph
	Placement *placement.Placement
	Group     *placement.Group
}

// Job returns the job group name.
func (ctx *Context) Job() string {
	return fmt.Sprintf("%s-%s", ctx.Workflow, ctx.Group)
}

// Input returns the idx'th input relation of the node.
func (ctx *Context) Input(n *dag.Node, idx int) *rel.Relation {
	return ctx.Graph.Node(n.Parents[idx]).Out
}

// Inputs returns the relations the group reads from other groups.
func (ctx *Context) Inputs() []*rel.Relation {
	var result []*rel.Relation
	for _, id := range ctx.Group.Inputs {
		result = append(result, ctx.Graph.Node(id).Out)
	}
	return result
}

// Outputs returns the relations the group hands off to other groups.
func (ctx *Context) Outputs() []*rel.Relation {
	var result []*rel.Relation
	for _, id := range ctx.Group.Outputs {
		n := ctx.Graph.Node(id)
		if n.Kind() == dag.KOpen || n.Kind() == dag.KPersist {
			// Sinks write their own results.
			continue
		}
		result = append(result, n.Out)
	}
	return result
}

// Shared tests if the node's output is available as secret shares
// between the parties of an MPC domain.
func (ctx *Context) Shared(id dag.NodeID) bool {
	n := ctx.Graph.Node(id)
	return n.Kind() != dag.KOpen && ctx.Placement.Domains[id].MPC
}

// Holder returns the party holding the node's cleartext output. The
// boolean result is false if the output is secret shared.
func (ctx *Context) Holder(id dag.NodeID) (types.PartyID, bool) {
	n := ctx.Graph.Node(id)
	if open, ok := n.Params.(*dag.Open); ok {
		return open.Target, true
	}
	d := ctx.Placement.Domains[id]
	if d.MPC {
		return 0, false
	}
	return d.Party(), true
}

// Unit is the emitted code of one job.
type Unit struct {
	Backend string
	Group   *placement.Group
	Party   types.PartyID
	Role    Role
	File    string
	Code    string
	Command []string
}

// Generate emits the code of all job groups of the placement. The
// local groups are generated with the configuration's local backend
// and the MPC groups with its MPC backend. The units are returned in
// group order.
func Generate(workflow string, pl *placement.Placement,
	cfg *config.Config, backends Backends) ([]*Unit, error) {

	var result []*Unit

	for _, grp := range pl.Groups {
		name := cfg.LocalBackend
		if grp.Domain.MPC {
			name = cfg.MPCBackend
		}
		backend, ok := backends[name]
		if !ok {
			return nil, errors.Newf("codegen: unknown backend %s", name)
		}
		assignments, err := backend.Assign(grp.Domain, cfg)
		if err != nil {
			n := pl.Graph.Node(grp.Nodes[0])
			return nil, &EmissionError{
				Node:    n.Name,
				Kind:    n.Kind(),
				Backend: name,
				Err:     err,
			}
		}
		for _, a := range assignments {
			ctx := &Context{
				Workflow:  workflow,
				Party:     a.Party,
				Role:      a.Role,
				Backend:   name,
				Config:    cfg,
				Graph:     pl.Graph,
				Placement: pl,
				Group:     grp,
			}
			code, err := generate(ctx, backend.Emitter(a.Role))
			if err != nil {
				return nil, err
			}
			code, err = backend.Wrap(ctx, code)
			if err != nil {
				return nil, errors.Wrapf(err, "codegen: %s", ctx.Job())
			}
			file := backend.FileName(a.Role)
			result = append(result, &Unit{
				Backend: name,
				Group:   grp,
				Party:   a.Party,
				Role:    a.Role,
				File:    file,
				Code:    code,
				Command: backend.Command(cfg, a.Role, file),
			})
		}
	}
	return result, nil
}

func generate(ctx *Context, emitter Emitter) (string, error) {
	var sb strings.Builder
	for _, id := range ctx.Group.Nodes {
		n := ctx.Graph.Node(id)
		fragment, err := Emit(ctx, emitter, n)
		if err != nil {
			return "", err
		}
		if len(fragment) == 0 {
			continue
		}
		sb.WriteString(fragment)
		if !strings.HasSuffix(fragment, "\n") {
			sb.WriteRune('\n')
		}
	}
	return sb.String(), nil
}

// Ident converts the name into a program identifier.
func Ident(name string) string {
	var sb strings.Builder
	for idx, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if idx == 0 {
				sb.WriteRune('_')
			}
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
