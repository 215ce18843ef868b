//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

// Package placement assigns the graph nodes to execution domains and
// partitions the graph into job groups.
package placement

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/conclave/dag"
	"github.com/markkurossi/conclave/types"
)

// Domain specifies where a node is executed: locally by one party or
// under MPC by a set of parties.
type Domain struct {
	MPC     bool
	Parties types.Parties
}

// Local creates a local domain for the party.
func Local(party types.PartyID) Domain {
	return Domain{
		Parties: types.NewParties(party),
	}
}

// MPC creates a multi-party domain for the parties.
func MPC(parties types.Parties) Domain {
	return Domain{
		MPC:     true,
		Parties: parties,
	}
}

// Party returns the party of a local domain.
func (d Domain) Party() types.PartyID {
	return d.Parties.Min()
}

// Equal tests if the domains are equal.
func (d Domain) Equal(o Domain) bool {
	return d.MPC == o.MPC && d.Parties.Equal(o.Parties)
}

func (d Domain) String() string {
	var parts []string
	for _, p := range d.Parties.Array() {
		parts = append(parts, p.String())
	}
	if d.MPC {
		return "mpc" + strings.Join(parts, "_")
	}
	return "local" + strings.Join(parts, "_")
}

// Group is a set of nodes with the same domain and stage. The nodes
// are in topological order.
type Group struct {
	ID     int
	Domain Domain
	Stage  int
	Nodes  []dag.NodeID
	// Deps list the IDs of the groups this group consumes relations
	// from.
	Deps []int
	// Inputs list the nodes outside the group that are consumed by
	// the group.
	Inputs []dag.NodeID
	// Outputs list the group nodes that are consumed outside the
	// group, or have no consumers, or are sinks.
	Outputs []dag.NodeID
}

func (g *Group) String() string {
	return fmt.Sprintf("%d-%s", g.Stage, g.Domain)
}

// Placement holds the node domains and job groups of a graph.
type Placement struct {
	Graph   *dag.Graph
	Domains []Domain
	Stages  []int
	Groups  []*Group
	groupOf []int
}

// GroupOf returns the group of the node.
func (p *Placement) GroupOf(id dag.NodeID) *Group {
	return p.Groups[p.groupOf[id]]
}

// Place computes the placement of the graph nodes.
func Place(g *dag.Graph) (*Placement, error) {
	order := g.TopSort()
	p := &Placement{
		Graph:   g,
		Domains: make([]Domain, g.Len()),
		Stages:  make([]int, g.Len()),
		groupOf: make([]int, g.Len()),
	}

	for _, id := range order {
		d, err := p.domain(g.Node(id))
		if err != nil {
			return nil, err
		}
		p.Domains[id] = d
	}

	// Move inputs that only feed one MPC domain into that domain.
	var moved []dag.NodeID
	for _, id := range order {
		n := g.Node(id)
		if n.Kind() != dag.KCreate {
			continue
		}
		children := g.Children(id)
		if len(children) == 0 {
			continue
		}
		d := p.Domains[children[0]]
		if !d.MPC {
			continue
		}
		same := true
		for _, child := range children[1:] {
			if !p.Domains[child].Equal(d) {
				same = false
				break
			}
		}
		if same {
			p.Domains[id] = d
			moved = append(moved, id)
		}
	}

	for _, id := range order {
		var stage int
		for _, parent := range g.Node(id).Parents {
			s := p.Stages[parent]
			if !p.Domains[parent].Equal(p.Domains[id]) {
				s++
			}
			if s > stage {
				stage = s
			}
		}
		p.Stages[id] = stage
	}
	for _, id := range moved {
		stage := -1
		for _, child := range g.Children(id) {
			if stage < 0 || p.Stages[child] < stage {
				stage = p.Stages[child]
			}
		}
		p.Stages[id] = stage
	}

	p.group(order)

	return p, nil
}

// outDomain returns the domain where the node's output is available.
func (p *Placement) outDomain(n *dag.Node) Domain {
	if open, ok := n.Params.(*dag.Open); ok {
		return Local(open.Target)
	}
	return p.Domains[n.ID]
}

func (p *Placement) domain(n *dag.Node) (Domain, error) {
	g := p.Graph
	switch params := n.Params.(type) {
	case *dag.Create:
		return Local(params.Holder), nil

	case *dag.Open:
		return p.outDomain(g.Node(n.Parents[0])), nil
	}

	var parties types.Parties
	for _, parent := range n.Parents {
		parties = parties.Union(p.outDomain(g.Node(parent)).Parties)
	}
	if cl, ok := n.Params.(*dag.Close); ok {
		parties = parties.Union(cl.Holders)
	} else if n.Kind().Protocol() {
		parties = parties.Union(n.Out.AllVisibility())
	}
	if parties.IsEmpty() {
		return Domain{}, errors.Newf("placement: %s: no parties", n.Name)
	}
	if party, ok := parties.Single(); ok {
		return Local(party), nil
	}
	return MPC(parties), nil
}

func (p *Placement) group(order []dag.NodeID) {
	g := p.Graph
	index := make(map[string]int)

	for _, id := range order {
		key := fmt.Sprintf("%d-%s", p.Stages[id], p.Domains[id])
		gid, ok := index[key]
		if !ok {
			gid = len(p.Groups)
			index[key] = gid
			p.Groups = append(p.Groups, &Group{
				ID:     gid,
				Domain: p.Domains[id],
				Stage:  p.Stages[id],
			})
		}
		p.Groups[gid].Nodes = append(p.Groups[gid].Nodes, id)
		p.groupOf[id] = gid
	}

	for _, grp := range p.Groups {
		deps := make(map[int]bool)
		inputs := make(map[dag.NodeID]bool)
		for _, id := range grp.Nodes {
			n := g.Node(id)
			for _, parent := range n.Parents {
				pg := p.groupOf[parent]
				if pg != grp.ID {
					deps[pg] = true
					inputs[parent] = true
				}
			}
			children := g.Children(id)
			external := len(children) == 0 || n.Kind().Sink()
			for _, child := range children {
				if p.groupOf[child] != grp.ID {
					external = true
				}
			}
			if external {
				grp.Outputs = append(grp.Outputs, id)
			}
		}
		for dep := range deps {
			grp.Deps = append(grp.Deps, dep)
		}
		sort.Ints(grp.Deps)
		for id := range inputs {
			grp.Inputs = append(grp.Inputs, id)
		}
		sort.Slice(grp.Inputs, func(i, j int) bool {
			return grp.Inputs[i] < grp.Inputs[j]
		})
	}
}
