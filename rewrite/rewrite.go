//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

// Package rewrite implements the protocol selection pass. The pass
// replaces the generic join and aggregate operators with protocol
// variants that are valid for the visibility of their inputs.
package rewrite

import (
	"fmt"

	"github.com/markkurossi/conclave/dag"
	"github.com/markkurossi/conclave/types"
)

// Policy defines the leakage policy of the rewrite.
type Policy struct {
	// UseLeakyOps allows operators that leak the equality pattern
	// of the join keys.
	UseLeakyOps bool
	// Coordinator is the preferred recipient of revealed keys. The
	// value 0 selects the lowest party ID.
	Coordinator types.PartyID
}

// Decision describes the protocol selected for a node.
type Decision struct {
	Node   dag.NodeID
	Name   string
	From   dag.Kind
	To     dag.Kind
	Reason string
}

// Kept tests if the node was left unchanged.
func (d Decision) Kept() bool {
	return d.From == d.To
}

func (d Decision) String() string {
	if d.Kept() {
		return fmt.Sprintf("%s: %s kept: %s", d.Name, d.From, d.Reason)
	}
	return fmt.Sprintf("%s: %s => %s: %s", d.Name, d.From, d.To, d.Reason)
}

// UnsupportedProtocolError reports a node for which no protocol
// variant is valid under the policy.
type UnsupportedProtocolError struct {
	Node   string
	Kind   dag.Kind
	Left   types.Parties
	Right  types.Parties
	Policy Policy
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("unsupported protocol: %s: no %s protocol for key visibility %s and %s (leaky=%v)",
		e.Node, e.Kind, e.Left, e.Right, e.Policy.UseLeakyOps)
}

// Rewrite selects the protocols of the graph's join and aggregate
// nodes in topological order. The function returns the decisions in
// the order they were made. On error, the graph may be partially
// rewritten and it must be discarded.
func Rewrite(g *dag.Graph, policy Policy) ([]Decision, error) {
	var result []Decision

	for _, id := range g.TopSort() {
		n := g.Node(id)
		from := n.Kind()
		var params dag.Params
		var reason string
		var err error

		switch p := n.Params.(type) {
		case *dag.Join:
			params, reason, err = rewriteJoin(g, n, p, policy)
		case *dag.Aggregate:
			params, reason = rewriteAggregate(g, n, p)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		if params != nil {
			if err := g.Replace(id, params); err != nil {
				return nil, err
			}
		}
		result = append(result, Decision{
			Node:   id,
			Name:   n.Name,
			From:   from,
			To:     n.Kind(),
			Reason: reason,
		})
	}
	return result, nil
}

func rewriteJoin(g *dag.Graph, n *dag.Node, p *dag.Join, policy Policy) (
	dag.Params, string, error) {

	left := g.Node(n.Parents[0]).Out
	right := g.Node(n.Parents[1]).Out
	lvis := left.KeyVisibility(p.Left...)
	rvis := right.KeyVisibility(p.Right...)

	lp, lsingle := lvis.Single()
	rp, rsingle := rvis.Single()

	if lsingle && rsingle && lp == rp {
		return nil, fmt.Sprintf("keys visible to party %s", lp), nil
	}
	if lsingle && rsingle && policy.UseLeakyOps {
		recipient := min(lp, rp)
		if policy.Coordinator == lp || policy.Coordinator == rp {
			recipient = policy.Coordinator
		}
		return &dag.RevealJoin{
				JoinKeys:  p.JoinKeys,
				Recipient: recipient,
			}, fmt.Sprintf("keys %s and %s revealed to %s",
				lvis, rvis, recipient),
			nil
	}
	union := lvis.Union(rvis)
	if union.Len() == 2 && (lsingle || rsingle) {
		party := rp
		if lsingle {
			party = lp
		}
		return &dag.IndexJoin{
				JoinKeys:   p.JoinKeys,
				IndexParty: party,
			}, fmt.Sprintf("party %s indexes keys %s", party, union),
			nil
	}
	common := lvis.Intersect(rvis)
	if !common.IsEmpty() {
		return &dag.HybridJoin{
				JoinKeys: p.JoinKeys,
				Trusted:  common.Min(),
			}, fmt.Sprintf("party %s trusted with keys %s", common.Min(),
				union),
			nil
	}
	return nil, "", &UnsupportedProtocolError{
		Node:   n.Name,
		Kind:   n.Kind(),
		Left:   lvis,
		Right:  rvis,
		Policy: policy,
	}
}

func rewriteAggregate(g *dag.Graph, n *dag.Node, p *dag.Aggregate) (
	dag.Params, string) {

	in := g.Node(n.Parents[0]).Out
	keyVis := in.KeyVisibility(p.GroupBy...)
	vis := keyVis.Union(in.KeyVisibility(p.Value))

	if party, ok := vis.Single(); ok {
		return nil, fmt.Sprintf("key and value visible to party %s", party)
	}
	if party, ok := keyVis.Single(); ok {
		return &dag.IndexAggregate{
			Grouping:   p.Grouping,
			IndexParty: party,
		}, fmt.Sprintf("party %s indexes keys, values %s", party, vis)
	}
	return &dag.IndexAggregate{
		Grouping: p.Grouping,
	}, fmt.Sprintf("oblivious index for keys %s", keyVis)
}
