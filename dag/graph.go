//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

// Package dag implements the operator graph of MPC workflows. The
// graph is an arena of nodes addressed by NodeID. Nodes can only be
// added after all their parents exist so the graph is acyclic by
// construction. The output relation and its column visibility are
// computed when the node is added.
package dag

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/markkurossi/conclave/log"
	"github.com/markkurossi/conclave/rel"
)

// NodeID identifies a node in its graph. IDs are assigned in node
// creation order starting from 0.
type NodeID int

func (id NodeID) String() string {
	return fmt.Sprintf("n%d", int(id))
}

// Node is an operator node.
type Node struct {
	ID      NodeID
	Name    string
	Parents []NodeID
	Params  Params
	Out     *rel.Relation
}

// Kind returns the node's operator kind.
func (n *Node) Kind() Kind {
	return n.Params.Kind()
}

func (n *Node) String() string {
	return fmt.Sprintf("%s=%s%v", n.Name, n.Kind(), n.Parents)
}

// Graph is an operator graph.
type Graph struct {
	nodes    []*Node
	children [][]NodeID
	names    map[string]NodeID
	logger   log.Logger
}

// New creates a new empty graph. The logger receives the warnings
// about explicit declassifications. If logger is nil, messages are
// discarded.
func New(logger log.Logger) *Graph {
	if logger == nil {
		logger = log.Nop()
	}
	return &Graph{
		names:  make(map[string]NodeID),
		logger: logger,
	}
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node by its ID. The function returns nil if the
// ID is not valid.
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// Nodes returns the graph nodes in creation order.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Lookup finds the node by its name.
func (g *Graph) Lookup(name string) (NodeID, bool) {
	id, ok := g.names[name]
	return id, ok
}

// Children returns the consumers of the node in creation order.
func (g *Graph) Children(id NodeID) []NodeID {
	return g.children[id]
}

// Roots returns the root nodes of the graph.
func (g *Graph) Roots() []NodeID {
	var result []NodeID
	for _, n := range g.nodes {
		if len(n.Parents) == 0 {
			result = append(result, n.ID)
		}
	}
	return result
}

// AddNode adds a new node to the graph. The node's kind is defined by
// its params. The function returns a SchemaError if the parent
// references or the column references of params are invalid and a
// VisibilityError if the node would reveal data to a party not
// entitled to see it.
func (g *Graph) AddNode(name string, parents []NodeID, params Params) (
	NodeID, error) {

	if len(name) == 0 {
		return 0, schemaErrorf("<unnamed>", "node name is empty")
	}
	if _, ok := g.names[name]; ok {
		return 0, schemaErrorf(name, "relation name already defined")
	}
	if params == nil {
		return 0, schemaErrorf(name, "no params")
	}
	ins, err := g.parents(name, params.Kind(), parents)
	if err != nil {
		return 0, err
	}
	out, err := derive(name, ins, params)
	if err != nil {
		return 0, err
	}
	if open, ok := params.(*Open); ok && open.Declassify {
		g.logger.Warnw("declassification", "node", name,
			"target", int(open.Target), "visibility",
			ins[0].Out.AllVisibility().String())
	}

	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, &Node{
		ID:      id,
		Name:    name,
		Parents: append([]NodeID{}, parents...),
		Params:  params,
		Out:     out,
	})
	g.children = append(g.children, nil)
	for _, p := range parents {
		g.children[p] = append(g.children[p], id)
	}
	g.names[name] = id

	return id, nil
}

func (g *Graph) parents(name string, kind Kind, ids []NodeID) (
	[]*Node, error) {

	lo, hi := kind.arity()
	if len(ids) < lo || (hi >= 0 && len(ids) > hi) {
		return nil, schemaErrorf(name, "%s: invalid number of inputs: %d",
			kind, len(ids))
	}
	var result []*Node
	for _, id := range ids {
		n := g.Node(id)
		if n == nil {
			return nil, schemaErrorf(name, "unknown input node %s", id)
		}
		result = append(result, n)
	}
	return result, nil
}

// Replace replaces the params of the node. The replacement params
// must produce an identical output relation from the node's parents.
func (g *Graph) Replace(id NodeID, params Params) error {
	n := g.Node(id)
	if n == nil {
		return schemaErrorf(id.String(), "unknown node")
	}
	ins, err := g.parents(n.Name, params.Kind(), n.Parents)
	if err != nil {
		return err
	}
	out, err := derive(n.Name, ins, params)
	if err != nil {
		return err
	}
	if !out.Equal(n.Out) {
		return schemaErrorf(n.Name, "%s changes output %s to %s",
			params.Kind(), n.Out, out)
	}
	n.Params = params
	return nil
}

// TopSort returns the graph nodes in topological order. Independent
// nodes are ordered by their creation order.
func (g *Graph) TopSort() []NodeID {
	inDegree := make([]int, len(g.nodes))
	var ready idHeap
	for _, n := range g.nodes {
		inDegree[n.ID] = len(n.Parents)
		if inDegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}
	heap.Init(&ready)

	result := make([]NodeID, 0, len(g.nodes))
	for ready.Len() > 0 {
		id := heap.Pop(&ready).(NodeID)
		result = append(result, id)
		for _, child := range g.children[id] {
			inDegree[child]--
			if inDegree[child] == 0 {
				heap.Push(&ready, child)
			}
		}
	}
	return result
}

// Live returns the nodes that are reachable from the roots and from
// which a sink (Open or Persist) is reachable. If no sink is
// reachable from the roots, all nodes reachable from the roots are
// returned. The result is in creation order.
func (g *Graph) Live(roots []NodeID) []NodeID {
	forward := make(map[NodeID]bool)
	stack := append([]NodeID{}, roots...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if forward[id] || g.Node(id) == nil {
			continue
		}
		forward[id] = true
		stack = append(stack, g.children[id]...)
	}

	backward := make(map[NodeID]bool)
	for id := range forward {
		if g.nodes[id].Kind().Sink() {
			stack = append(stack, id)
		}
	}
	live := forward
	if len(stack) > 0 {
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if backward[id] {
				continue
			}
			backward[id] = true
			stack = append(stack, g.nodes[id].Parents...)
		}
		live = make(map[NodeID]bool)
		for id := range forward {
			if backward[id] {
				live[id] = true
			}
		}
	}

	var result []NodeID
	for id := range live {
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i] < result[j]
	})
	return result
}

// Prune returns a new graph containing only the argument nodes. The
// argument set must be closed under parents. The nodes keep their
// creation order but they are assigned new IDs.
func (g *Graph) Prune(ids []NodeID) (*Graph, error) {
	keep := append([]NodeID{}, ids...)
	sort.Slice(keep, func(i, j int) bool {
		return keep[i] < keep[j]
	})
	result := New(g.logger)
	mapping := make(map[NodeID]NodeID)

	for _, id := range keep {
		n := g.Node(id)
		if n == nil {
			return nil, schemaErrorf(id.String(), "unknown node")
		}
		if _, ok := mapping[id]; ok {
			continue
		}
		var parents []NodeID
		for _, p := range n.Parents {
			mapped, ok := mapping[p]
			if !ok {
				return nil, schemaErrorf(n.Name, "input %s not retained",
					g.nodes[p].Name)
			}
			parents = append(parents, mapped)
		}
		newID := NodeID(len(result.nodes))
		result.nodes = append(result.nodes, &Node{
			ID:      newID,
			Name:    n.Name,
			Parents: parents,
			Params:  n.Params,
			Out:     n.Out,
		})
		result.children = append(result.children, nil)
		for _, p := range parents {
			result.children[p] = append(result.children[p], newID)
		}
		result.names[n.Name] = newID
		mapping[id] = newID
	}
	return result, nil
}

type idHeap []NodeID

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *idHeap) Push(x interface{}) {
	*h = append(*h, x.(NodeID))
}

func (h *idHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
