//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package dag

import (
	"fmt"
	"io"
	"strings"
)

// Dot creates graphviz dot output of the graph.
func (g *Graph) Dot(out io.Writer) {
	fmt.Fprintf(out, "digraph workflow\n{\n")
	fmt.Fprintf(out, "  overlap=scale;\n")
	fmt.Fprintf(out, "  node\t[fontname=\"Helvetica\"];\n")

	fmt.Fprintf(out, "  {\n    node [shape=box];\n")
	for _, n := range g.nodes {
		shape := ""
		switch {
		case n.Kind() == KCreate:
			shape = ",shape=invhouse"
		case n.Kind().Sink():
			shape = ",shape=house"
		case n.Kind().Protocol():
			shape = ",style=bold"
		}
		fmt.Fprintf(out, "    n%d\t[label=\"%s\\n%s%s\"%s];\n",
			n.ID, n.Name, n.Kind(), n.Out.AllVisibility().Superscript(),
			shape)
	}
	fmt.Fprintf(out, "  }\n")

	fmt.Fprintf(out, "  {  rank=same")
	for _, id := range g.Roots() {
		fmt.Fprintf(out, "; n%d", id)
	}
	fmt.Fprintf(out, ";}\n")

	for _, n := range g.nodes {
		for _, p := range n.Parents {
			fmt.Fprintf(out, "  n%d -> n%d;\n", p, n.ID)
		}
	}
	fmt.Fprintf(out, "}\n")
}

// PP pretty-prints the graph nodes in topological order.
func (g *Graph) PP(out io.Writer) {
	for _, id := range g.TopSort() {
		n := g.nodes[id]
		var parents []string
		for _, p := range n.Parents {
			parents = append(parents, g.nodes[p].Name)
		}
		fmt.Fprintf(out, "%s\t= %s(%s)\n", n.Name, n.Kind(),
			strings.Join(parents, ", "))
		for _, col := range n.Out.Columns {
			fmt.Fprintf(out, "\t%s\t%s\t%s\n", col.Name, col.Type,
				col.Visibility.Superscript())
		}
		if !n.Out.RowMask.IsEmpty() {
			fmt.Fprintf(out, "\t#rows\t\t%s\n", n.Out.RowMask.Superscript())
		}
	}
}
