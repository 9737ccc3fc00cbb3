// Package hierarchy exports the class hierarchy recorded in a symbol table
// as a lattice graph.
package hierarchy

import (
	"strings"

	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"github.com/daimatz/jremap/pkg/mapping"
)

// Graph builds a graph with one node per class whose real name starts with
// prefix (every class when prefix is empty) and an edge from each class to
// its superclass and to each interface it implements.
func Graph(t *mapping.Table, prefix string) *lattice.Graph {
	g := &lattice.Graph{}
	for _, c := range t.Classes() {
		if !strings.HasPrefix(c.Name, prefix) {
			continue
		}
		g.Nodes = append(g.Nodes, c.Name)
		if c.Parent != nil {
			g.Edges = append(g.Edges, lattice.Edge{Caller: c.Name, Callee: c.Parent.Name})
		}
		for _, itf := range c.Interfaces {
			g.Edges = append(g.Edges, lattice.Edge{Caller: c.Name, Callee: itf.Name})
		}
	}
	g.Dedup()
	return g
}

// DOT renders Graph(t, prefix) in Graphviz format.
func DOT(t *mapping.Table, prefix string) string {
	return render.DOT(Graph(t, prefix), "hierarchy")
}
