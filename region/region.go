// Package region validates reachability of a control flow graph and finds
// the maximal single-entry intervals within it.
package region

import (
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/traverse"
)

// A Graph is a directed graph in which every node is reachable by a path
// from the entry node.
type Graph interface {
	graph.Directed
	// Entry returns the entry node of the graph.
	Entry() graph.Node
}

type cfg struct {
	graph.Directed
	entry graph.Node
}

// NewGraph validates that every node of g is reachable from entry and
// returns a Graph wrapping g. It panics if a node is unreachable, since an
// unreachable node violates the structural invariant every caller relies on.
func NewGraph(g graph.Directed, entry graph.Node) Graph {
	df := &traverse.DepthFirst{}
	df.Walk(g, entry, nil)
	for _, n := range graph.NodesOf(g.Nodes()) {
		if !df.Visited(n) {
			panic(fmt.Errorf("invalid control flow graph; node %v not reachable from entry node %v", n, entry))
		}
	}
	return &cfg{Directed: g, entry: entry}
}

// Entry returns the entry node of the graph.
func (g *cfg) Entry() graph.Node {
	return g.entry
}
