// Package utl implements the until-list execution solver: the control flow
// graph is condensed into its strongly connected components, and
// satisfiability is decided by propagating, in reverse topological order
// from the crash component back to the entry component, how much of each
// observation vector remains to be matched.
package utl

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
)

// condensation is the SCC-condensed view of a CFG-only subgraph: every
// original node maps to the index of the SCC that contains it, and edges
// exist between distinct SCCs whenever an edge exists between any of their
// members.
type condensation struct {
	sccOf    map[string]int        // node id -> scc index
	members  [][]string            // scc index -> member node ids
	dag      *simple.DirectedGraph // nodes are scc indices (as int64)
	entrySCC int
	crashSCC int
}

// buildCondensation computes the SCC condensation of the CFG-only working
// graph (flow edges plus interprocedural control edges), then prunes every component that is not both
// forward-reachable from the entry component and backward-reachable from
// the crash component.
func buildCondensation(cf *cfgOnly, entryID, crashID string) (*condensation, bool) {
	sccs := topo.TarjanSCC(cf)
	sccOf := make(map[string]int)
	members := make([][]string, len(sccs))
	for i, scc := range sccs {
		for _, n := range scc {
			id := cf.idOf(n.ID())
			sccOf[id] = i
			members[i] = append(members[i], id)
		}
	}

	dag := simple.NewDirectedGraph()
	for i := range sccs {
		dag.AddNode(simple.Node(int64(i)))
	}
	for _, id := range cf.ids {
		u := sccOf[id]
		nd, ok := cf.nodeOf(id)
		if !ok {
			continue
		}
		succs := graph.NodesOf(cf.From(nd.ID()))
		for _, s := range succs {
			v := sccOf[cf.idOf(s.ID())]
			if u == v {
				continue
			}
			if !dag.HasEdgeFromTo(int64(u), int64(v)) {
				dag.SetEdge(simple.Edge{F: simple.Node(int64(u)), T: simple.Node(int64(v))})
			}
		}
	}

	entrySCC, ok := sccOf[entryID]
	if !ok {
		return nil, false
	}
	crashSCC, ok := sccOf[crashID]
	if !ok {
		return nil, false
	}

	fwd := &traverse.BreadthFirst{}
	fwd.Walk(dag, simple.Node(int64(entrySCC)), nil)
	rev := reverseOf(dag)
	bwd := &traverse.BreadthFirst{}
	bwd.Walk(rev, simple.Node(int64(crashSCC)), nil)

	keep := make(map[int64]bool)
	for _, n := range graph.NodesOf(dag.Nodes()) {
		if fwd.Visited(n) && bwd.Visited(n) {
			keep[n.ID()] = true
		}
	}
	if !keep[int64(entrySCC)] || !keep[int64(crashSCC)] {
		return nil, false
	}
	for _, n := range graph.NodesOf(dag.Nodes()) {
		if !keep[n.ID()] {
			dag.RemoveNode(n.ID())
		}
	}

	return &condensation{
		sccOf:    sccOf,
		members:  members,
		dag:      dag,
		entrySCC: entrySCC,
		crashSCC: crashSCC,
	}, true
}

// reverseTopoOrder returns the condensation's SCC indices ordered so that
// the crash component comes first and the entry component comes last:
// the reverse of the topological order computed by gonum's topo.Sort.
func (c *condensation) reverseTopoOrder() []int64 {
	order, err := topo.Sort(c.dag)
	if err != nil {
		// A cycle between distinct SCCs cannot occur: TarjanSCC already
		// merged every cycle into a single component.
		panic(err)
	}
	out := make([]int64, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		out = append(out, order[i].ID())
	}
	return out
}

// predecessors returns the SCC indices with an edge into scc.
func (c *condensation) predecessors(scc int64) []int64 {
	var out []int64
	for _, n := range graph.NodesOf(c.dag.To(scc)) {
		out = append(out, n.ID())
	}
	return out
}

func reverseOf(g *simple.DirectedGraph) graph.Directed {
	r := simple.NewDirectedGraph()
	for _, n := range graph.NodesOf(g.Nodes()) {
		if !r.Has(n.ID()) {
			r.AddNode(n)
		}
	}
	for _, u := range graph.NodesOf(g.Nodes()) {
		succs := graph.NodesOf(g.From(u.ID()))
		for _, v := range succs {
			r.SetEdge(simple.Edge{F: v, T: u})
		}
	}
	return r
}
