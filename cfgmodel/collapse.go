package cfgmodel

import (
	"gonum.org/v1/gonum/graph"

	"github.com/crashwalk/crashwalk/region"
)

// CollapseBasicBlocks merges chains of nodes that have exactly one
// predecessor and one successor into a single node, shrinking the graph
// the solvers operate over without changing its accepted language. exclude
// names node ids that must never be merged away (e.g. every node
// appearing in a failure report); true call-sites are merged into their
// basic block only when combineCalls is set.
//
// It returns a new graph; g is left unmodified.
func CollapseBasicBlocks(g *Graph, exclude map[string]bool, combineCalls bool) *Graph {
	out := Copy(g)
	intervals := region.Intervals(out, out.Entry())
	for {
		src, dst, ok := findCollapsible(out, exclude, combineCalls, intervals)
		if !ok {
			break
		}
		mergeInto(out, src, dst)
	}
	return out
}

// findCollapsible finds an edge (src, dst) eligible for collapse: dst has
// exactly one predecessor (src), src has exactly one successor (dst), dst
// is not excluded, dst is not an entry/exit node, and (unless combineCalls)
// dst is not a true call-site.
func findCollapsible(g *Graph, exclude map[string]bool, combineCalls bool, intervals []*region.Interval) (*Node, *Node, bool) {
	for _, id := range g.AllNodeIDs() {
		src := g.nodes[id]
		if src == nil {
			continue
		}
		succs := graph.NodesOf(g.From(src.ID()))
		if len(succs) != 1 {
			continue
		}
		dst := node(succs[0])
		if dst.CfgID() == src.CfgID() {
			continue // self loop
		}
		if exclude[dst.CfgID()] {
			continue
		}
		if dst.kind == KindEntry || dst.kind == KindExit {
			continue
		}
		if !combineCalls && (dst.kind == KindCall || dst.kind == KindCallSite) {
			continue
		}
		preds := graph.NodesOf(g.To(dst.ID()))
		if len(preds) != 1 {
			continue
		}
		if !region.SameInterval(intervals, src.ID(), dst.ID()) {
			continue
		}
		e, ok := g.Edge(src.ID(), dst.ID()).(*Edge)
		if !ok || e.Type != TypeFlow {
			continue
		}
		return src, dst, true
	}
	return nil, nil, false
}

// mergeInto absorbs dst into src: src gains dst's outgoing edges, dst's
// lines and collapsed-node history, and dst is removed from the graph.
func mergeInto(g *Graph, src, dst *Node) {
	succs := graph.NodesOf(g.From(dst.ID()))
	for _, s := range succs {
		e := g.Edge(dst.ID(), s.ID()).(*Edge)
		ne := &Edge{
			Edge:  g.DirectedGraph.NewEdge(src, s),
			Type:  e.Type,
			Scope: e.Scope,
			When:  e.When,
		}
		g.DirectedGraph.SetEdge(ne)
	}
	src.lines = append(append([]int{}, src.lines...), dst.lines...)
	src.collapsed = append(append([]string{}, src.collapsed...), dst.CfgID())
	src.collapsed = append(src.collapsed, dst.collapsed...)
	if dst.implicit {
		src.implicit = true
	}
	g.RemoveNode(dst.ID())
	delete(g.nodes, dst.CfgID())
}

// Copy returns a copy of g: nodes and edges are duplicated, each node's
// lines and collapsed-node slices are copied, and its other attributes are
// plain values.
func Copy(src *Graph) *Graph {
	dst := NewGraph()
	dst.id = src.id
	dst.nextIndex = src.nextIndex
	remap := make(map[int64]*Node, len(src.nodes))
	for _, id := range src.AllNodeIDs() {
		n := src.nodes[id]
		nn := &Node{
			Node:       dst.DirectedGraph.NewNode(),
			index:      n.index,
			id:         n.id,
			kind:       n.kind,
			procedure:  n.procedure,
			file:       n.file,
			lines:      append([]int{}, n.lines...),
			basicBlock: n.basicBlock,
			csiLabel:   n.csiLabel,
			syntax:     n.syntax,
			collapsed:  append([]string{}, n.collapsed...),
			implicit:   n.implicit,
		}
		dst.AddNode(nn)
		remap[n.ID()] = nn
	}
	if src.entry != nil {
		dst.entry = remap[src.entry.ID()]
	}
	for _, id := range src.AllNodeIDs() {
		n := src.nodes[id]
		succs := graph.NodesOf(src.From(n.ID()))
		for _, s := range succs {
			e := src.Edge(n.ID(), s.ID()).(*Edge)
			ne := &Edge{
				Edge:  dst.DirectedGraph.NewEdge(remap[n.ID()], remap[s.ID()]),
				Type:  e.Type,
				Scope: e.Scope,
				When:  e.When,
			}
			dst.DirectedGraph.SetEdge(ne)
		}
	}
	return dst
}

// ExpandToOriginal maps a set of (possibly collapsed) node ids to the full
// set of original node ids they represent, recursively including any
// collapsed-node history. Used to uncollapse a classification result
// before reporting it.
func ExpandToOriginal(g *Graph, ids map[string]bool) map[string]bool {
	out := make(map[string]bool, len(ids))
	for id := range ids {
		n, ok := g.nodes[id]
		if !ok {
			out[id] = true
			continue
		}
		out[id] = true
		for _, c := range n.collapsed {
			out[c] = true
		}
	}
	return out
}
