// Package cfgmodel provides the normalized control flow graph model that
// every execution solver classifies nodes over: decode from the wire
// format, run the normalization pipeline, collapse basic blocks, and query
// the result.
package cfgmodel

import (
	"fmt"
	"sort"

	"bitbucket.org/zombiezen/cardcpx/natsort"
	"github.com/graphism/simple"
	"gonum.org/v1/gonum/graph"
)

// Node kinds, mirroring the vocabulary of the wire format.
const (
	KindEntry    = "entry"
	KindExit     = "exit"
	KindCall     = "call"
	KindCallSite = "callsite"
	KindNormal   = "normal"
	KindDecl     = "decl"
)

// Edge types.
const (
	TypeFlow    = "flow"
	TypeControl = "control"
	TypeData    = "data"
)

// Edge scopes.
const (
	ScopeIntraprocedural = "intraprocedural"
	ScopeInterprocedural = "interprocedural"
)

// Graph is a normalized control flow graph, possibly spanning several
// procedures linked by interprocedural call/return edges.
type Graph struct {
	*simple.DirectedGraph
	id    string
	entry *Node
	// nodes maps from semantic node ID to graph node.
	nodes map[string]*Node
	// next dense index handed out to new nodes, used to size bitsets.
	nextIndex int
}

// NewGraph returns a new, empty control flow graph.
func NewGraph() *Graph {
	return &Graph{
		DirectedGraph: simple.NewDirectedGraph(),
		nodes:         make(map[string]*Node),
	}
}

// DOTID returns the graph ID.
func (g *Graph) DOTID() string { return g.id }

// SetDOTID sets the graph ID.
func (g *Graph) SetDOTID(id string) { g.id = id }

// NewNode returns a new node with a graph-unique dense ID and no semantic
// attributes set.
func (g *Graph) NewNode() graph.Node {
	n := &Node{
		Node:  g.DirectedGraph.NewNode(),
		index: g.nextIndex,
	}
	g.nextIndex++
	return n
}

// AddNode adds n to the graph. If n.ID (the semantic CFG node id) is
// already present, AddNode panics: duplicate ids violate the one node per
// id invariant every lookup in this package relies on.
func (g *Graph) AddNode(n graph.Node) {
	nn, ok := n.(*Node)
	if !ok {
		panic(fmt.Errorf("invalid node type; expected *cfgmodel.Node, got %T", n))
	}
	if len(nn.id) > 0 {
		if prev, ok := g.nodes[nn.id]; ok {
			panic(fmt.Errorf("node id %q already present in graph; prev %#v, new %#v", nn.id, prev, nn))
		}
		g.nodes[nn.id] = nn
	}
	g.DirectedGraph.AddNode(nn)
	// A graph spanning several procedures carries one entry-kind node per
	// procedure; only the node named by the wire format's programStart (or
	// explicitly assigned by a caller like Copy) is the graph's entry, so
	// the first one merely seeds a default that such an explicit
	// assignment is expected to overwrite.
	if g.entry == nil && nn.kind == KindEntry {
		g.entry = nn
	}
}

// NewEdge returns a new edge from the source to the destination node.
func (g *Graph) NewEdge(from, to graph.Node) graph.Edge {
	return &Edge{Edge: g.DirectedGraph.NewEdge(from, to)}
}

// SetEdge adds an edge from one node to another, adding endpoints that are
// not yet present in the graph.
func (g *Graph) SetEdge(e graph.Edge) {
	ee, ok := e.(*Edge)
	if !ok {
		panic(fmt.Errorf("invalid edge type; expected *cfgmodel.Edge, got %T", e))
	}
	from, to := ee.From(), ee.To()
	if !g.Has(from) {
		g.AddNode(from)
	}
	if !g.Has(to) {
		g.AddNode(to)
	}
	g.DirectedGraph.SetEdge(ee)
}

// Entry returns the entry node of the graph, or nil if none is set.
func (g *Graph) Entry() graph.Node {
	if g.entry == nil {
		return nil
	}
	return g.entry
}

// NodeWithID returns the node with the given semantic CFG node id.
func (g *Graph) NodeWithID(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// MustNode returns the node with the given semantic id, panicking if it is
// absent. Callers use this only after validating the id exists, e.g. when
// resolving ids parsed from a failure report against a graph already known
// to contain them.
func (g *Graph) MustNode(id string) *Node {
	n, ok := g.nodes[id]
	if !ok {
		panic(fmt.Errorf("node id %q not present in graph", id))
	}
	return n
}

// NumNodes returns the number of dense node indices ever handed out,
// used to size bitsets.
func (g *Graph) NumNodes() int { return g.nextIndex }

// AllNodeIDs returns every node's semantic id, sorted using natural order
// (numeric substrings compared as numbers, not lexicographically) so that
// output is deterministic and matches the sort order of the original tool.
func (g *Graph) AllNodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return natsort.Less(ids[i], ids[j]) })
	return ids
}

// IsCFGEdge reports whether e belongs to the executable control flow
// skeleton the solvers build over: every intraprocedural flow edge, plus
// interprocedural control edges (calls and their matching returns). Data
// edges and intraprocedural control edges (e.g. def-use bookkeeping) are
// never part of it.
func IsCFGEdge(e *Edge) bool {
	if e.Type == TypeFlow {
		return true
	}
	return e.Type == TypeControl && e.Scope == ScopeInterprocedural
}

// NodesInProcedure returns the ids of every node belonging to procedure,
// sorted in natural order.
func (g *Graph) NodesInProcedure(procedure string) []string {
	var ids []string
	for id, n := range g.nodes {
		if n.procedure == procedure {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return natsort.Less(ids[i], ids[j]) })
	return ids
}

// NodeWithCsiLabel returns the node carrying the given coverage
// instrumentation label, if any.
func (g *Graph) NodeWithCsiLabel(label string) (*Node, bool) {
	for _, n := range g.nodes {
		if n.csiLabel == label {
			return n, true
		}
	}
	return nil, false
}

// NodesOnLine returns the ids of every node in procedure whose line set
// includes line, sorted in natural order.
func (g *Graph) NodesOnLine(procedure string, line int) []string {
	var ids []string
	for id, n := range g.nodes {
		if n.procedure != procedure {
			continue
		}
		for _, l := range n.lines {
			if l == line {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return natsort.Less(ids[i], ids[j]) })
	return ids
}

// NodesOfKind returns the ids of every node of the given kind, sorted in
// natural order.
func (g *Graph) NodesOfKind(kind string) []string {
	var ids []string
	for id, n := range g.nodes {
		if n.kind == kind {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return natsort.Less(ids[i], ids[j]) })
	return ids
}

// IsCfgNode reports whether n has at least one flow-typed edge, either
// incoming or outgoing; nodes with no flow edges (e.g. pure data/def-use
// bookkeeping nodes) are not part of the executable control flow skeleton.
func (g *Graph) IsCfgNode(n *Node) bool {
	out := g.From(n.ID())
	for out.Next() {
		e := g.Edge(n.ID(), out.Node().ID())
		if ee, ok := e.(*Edge); ok && ee.Type == TypeFlow {
			return true
		}
	}
	in := g.To(n.ID())
	for in.Next() {
		e := g.Edge(in.Node().ID(), n.ID())
		if ee, ok := e.(*Edge); ok && ee.Type == TypeFlow {
			return true
		}
	}
	return false
}

// === [ Node ] ================================================================

// Node is a node in a control flow graph.
type Node struct {
	graph.Node
	index int

	id         string
	kind       string
	procedure  string
	file       string
	lines      []int
	basicBlock string
	csiLabel   string
	syntax     string
	collapsed  []string
	implicit   bool

	dom  *bitset
	pdom *bitset
}

// ID returns the dense graph-assigned ID of the node (distinct from its
// semantic CFG node id, see Node.CfgID).
func (n *Node) ID() int64 { return n.Node.ID() }

// CfgID returns the semantic CFG node id (e.g. "n:0:12").
func (n *Node) CfgID() string { return n.id }

// Kind returns the node kind (entry, exit, call, callsite, normal).
func (n *Node) Kind() string { return n.kind }

// Procedure returns the name of the procedure the node belongs to.
func (n *Node) Procedure() string { return n.procedure }

// File returns the source file the node belongs to.
func (n *Node) File() string { return n.file }

// Lines returns the source line numbers associated with the node.
func (n *Node) Lines() []int { return n.lines }

// BasicBlock returns the basic-block label of the node.
func (n *Node) BasicBlock() string { return n.basicBlock }

// CsiLabel returns the coverage-instrumentation label of the node, if any.
func (n *Node) CsiLabel() string { return n.csiLabel }

// Syntax returns the source syntax kind recorded for the node (e.g. "if",
// "for", "call"), if any.
func (n *Node) Syntax() string { return n.syntax }

// CollapsedNodes returns the semantic ids of nodes absorbed into this node
// by basic-block collapse, in absorption order. Empty for an uncollapsed
// node.
func (n *Node) CollapsedNodes() []string { return n.collapsed }

// Implicit reports whether the node is an implicit return, i.e. a normal
// node whose line set exactly matches its procedure's exit node.
func (n *Node) Implicit() bool { return n.implicit }

// Dominators returns the semantic ids of nodes that dominate n, including n
// itself, sorted in natural order.
func (n *Node) Dominators(g *Graph) []string {
	return idsFromBitset(g, n.dom)
}

// PostDominators returns the semantic ids of nodes that post-dominate n,
// including n itself, sorted in natural order.
func (n *Node) PostDominators(g *Graph) []string {
	return idsFromBitset(g, n.pdom)
}

func idsFromBitset(g *Graph, b *bitset) []string {
	if b == nil {
		return nil
	}
	var ids []string
	for _, idx := range b.indices() {
		for id, n := range g.nodes {
			if n.index == idx {
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return natsort.Less(ids[i], ids[j]) })
	return ids
}

// --- [ dot.Node ] ------------------------------------------------------------

// DOTID returns the DOT/display id of the node.
func (n *Node) DOTID() string { return n.id }

// === [ Edge ] ================================================================

// Edge is an edge in a control flow graph.
type Edge struct {
	graph.Edge
	Type  string
	Scope string
	When  string
}
