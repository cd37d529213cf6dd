package cfgmodel

import (
	"log"
	"os"
	"strings"

	"github.com/mewkiz/pkg/term"
	gonumflow "gonum.org/v1/gonum/graph/flow"

	"gonum.org/v1/gonum/graph"
)

// dbg logs normalization diagnostics to standard error.
var dbg = log.New(os.Stderr, term.RedBold("cfgmodel:")+" ", 0)

// Normalize runs the full normalization pipeline over g in place: decl-node
// removal, a control-parent consistency check, basic-block tag merging,
// implicit return marking, and dominator/post-dominator computation. It
// corresponds to the fix_graph pipeline of the original tool, reduced to
// the phases that operate on an already-decoded graph (the debug-info
// line-ambiguity phases belong to the upstream collaborator that produces
// the wire format, out of scope here).
func Normalize(g *Graph) error {
	removeDeclNodes(g)
	checkControlParents(g)
	combineBasicBlockTags(g)
	markImplicitReturns(g)
	if err := computeDominators(g); err != nil {
		return err
	}
	return nil
}

// removeDeclNodes deletes every decl-kind node from g: declaration
// bookkeeping nodes carry no executable content and are not part of the CFG
// the solvers classify over. Removing a node drops its incident edges along
// with it.
func removeDeclNodes(g *Graph) {
	for _, id := range g.AllNodeIDs() {
		n := g.nodes[id]
		if n.kind != KindDecl {
			continue
		}
		g.RemoveNode(n.ID())
		delete(g.nodes, id)
	}
}

// checkControlParents warns, without failing, whenever a node is the target
// of control edges (of either scope) from more than one parent: the original tool treats a
// node with several control parents as a soft inconsistency in the source
// graph rather than a fatal error, so a malformed or lossy upstream producer
// doesn't prevent classification from proceeding.
func checkControlParents(g *Graph) {
	parents := make(map[string]map[string]bool)
	for _, id := range g.AllNodeIDs() {
		n := g.nodes[id]
		succs := graph.NodesOf(g.From(n.ID()))
		for _, s := range succs {
			e, ok := g.Edge(n.ID(), s.ID()).(*Edge)
			if !ok || e.Type != TypeControl {
				continue
			}
			sid := node(s).CfgID()
			if parents[sid] == nil {
				parents[sid] = make(map[string]bool)
			}
			parents[sid][id] = true
		}
	}
	for id, ps := range parents {
		if len(ps) > 1 {
			dbg.Printf("node %s has %d control parents", id, len(ps))
		}
	}
}

// combineBasicBlockTags unifies adjacent single-in/single-out basic-block
// tags into one: whenever a node's sole successor has a distinct tag and is
// itself reached by no other node, every node carrying either tag is
// renamed to the combined "srcBlock dstBlock" tag. Unlike
// CollapseBasicBlocks, no node is ever merged or removed here; only the tag
// string changes, so the graph's shape and the solvers' alphabet are
// unaffected.
func combineBasicBlockTags(g *Graph) {
	for _, id := range g.AllNodeIDs() {
		src, ok := g.nodes[id]
		if !ok || src.basicBlock == "" {
			continue
		}
		succs := graph.NodesOf(g.From(src.ID()))
		if len(succs) != 1 {
			continue
		}
		dst := node(succs[0])
		if dst.basicBlock == "" || dst.basicBlock == src.basicBlock {
			continue
		}
		preds := graph.NodesOf(g.To(dst.ID()))
		if len(preds) != 1 {
			continue
		}
		e, ok := g.Edge(src.ID(), dst.ID()).(*Edge)
		if !ok || !IsCFGEdge(e) {
			continue
		}
		srcTok := strings.Fields(src.basicBlock)
		dstTok := strings.Fields(dst.basicBlock)
		if len(srcTok) == 0 || len(dstTok) == 0 {
			continue
		}
		newBB := srcTok[0] + " " + dstTok[len(dstTok)-1]
		oldSrc, oldDst := src.basicBlock, dst.basicBlock
		for _, n := range g.nodes {
			if n.basicBlock == oldSrc || n.basicBlock == oldDst {
				n.basicBlock = newBB
			}
		}
	}
}

// markImplicitReturns marks every normal node whose line set exactly
// matches its procedure's exit node as an implicit return: a node the
// source compiler inserted with no corresponding source statement.
func markImplicitReturns(g *Graph) {
	exitLines := make(map[string][]int) // procedure -> exit node lines
	for _, n := range g.nodes {
		if n.kind == KindExit {
			exitLines[n.procedure] = n.lines
		}
	}
	for _, n := range g.nodes {
		if n.kind != KindNormal {
			continue
		}
		want, ok := exitLines[n.procedure]
		if !ok || len(want) == 0 || len(n.lines) == 0 {
			continue
		}
		if sameLineSet(n.lines, want) {
			n.implicit = true
		}
	}
}

func sameLineSet(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[int]bool, len(a))
	for _, x := range a {
		seen[x] = true
	}
	for _, x := range b {
		if !seen[x] {
			return false
		}
	}
	return true
}

// computeDominators computes forward dominators (from the entry node) and
// post-dominators (over a reversed view of the graph, rooted at the first
// exit-kind node the graph's node iterator yields; with several exit nodes,
// which one is used is not defined), storing each as a bitset keyed by
// dense node index. A node the chosen root does not reach gets a set
// holding only itself.
func computeDominators(g *Graph) error {
	n := g.NumNodes()
	if n == 0 {
		return nil
	}
	if g.entry == nil {
		return nil
	}
	domTree := gonumflow.Dominators(g.entry, g)
	for _, nd := range g.nodes {
		b := newBitset(n)
		var cur graph.Node = nd
		b.set(int(dense(g, cur)))
		for {
			idom := domTree.DominatorOf(cur.ID())
			if idom == nil || idom.ID() == cur.ID() {
				break
			}
			b.set(int(dense(g, idom)))
			cur = idom
		}
		nd.dom = b
	}

	rev := &reversedGraph{g: g}
	exitNodes := graph.NodesOf(g.Nodes())
	var exit graph.Node
	for _, nd := range exitNodes {
		if node(nd).kind == KindExit {
			exit = nd
			break
		}
	}
	if exit == nil {
		return nil
	}
	pdomTree := gonumflow.Dominators(exit, rev)
	for _, nd := range g.nodes {
		b := newBitset(n)
		var cur graph.Node = nd
		b.set(int(dense(g, cur)))
		for {
			idom := pdomTree.DominatorOf(cur.ID())
			if idom == nil || idom.ID() == cur.ID() {
				break
			}
			b.set(int(dense(g, idom)))
			cur = idom
		}
		nd.pdom = b
	}
	return nil
}

func dense(g *Graph, n graph.Node) int {
	return node(n).index
}

func node(n graph.Node) *Node {
	nn, ok := n.(*Node)
	if !ok {
		panic("invalid node type in cfgmodel graph")
	}
	return nn
}

// reversedGraph presents g with every edge direction flipped, used to
// compute post-dominators as ordinary dominators of the reversed graph.
type reversedGraph struct {
	g *Graph
}

func (r *reversedGraph) Node(id int64) graph.Node           { return r.g.Node(id) }
func (r *reversedGraph) Nodes() graph.Nodes                 { return r.g.Nodes() }
func (r *reversedGraph) From(id int64) graph.Nodes          { return r.g.To(id) }
func (r *reversedGraph) To(id int64) graph.Nodes            { return r.g.From(id) }
func (r *reversedGraph) HasEdgeBetween(x, y int64) bool     { return r.g.HasEdgeBetween(x, y) }
func (r *reversedGraph) Edge(u, v int64) graph.Edge         { return r.g.Edge(v, u) }
func (r *reversedGraph) HasEdgeFromTo(u, v int64) bool      { return r.g.HasEdgeFromTo(v, u) }
