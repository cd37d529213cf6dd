// ref: Allen, Frances E., and John Cocke. "A program data flow analysis
// procedure." Communications of the ACM 19.3 (1976): 137.

package region

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
)

// Intervals returns the maximal single-entry intervals of g, rooted at
// entry, using the Allen-Cocke interval-finding algorithm.
func Intervals(g graph.Directed, entry graph.Node) []*Interval {
	var intervals []*Interval
	H := newQueue()
	H.push(entry)
	for !H.empty() {
		h := H.pop()
		I := newInterval(g, h)
		for {
			n, ok := find2_2(g, entry, I)
			if !ok {
				break
			}
			I.addNode(n)
		}
		for {
			n, ok := find3(g, entry, I, H)
			if !ok {
				break
			}
			H.push(n)
		}
		intervals = append(intervals, I)
	}
	return intervals
}

// SameInterval reports whether u and v belong to the same interval in any
// of the given intervals, used as a conservative safety check before
// collapsing two nodes into a basic block.
func SameInterval(intervals []*Interval, u, v int64) bool {
	for _, I := range intervals {
		if I.Node(u) != nil && I.Node(v) != nil {
			return true
		}
	}
	return false
}

func find2_2(g graph.Directed, entry graph.Node, I *Interval) (graph.Node, bool) {
loop:
	for _, n := range sortByID(graph.NodesOf(g.Nodes())) {
		if n == entry {
			continue
		}
		if I.Node(n.ID()) != nil {
			continue
		}
		preds := g.To(n.ID())
		if preds.Len() == 0 {
			panic(fmt.Errorf("invalid node %v; missing predecessors", n))
		}
		for preds.Next() {
			pred := preds.Node()
			if I.Node(pred.ID()) == nil {
				continue loop
			}
		}
		return n, true
	}
	return nil, false
}

func find3(g graph.Directed, entry graph.Node, I *Interval, H *queue) (graph.Node, bool) {
	for _, n := range sortByID(graph.NodesOf(g.Nodes())) {
		if H.has(n) {
			continue
		}
		if I.Node(n.ID()) != nil {
			continue
		}
		preds := g.To(n.ID())
		if preds.Len() == 0 {
			panic(fmt.Errorf("invalid node %v; missing predecessors", n))
		}
		for preds.Next() {
			pred := preds.Node()
			if I.Node(pred.ID()) != nil {
				return n, true
			}
		}
	}
	return nil, false
}

func sortByID(nodes []graph.Node) []graph.Node {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	return nodes
}

// An Interval I(h) is the maximal, single-entry subgraph in which h is the
// only entry node and in which all closed paths contain h.
type Interval struct {
	g     graph.Directed
	Head  graph.Node
	nodes map[int64]graph.Node
}

func newInterval(g graph.Directed, head graph.Node) *Interval {
	return &Interval{
		g:    g,
		Head: head,
		nodes: map[int64]graph.Node{
			head.ID(): head,
		},
	}
}

func (I *Interval) addNode(n graph.Node) {
	I.nodes[n.ID()] = n
}

// Node returns the node with the given ID if it exists in the interval.
func (I *Interval) Node(id int64) graph.Node {
	return I.nodes[id]
}

// Nodes returns all nodes in the interval.
func (I *Interval) Nodes() graph.Nodes {
	var nodes []graph.Node
	for _, n := range I.nodes {
		nodes = append(nodes, n)
	}
	return iterator.NewOrderedNodes(sortByID(nodes))
}

// From returns all nodes directly reachable from the given node.
func (I *Interval) From(id int64) graph.Nodes { return I.g.From(id) }

// HasEdgeBetween returns whether an edge exists between x and y.
func (I *Interval) HasEdgeBetween(xid, yid int64) bool { return I.g.HasEdgeBetween(xid, yid) }

// Edge returns the edge from u to v, if any.
func (I *Interval) Edge(uid, vid int64) graph.Edge { return I.g.Edge(uid, vid) }

// HasEdgeFromTo returns whether an edge exists from u to v.
func (I *Interval) HasEdgeFromTo(uid, vid int64) bool { return I.g.HasEdgeFromTo(uid, vid) }

// To returns all nodes that reach directly to the given node.
func (I *Interval) To(id int64) graph.Nodes { return I.g.To(id) }

// A queue is a FIFO queue of nodes with deduplication.
type queue struct {
	l []graph.Node
	i int
}

func newQueue() *queue { return &queue{l: make([]graph.Node, 0)} }

func (q *queue) push(n graph.Node) {
	if !q.has(n) {
		q.l = append(q.l, n)
	}
}

func (q *queue) has(n graph.Node) bool {
	for _, m := range q.l {
		if n == m {
			return true
		}
	}
	return false
}

func (q *queue) pop() graph.Node {
	if q.empty() {
		panic("invalid call to pop; empty queue")
	}
	n := q.l[q.i]
	q.i++
	return n
}

func (q *queue) empty() bool { return len(q.l[q.i:]) == 0 }
