package utl

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/crashwalk/crashwalk/cfgmodel"
)

// cfgOnly is a private copy of a cfgmodel.Graph keeping only the edges
// cfgmodel.IsCFGEdge admits (flow edges and interprocedural control edges), built once
// per solver and then mutated (nodes removed) as obsNo constraints arrive,
// mirroring the original solver's own private graph copy.
type cfgOnly struct {
	*simple.DirectedGraph
	idOfID map[int64]string
	idOfS  map[string]int64
	ids    []string
}

func newCfgOnly(g *cfgmodel.Graph) *cfgOnly {
	cf := &cfgOnly{
		DirectedGraph: simple.NewDirectedGraph(),
		idOfID:        make(map[int64]string),
		idOfS:         make(map[string]int64),
	}
	for _, id := range g.AllNodeIDs() {
		n := g.MustNode(id)
		cf.AddNode(simple.Node(n.ID()))
		cf.idOfID[n.ID()] = id
		cf.idOfS[id] = n.ID()
		cf.ids = append(cf.ids, id)
	}
	for _, id := range g.AllNodeIDs() {
		n := g.MustNode(id)
		succs := graph.NodesOf(g.From(n.ID()))
		for _, s := range succs {
			e, ok := g.Edge(n.ID(), s.ID()).(*cfgmodel.Edge)
			if !ok || !cfgmodel.IsCFGEdge(e) {
				continue
			}
			cf.SetEdge(simple.Edge{F: simple.Node(n.ID()), T: simple.Node(s.ID())})
		}
	}
	return cf
}

func (cf *cfgOnly) idOf(id int64) string { return cf.idOfID[id] }

func (cf *cfgOnly) nodeOf(id string) (graph.Node, bool) {
	gid, ok := cf.idOfS[id]
	if !ok {
		return nil, false
	}
	return cf.Node(gid), true
}

// removeNode deletes the node with the given CFG node id from the working
// graph, used to encode an obsNo constraint. Any edges through it are
// dropped along with it; the original tool leaves resulting disconnected
// nodes in place, which the subsequent reachability pruning in
// buildCondensation already discards.
func (cf *cfgOnly) removeNode(id string) {
	gid, ok := cf.idOfS[id]
	if !ok {
		return
	}
	cf.RemoveNode(gid)
	delete(cf.idOfS, id)
	delete(cf.idOfID, gid)
	for i, cur := range cf.ids {
		if cur == id {
			cf.ids = append(cf.ids[:i], cf.ids[i+1:]...)
			break
		}
	}
}

// clone returns a copy of cf, used so encodeObsNo's node removal in a probe
// does not mutate the solver's persistent working graph.
func (cf *cfgOnly) clone() *cfgOnly {
	nc := &cfgOnly{
		DirectedGraph: simple.NewDirectedGraph(),
		idOfID:        make(map[int64]string, len(cf.idOfID)),
		idOfS:         make(map[string]int64, len(cf.idOfS)),
	}
	for _, n := range graph.NodesOf(cf.Nodes()) {
		nc.AddNode(n)
		id := cf.idOfID[n.ID()]
		nc.idOfID[n.ID()] = id
		nc.idOfS[id] = n.ID()
		nc.ids = append(nc.ids, id)
	}
	for _, u := range graph.NodesOf(cf.Nodes()) {
		succs := graph.NodesOf(cf.From(u.ID()))
		for _, v := range succs {
			nc.SetEdge(simple.Edge{F: u, T: v})
		}
	}
	return nc
}
