package fsa

import (
	"gonum.org/v1/gonum/graph"

	"github.com/crashwalk/crashwalk/cfgmodel"
)

// buildBase builds the automaton recognizing every node-id sequence
// obtainable by walking CFG edges of g (intraprocedural flow, plus
// interprocedural call/return control edges) starting from its entry node.
// A virtual pre-entry state precedes the entry node so the entry node's id
// itself is part of the recognized alphabet.
func buildBase(g *cfgmodel.Graph) *automaton {
	ids := g.AllNodeIDs()
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i + 1 // state 0 reserved for the virtual pre-entry state
	}
	a := newAutomaton(len(ids)+1, 0)
	entry := g.Entry().(*cfgmodel.Node)
	a.trans[0][entry.CfgID()] = index[entry.CfgID()]
	for i := range a.accept {
		a.accept[i] = true
	}
	for _, id := range ids {
		n := g.MustNode(id)
		succs := graph.NodesOf(g.From(n.ID()))
		for _, s := range succs {
			sn := s.(*cfgmodel.Node)
			e, ok := g.Edge(n.ID(), sn.ID()).(*cfgmodel.Edge)
			if !ok || !cfgmodel.IsCFGEdge(e) {
				continue
			}
			a.trans[index[id]][sn.CfgID()] = index[sn.CfgID()]
		}
	}
	return a
}
