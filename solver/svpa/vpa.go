// Package svpa implements the visibly-pushdown-automaton execution solver:
// the control flow graph's alphabet is partitioned into internal, call, and
// return symbols so that call/return nesting is matched exactly, unlike the
// FSA solver's flat automaton.
package svpa

import (
	"gonum.org/v1/gonum/graph"

	"github.com/crashwalk/crashwalk/cfgmodel"
)

type edgeKind int

const (
	kindInternal edgeKind = iota
	kindCall
	kindReturn
)

// arc is one transition of the base VPA.
type arc struct {
	to     int
	symbol string
	kind   edgeKind
	// retTo is set only on call arcs: it is the call-site's own state,
	// pushed onto the stack when the call is taken so that a later return
	// can be matched against it. Internal and return arcs leave it zero.
	retTo int
}

// vpaBase is the automaton recognizing feasible node-id sequences through
// a control flow graph with call/return nesting enforced via an explicit
// stack carried alongside each automaton state in the product search.
type vpaBase struct {
	numStates int
	start     int
	trans     []map[string][]arc // state -> symbol -> arcs (may be several on ambiguous entry)
	accept    []bool
}

// buildVPA builds the base VPA from g: a virtual pre-entry state leads into
// the entry node; intraprocedural flow edges are internal moves; an edge
// from a call-site node into a callee's entry node is a call move that
// pushes the call-site's own state as the return address; an edge from a
// callee's exit (or implicit-return) node back into a caller node is a
// return move that pops and must match the pushed call-site state.
func buildVPA(g *cfgmodel.Graph) *vpaBase {
	ids := g.AllNodeIDs()
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i + 1
	}
	v := &vpaBase{
		numStates: len(ids) + 1,
		start:     0,
		trans:     make([]map[string][]arc, len(ids)+1),
		accept:    make([]bool, len(ids)+1),
	}
	for i := range v.trans {
		v.trans[i] = make(map[string][]arc)
		v.accept[i] = true
	}
	entry := g.Entry().(*cfgmodel.Node)
	v.trans[0][entry.CfgID()] = []arc{{to: index[entry.CfgID()], symbol: entry.CfgID(), kind: kindInternal}}

	for _, id := range ids {
		n := g.MustNode(id)
		succs := graph.NodesOf(g.From(n.ID()))
		for _, s := range succs {
			sn := s.(*cfgmodel.Node)
			e, ok := g.Edge(n.ID(), sn.ID()).(*cfgmodel.Edge)
			if !ok || !cfgmodel.IsCFGEdge(e) {
				continue
			}
			kind := kindInternal
			if e.Scope == cfgmodel.ScopeInterprocedural {
				if n.Kind() == cfgmodel.KindCall || n.Kind() == cfgmodel.KindCallSite {
					kind = kindCall
				} else if n.Kind() == cfgmodel.KindExit || n.Implicit() {
					kind = kindReturn
				}
			}
			a := arc{to: index[sn.CfgID()], symbol: sn.CfgID(), kind: kind}
			if kind == kindCall {
				a.retTo = index[id] // push the call-site's own state
			}
			v.trans[index[id]][sn.CfgID()] = append(v.trans[index[id]][sn.CfgID()], a)
		}
	}
	return v
}

// step advances the base VPA from state s reading symbol, given the current
// call stack (top last). It returns the next state and stack, or ok=false
// if no move is possible (e.g. a return with a mismatched or empty stack).
func (v *vpaBase) step(s int, symbol string, stack []int) (int, []int, bool) {
	arcs, ok := v.trans[s][symbol]
	if !ok {
		return 0, nil, false
	}
	for _, a := range arcs {
		switch a.kind {
		case kindInternal:
			return a.to, stack, true
		case kindCall:
			ns := append(append([]int{}, stack...), a.retTo)
			return a.to, ns, true
		case kindReturn:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			if _, ok := v.trans[top][a.symbol]; !ok {
				// The return must land on a CFG successor of the call-site
				// state that was pushed; anything else is not a valid match.
				continue
			}
			return a.to, stack[:len(stack)-1], true
		}
	}
	return 0, nil, false
}
