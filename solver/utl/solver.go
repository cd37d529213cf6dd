package utl

import (
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
	"github.com/pkg/errors"

	"github.com/crashwalk/crashwalk/cerr"
	"github.com/crashwalk/crashwalk/cfgmodel"
	"github.com/crashwalk/crashwalk/failure"
	"github.com/crashwalk/crashwalk/solver"
)

var dbg = log.New(os.Stderr, term.RedBold("utl:")+" ", 0)

// Solver is the SCC-condensation until-list execution solver.
type Solver struct {
	g          *cfgmodel.Graph
	cf         *cfgOnly
	entryID    string
	crashID    string
	crashDone  bool
	yesVectors [][][]string
}

// New returns a new UTL solver over g.
func New(g *cfgmodel.Graph) *Solver {
	entry := g.Entry().(*cfgmodel.Node)
	return &Solver{
		g:       g,
		cf:      newCfgOnly(g),
		entryID: entry.CfgID(),
	}
}

// EncodeCrash encodes the crash stack as the initial yes vector: two
// ambiguity groups per internal frame (its call group, then its entry
// group), then the singleton crash group. The
// crash frame must name exactly one node, matching the original's
// assertion that the final crash location is always unambiguous.
func (s *Solver) EncodeCrash(stack []failure.Frame) error {
	if s.crashDone {
		return errors.WithStack(&cerr.InvariantViolationError{Reason: "EncodeCrash called more than once"})
	}
	if len(stack) == 0 {
		return errors.WithStack(&cerr.InvalidInputError{Reason: "empty crash stack"})
	}
	last := stack[len(stack)-1]
	if len(last.CallNodes) != 1 {
		return errors.WithStack(&cerr.InvalidInputError{Reason: "utl solver requires an unambiguous crash node"})
	}
	s.crashID = last.CallNodes[0]
	var vector [][]string
	for _, f := range stack {
		if f.Crash {
			vector = append(vector, f.CallNodes)
			continue
		}
		vector = append(vector, f.CallNodes)
		vector = append(vector, f.EntryNodes)
	}
	s.yesVectors = append(s.yesVectors, vector)
	s.crashDone = true
	if sat, err := s.IsSat(); err != nil {
		return err
	} else if !sat {
		return errors.WithStack(&cerr.InvariantViolationError{Reason: "crash stack is unreachable from the entry"})
	}
	return nil
}

// EncodeObsYes encodes one ordered "yes" vector of ambiguity groups.
func (s *Solver) EncodeObsYes(vector [][]string) error {
	if len(vector) == 0 {
		return errors.WithStack(&cerr.InvalidInputError{Reason: "empty obsYes vector"})
	}
	s.yesVectors = append(s.yesVectors, vector)
	return nil
}

// EncodeObsNo removes the named node from the working graph; only
// singleton groups are supported.
func (s *Solver) EncodeObsNo(group []string) error {
	if len(group) != 1 {
		return errors.WithStack(&cerr.InvalidInputError{Reason: "utl solver requires singleton obsNo groups"})
	}
	s.cf.removeNode(group[0])
	return nil
}

// IsSat reports whether the constraints encoded so far admit an execution.
func (s *Solver) IsSat() (bool, error) {
	if !s.crashDone {
		return false, errors.WithStack(&cerr.InvariantViolationError{Reason: "IsSat called before EncodeCrash"})
	}
	return isSat(s.cf, s.entryID, s.crashID, s.yesVectors), nil
}

// FindKnownExecution partitions every CFG node into defYes/defNo/maybe.
func (s *Solver) FindKnownExecution() (*solver.Classification, error) {
	sat, err := s.IsSat()
	if err != nil {
		return nil, err
	}
	if !sat {
		return nil, errors.WithStack(&cerr.UnsatObservationError{Reason: "crash stack and observations are jointly unsatisfiable"})
	}
	result := solver.NewClassification()
	ids := s.g.AllNodeIDs()
	for _, id := range ids {
		if id == s.entryID || id == s.crashID {
			result.DefYes[id] = true
			continue
		}
		possibleYes := isSat(s.cf, s.entryID, s.crashID, append(cloneVectors(s.yesVectors), [][]string{{id}}))
		probe := s.cf.clone()
		probe.removeNode(id)
		possibleNo := isSat(probe, s.entryID, s.crashID, s.yesVectors)
		switch {
		case possibleYes && !possibleNo:
			result.DefYes[id] = true
		case !possibleYes:
			result.DefNo[id] = true
		default:
			result.Maybe[id] = true
		}
	}
	return result, nil
}

func cloneVectors(vs [][][]string) [][][]string {
	out := make([][][]string, len(vs))
	copy(out, vs)
	return out
}

// fact is the per-vector remaining-suffix state propagated backward from
// the crash component toward the entry component.
type fact map[int][][]string

func isSat(cf *cfgOnly, entryID, crashID string, yesVectors [][][]string) bool {
	cond, ok := buildCondensation(cf, entryID, crashID)
	if !ok {
		return false
	}
	order := cond.reverseTopoOrder()

	initial := make(fact, len(yesVectors))
	for i, v := range yesVectors {
		cp := make([][]string, len(v))
		copy(cp, v)
		initial[i] = cp
	}

	incoming := make(map[int64]fact)
	incoming[int64(cond.crashSCC)] = initial

	for _, scc := range order {
		in, ok := incoming[scc]
		if !ok {
			// Component not reachable from crash backward on any path
			// processed so far; nothing to propagate.
			continue
		}
		nodeSet := make(map[string]bool, len(cond.members[scc]))
		for _, id := range cond.members[scc] {
			nodeSet[id] = true
		}
		out := peel(in, nodeSet)

		if scc == int64(cond.entrySCC) {
			for _, remaining := range out {
				if len(remaining) > 0 {
					return false
				}
			}
			continue
		}
		for _, pred := range cond.predecessors(scc) {
			merged, ok := combine(incoming[pred], out)
			if !ok {
				return false
			}
			incoming[pred] = merged
		}
	}
	return true
}

// peel pops, for each vector's remaining suffix, as many trailing groups as
// intersect nodeSet, stopping at the first group (from the end) that does
// not.
func peel(in fact, nodeSet map[string]bool) fact {
	out := make(fact, len(in))
	for k, remaining := range in {
		r := remaining
		for len(r) > 0 {
			last := r[len(r)-1]
			if !intersects(last, nodeSet) {
				break
			}
			r = r[:len(r)-1]
		}
		out[k] = r
	}
	return out
}

func intersects(group []string, set map[string]bool) bool {
	for _, id := range group {
		if set[id] {
			return true
		}
	}
	return false
}

// combine merges the contribution of one successor component's after-fact
// into the accumulated before-fact of its predecessor. Each vector's
// remaining suffix is always a leading prefix of the original vector (peel
// only ever truncates from the tail), so two contributions for the same
// vector are only ever comparable by one being a prefix of the other; if
// they diverge, there is no single consistent path and the whole query is
// unsat. Where they agree, the longer remaining suffix — the branch that
// matched fewer of the vector's groups — is kept, since every successor
// must be individually consistent with whatever the predecessor still owes.
func combine(existing, incoming fact) (fact, bool) {
	if existing == nil {
		out := make(fact, len(incoming))
		for k, v := range incoming {
			out[k] = v
		}
		return out, true
	}
	for k, v := range incoming {
		cur, ok := existing[k]
		if !ok {
			existing[k] = v
			continue
		}
		short, long := cur, v
		if len(short) > len(long) {
			short, long = long, short
		}
		if !groupsEqual(short, long[:len(short)]) {
			return nil, false
		}
		if len(v) > len(cur) {
			existing[k] = v
		}
	}
	return existing, true
}

// groupsEqual compares two sequences of ambiguity groups for equality as
// sets at each position.
func groupsEqual(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameSet(a[i], b[i]) {
			return false
		}
	}
	return true
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	for _, x := range b {
		if !set[x] {
			return false
		}
	}
	return true
}
