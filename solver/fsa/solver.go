package fsa

import (
	"fmt"
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
	"github.com/pkg/errors"

	"github.com/crashwalk/crashwalk/cerr"
	"github.com/crashwalk/crashwalk/cfgmodel"
	"github.com/crashwalk/crashwalk/failure"
	"github.com/crashwalk/crashwalk/solver"
)

// dbg logs progress to standard error.
var dbg = log.New(os.Stderr, term.RedBold("fsa:")+" ", 0)

// Solver is the finite-state-acceptor ExecutionSolver.
type Solver struct {
	g           *cfgmodel.Graph
	base        *automaton
	constraints []*automaton
	crashDone   bool
}

// New returns a new FSA solver over g.
func New(g *cfgmodel.Graph) *Solver {
	return &Solver{
		g:    g,
		base: buildBase(g),
	}
}

// EncodeCrash encodes the crash stack as the combined "yes" vector: two
// ambiguity groups per internal frame (its call group, then its entry
// group), followed by the crash frame's group.
func (s *Solver) EncodeCrash(stack []failure.Frame) error {
	if s.crashDone {
		return errors.WithStack(&cerr.InvariantViolationError{Reason: "EncodeCrash called more than once"})
	}
	if len(stack) == 0 {
		return errors.WithStack(&cerr.InvalidInputError{Reason: "empty crash stack"})
	}
	var vector [][]string
	for _, f := range stack {
		if f.Crash {
			vector = append(vector, f.CallNodes)
			continue
		}
		vector = append(vector, f.CallNodes)
		vector = append(vector, f.EntryNodes)
	}
	s.constraints = append(s.constraints, linearCrashAutomaton(vector))
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
	s.constraints = append(s.constraints, linearObsAutomaton(vector))
	return nil
}

// EncodeObsNo encodes one "no" group; only singleton groups are supported.
func (s *Solver) EncodeObsNo(group []string) error {
	if len(group) != 1 {
		return errors.WithStack(&cerr.InvalidInputError{Reason: "fsa solver requires singleton obsNo groups"})
	}
	s.constraints = append(s.constraints, forbidAutomaton(group[0]))
	return nil
}

// IsSat reports whether the constraints encoded so far admit an execution.
func (s *Solver) IsSat() (bool, error) {
	return s.isSatWith(nil)
}

// isSatWith checks satisfiability with an extra probe automaton appended
// without mutating the solver's accumulated constraints.
func (s *Solver) isSatWith(probe *automaton) (bool, error) {
	all := make([]*automaton, 0, len(s.constraints)+2)
	all = append(all, s.base)
	all = append(all, s.constraints...)
	if probe != nil {
		all = append(all, probe)
	}
	return productReachable(all), nil
}

// FindKnownExecution partitions every CFG node into defYes/defNo/maybe by
// probing, for each node, whether some satisfying execution includes it and
// whether some satisfying execution excludes it.
func (s *Solver) FindKnownExecution() (*solver.Classification, error) {
	if !s.crashDone {
		return nil, errors.WithStack(&cerr.InvariantViolationError{Reason: "FindKnownExecution called before EncodeCrash"})
	}
	if sat, err := s.IsSat(); err != nil {
		return nil, err
	} else if !sat {
		return nil, errors.WithStack(&cerr.UnsatObservationError{Reason: "crash stack and observations are jointly unsatisfiable"})
	}
	result := solver.NewClassification()
	ids := s.g.AllNodeIDs()
	total := len(ids)
	for i, id := range ids {
		if total > 0 && i%10 == 0 {
			fmt.Fprintf(os.Stderr, "\rfsa: %d%%", i*100/total)
		}
		possibleYes, err := s.isSatWith(requireAutomaton(id))
		if err != nil {
			return nil, err
		}
		possibleNo, err := s.isSatWith(forbidAutomaton(id))
		if err != nil {
			return nil, err
		}
		switch {
		case possibleYes && !possibleNo:
			result.DefYes[id] = true
		case !possibleYes:
			result.DefNo[id] = true
		default:
			result.Maybe[id] = true
		}
	}
	if total > 0 {
		fmt.Fprintf(os.Stderr, "\rfsa: 100%%\n")
	}
	return result, nil
}

// productReachable reports whether there is a reachable tuple of states,
// one per automaton in as, in which every automaton is simultaneously in an
// accepting state. It explores the product state space lazily via BFS,
// only ever materializing states actually reached.
func productReachable(as []*automaton) bool {
	start := make([]int, len(as))
	for i, a := range as {
		start[i] = a.start
	}
	if allAccept(as, start) {
		return true
	}
	seen := map[string]bool{key(start): true}
	queue := [][]int{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, sym := range candidateSymbols(as, cur) {
			next := make([]int, len(as))
			ok := true
			for i, a := range as {
				n, has := a.step(cur[i], sym)
				if !has {
					ok = false
					break
				}
				next[i] = n
			}
			if !ok {
				continue
			}
			k := key(next)
			if seen[k] {
				continue
			}
			seen[k] = true
			if allAccept(as, next) {
				return true
			}
			queue = append(queue, next)
		}
	}
	return false
}

func allAccept(as []*automaton, state []int) bool {
	for i, a := range as {
		if !a.accept[state[i]] {
			return false
		}
	}
	return true
}

// candidateSymbols returns the set of symbols worth trying from the current
// product state: every symbol with an explicit transition in any
// component, since a wildcard-only move never changes which symbols are
// "interesting" to have tried (a symbol not named anywhere behaves exactly
// like any other unnamed symbol).
func candidateSymbols(as []*automaton, state []int) []string {
	seen := make(map[string]bool)
	var out []string
	for i, a := range as {
		for sym := range a.trans[state[i]] {
			if !seen[sym] {
				seen[sym] = true
				out = append(out, sym)
			}
		}
	}
	return out
}

func key(state []int) string {
	b := make([]byte, 0, len(state)*4)
	for _, s := range state {
		b = append(b, byte(s), byte(s>>8), byte(s>>16), byte(s>>24))
	}
	return string(b)
}
