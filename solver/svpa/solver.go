package svpa

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

var dbg = log.New(os.Stderr, term.RedBold("svpa:")+" ", 0)

// Solver is the visibly-pushdown-automaton ExecutionSolver.
type Solver struct {
	g         *cfgmodel.Graph
	t         Transport
	crashDone bool
}

// New returns a new SVPA solver over g using the in-process NativeTransport.
func New(g *cfgmodel.Graph) (*Solver, error) {
	return NewWithTransport(g, NewNativeTransport())
}

// NewWithTransport returns a new SVPA solver over g using the given
// Transport, e.g. a SubprocessTransport wired to an external server.
func NewWithTransport(g *cfgmodel.Graph, t Transport) (*Solver, error) {
	if err := t.Init(g); err != nil {
		return nil, err
	}
	return &Solver{g: g, t: t}, nil
}

// EncodeCrash encodes the crash stack. The crash alone must admit at least
// one execution; a stack unreachable from the entry under the encoded
// transitions is an InvariantViolation, not a lazily-discovered
// UnsatObservation, since no later observation caused it.
func (s *Solver) EncodeCrash(stack []failure.Frame) error {
	if s.crashDone {
		return errors.WithStack(&cerr.InvariantViolationError{Reason: "EncodeCrash called more than once"})
	}
	if err := s.t.EncodeCrash(stack); err != nil {
		return err
	}
	s.crashDone = true
	if sat, err := s.IsSat(); err != nil {
		return err
	} else if !sat {
		return errors.WithStack(&cerr.InvariantViolationError{Reason: "crash stack is unreachable from the entry"})
	}
	return nil
}

// EncodeObsYes encodes one ordered "yes" vector.
func (s *Solver) EncodeObsYes(vector [][]string) error {
	return s.t.EncodeObsYes(vector)
}

// EncodeObsNo encodes one "no" group.
func (s *Solver) EncodeObsNo(group []string) error {
	return s.t.EncodeObsNo(group)
}

// IsSat reports whether the constraints encoded so far admit an execution.
func (s *Solver) IsSat() (bool, error) {
	return s.t.IsSat()
}

// FindKnownExecution partitions every CFG node into defYes/defNo/maybe.
//
// Every probe query batches naturally into two calls to ProbeSat per node;
// a SubprocessTransport implementation may additionally batch these across
// nodes for efficiency, as the line protocol allows several probe commands
// before reading replies.
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
			fmt.Fprintf(os.Stderr, "\rsvpa: %d%%", i*100/total)
		}
		possibleYes, err := s.t.ProbeSat(id, "")
		if err != nil {
			return nil, err
		}
		possibleNo, err := s.t.ProbeSat("", id)
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
		fmt.Fprintf(os.Stderr, "\rsvpa: 100%%\n")
	}
	return result, nil
}
