// Package solver defines the common contract every execution-recovery
// strategy (FSA, SVPA, UTL) implements.
package solver

import (
	"github.com/crashwalk/crashwalk/failure"
)

// ExecutionSolver encodes a crash stack and a set of coverage observations
// as constraints over the language of possible executions of a control flow
// graph, and answers, per node, whether every/some/no execution consistent
// with those constraints visits it.
//
// Usage: construct, call EncodeCrash exactly once, then EncodeObsNo and
// EncodeObsYes any number of times in any order (the observations commute),
// then call FindKnownExecution.
type ExecutionSolver interface {
	// IsSat reports whether the constraints encoded so far admit at least
	// one execution.
	IsSat() (bool, error)

	// EncodeCrash encodes the crash stack as a constraint. It must be
	// called exactly once, before any call to FindKnownExecution.
	EncodeCrash(stack []failure.Frame) error

	// EncodeObsYes encodes one "yes" vector: an ordered list of ambiguity
	// groups, each group containing the node ids that could be the one
	// node actually observed at that point in execution order.
	EncodeObsYes(vector [][]string) error

	// EncodeObsNo encodes one "no" group: node ids of which at least one
	// is known never to have executed. The current solvers require
	// singleton groups.
	EncodeObsNo(group []string) error

	// FindKnownExecution partitions the graph's nodes into those that
	// execute in every satisfying execution (defYes), those that execute
	// in none (defNo), and the rest (maybe).
	FindKnownExecution() (*Classification, error)
}

// Classification is the result of a full solver run: every CFG node
// assigned to exactly one of three sets.
type Classification struct {
	DefYes map[string]bool
	DefNo  map[string]bool
	Maybe  map[string]bool
}

// NewClassification returns an empty classification.
func NewClassification() *Classification {
	return &Classification{
		DefYes: make(map[string]bool),
		DefNo:  make(map[string]bool),
		Maybe:  make(map[string]bool),
	}
}

// Compare is a refinement relation between two classifications: A refines B
// (A "gt" B) when A's defYes is a superset of B's, A's defNo is a superset
// of B's, and A's maybe is a subset of B's — A is at least as precise.
type Compare int

const (
	// CompareEq requires the two classifications to be identical.
	CompareEq Compare = iota
	// CompareGt requires the first classification to refine the second.
	CompareGt
	// CompareLt requires the second classification to refine the first.
	CompareLt
)

// Refines reports whether a refines b: a.DefYes ⊇ b.DefYes, a.DefNo ⊇
// b.DefNo, a.Maybe ⊆ b.Maybe.
func Refines(a, b *Classification) bool {
	return supersetOf(a.DefYes, b.DefYes) && supersetOf(a.DefNo, b.DefNo) && supersetOf(b.Maybe, a.Maybe)
}

func supersetOf(super, sub map[string]bool) bool {
	for k := range sub {
		if !super[k] {
			return false
		}
	}
	return true
}

// SatisfiesCompare checks a -compare relation between two classifications
// produced by different solvers over the same graph and observations.
func SatisfiesCompare(cmp Compare, first, second *Classification) bool {
	switch cmp {
	case CompareEq:
		return Refines(first, second) && Refines(second, first)
	case CompareGt:
		return Refines(first, second)
	case CompareLt:
		return Refines(second, first)
	default:
		return false
	}
}
