package utl

import (
	"testing"

	"github.com/crashwalk/crashwalk/cfgmodel"
	"github.com/crashwalk/crashwalk/failure"
)

const diamondGraph = `{
  "programStart": "n:entry",
  "nodes": [
    {"id": "n:entry", "kind": "entry", "procedure": "main", "file": "main.c", "lines": [1]},
    {"id": "n:a", "kind": "normal", "procedure": "main", "file": "main.c", "lines": [2]},
    {"id": "n:b", "kind": "normal", "procedure": "main", "file": "main.c", "lines": [3]},
    {"id": "n:c", "kind": "normal", "procedure": "main", "file": "main.c", "lines": [4]},
    {"id": "n:exit", "kind": "exit", "procedure": "main", "file": "main.c", "lines": [5]}
  ],
  "edges": [
    {"from": "n:entry", "to": "n:a", "type": "flow", "scope": "intraprocedural"},
    {"from": "n:a", "to": "n:b", "type": "flow", "scope": "intraprocedural"},
    {"from": "n:a", "to": "n:c", "type": "flow", "scope": "intraprocedural"},
    {"from": "n:b", "to": "n:exit", "type": "flow", "scope": "intraprocedural"},
    {"from": "n:c", "to": "n:exit", "type": "flow", "scope": "intraprocedural"}
  ]
}`

// loopGraph has a single strongly connected component between the entry and
// the crash: entry -> a -> b -> a (back edge), b -> exit.
const loopGraph = `{
  "programStart": "n:entry",
  "nodes": [
    {"id": "n:entry", "kind": "entry", "procedure": "main", "file": "main.c", "lines": [1]},
    {"id": "n:a", "kind": "normal", "procedure": "main", "file": "main.c", "lines": [2]},
    {"id": "n:b", "kind": "normal", "procedure": "main", "file": "main.c", "lines": [3]},
    {"id": "n:exit", "kind": "exit", "procedure": "main", "file": "main.c", "lines": [4]}
  ],
  "edges": [
    {"from": "n:entry", "to": "n:a", "type": "flow", "scope": "intraprocedural"},
    {"from": "n:a", "to": "n:b", "type": "flow", "scope": "intraprocedural"},
    {"from": "n:b", "to": "n:a", "type": "flow", "scope": "intraprocedural"},
    {"from": "n:b", "to": "n:exit", "type": "flow", "scope": "intraprocedural"}
  ]
}`

func mustParse(t *testing.T, doc string) *cfgmodel.Graph {
	t.Helper()
	g, err := cfgmodel.ParseString(doc)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return g
}

func TestFindKnownExecutionBranchIsMaybe(t *testing.T) {
	g := mustParse(t, diamondGraph)
	s := New(g)
	stack := []failure.Frame{{CallNodes: []string{"n:exit"}, Crash: true}}
	if err := s.EncodeCrash(stack); err != nil {
		t.Fatalf("EncodeCrash: %v", err)
	}
	result, err := s.FindKnownExecution()
	if err != nil {
		t.Fatalf("FindKnownExecution: %v", err)
	}
	for _, id := range []string{"n:entry", "n:a", "n:exit"} {
		if !result.DefYes[id] {
			t.Errorf("%s should be defYes", id)
		}
	}
	for _, id := range []string{"n:b", "n:c"} {
		if !result.Maybe[id] {
			t.Errorf("%s should be maybe", id)
		}
	}
}

func TestFindKnownExecutionObsNoForcesOtherBranch(t *testing.T) {
	g := mustParse(t, diamondGraph)
	s := New(g)
	stack := []failure.Frame{{CallNodes: []string{"n:exit"}, Crash: true}}
	if err := s.EncodeCrash(stack); err != nil {
		t.Fatalf("EncodeCrash: %v", err)
	}
	if err := s.EncodeObsNo([]string{"n:b"}); err != nil {
		t.Fatalf("EncodeObsNo: %v", err)
	}
	result, err := s.FindKnownExecution()
	if err != nil {
		t.Fatalf("FindKnownExecution: %v", err)
	}
	if !result.DefYes["n:c"] {
		t.Error("forbidding n:b should force every execution through n:c")
	}
	if !result.DefNo["n:b"] {
		t.Error("n:b should be defNo once forbidden")
	}
}

func TestFindKnownExecutionLoopBodyIsDefYes(t *testing.T) {
	g := mustParse(t, loopGraph)
	s := New(g)
	stack := []failure.Frame{{CallNodes: []string{"n:exit"}, Crash: true}}
	if err := s.EncodeCrash(stack); err != nil {
		t.Fatalf("EncodeCrash: %v", err)
	}
	result, err := s.FindKnownExecution()
	if err != nil {
		t.Fatalf("FindKnownExecution: %v", err)
	}
	for _, id := range []string{"n:entry", "n:a", "n:b", "n:exit"} {
		if !result.DefYes[id] {
			t.Errorf("%s should be defYes: a-b are on the single SCC every execution must pass through", id)
		}
	}
}

func TestEncodeCrashRejectsUnreachableStack(t *testing.T) {
	g := mustParse(t, diamondGraph)
	s := New(g)
	// n:b and n:c are mutually exclusive branches; no execution visits both.
	stack := []failure.Frame{
		{CallNodes: []string{"n:b"}, EntryNodes: []string{"n:c"}},
		{CallNodes: []string{"n:exit"}, Crash: true},
	}
	if err := s.EncodeCrash(stack); err == nil {
		t.Error("a crash stack unreachable from the entry should be rejected by EncodeCrash itself")
	}
}

func TestIsSatUnsatUnreachableCrash(t *testing.T) {
	g := mustParse(t, diamondGraph)
	s := New(g)
	stack := []failure.Frame{{CallNodes: []string{"n:exit"}, Crash: true}}
	if err := s.EncodeCrash(stack); err != nil {
		t.Fatalf("EncodeCrash: %v", err)
	}
	if err := s.EncodeObsNo([]string{"n:entry"}); err != nil {
		t.Fatalf("EncodeObsNo: %v", err)
	}
	sat, err := s.IsSat()
	if err != nil {
		t.Fatalf("IsSat: %v", err)
	}
	if sat {
		t.Error("forbidding the entry node should be unsatisfiable")
	}
}

func TestCombineIncomparableFactsIsUnsat(t *testing.T) {
	existing := fact{0: {{"n:1"}, {"n:2"}}}
	incoming := fact{0: {{"n:3"}}} // disagrees with existing's shared prefix
	if _, ok := combine(existing, incoming); ok {
		t.Error("combine should report unsat when two contributions diverge on their shared prefix")
	}
}

func TestCombineKeepsLongerSuffix(t *testing.T) {
	existing := fact{0: {{"n:1"}, {"n:2"}}}
	incoming := fact{0: {{"n:1"}}}
	merged, ok := combine(existing, incoming)
	if !ok {
		t.Fatal("combine should succeed when one contribution's prefix agrees with the other's")
	}
	if len(merged[0]) != 2 {
		t.Errorf("combine should keep the longer remaining suffix, got %v", merged[0])
	}
}

func TestGroupsEqualIsSetWise(t *testing.T) {
	if !groupsEqual([][]string{{"n:1", "n:2"}}, [][]string{{"n:2", "n:1"}}) {
		t.Error("groupsEqual should compare each group as a set, ignoring member order")
	}
	if groupsEqual([][]string{{"n:1"}}, [][]string{{"n:2"}}) {
		t.Error("groupsEqual should report false for differing groups")
	}
}
