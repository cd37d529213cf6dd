package cfgmodel

import "testing"

// chainGraph is a single procedure with no branches: entry -> a -> b -> c ->
// exit. Every internal node has exactly one predecessor and successor, so
// the whole chain should collapse into the entry node.
const chainGraph = `{
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
    {"from": "n:b", "to": "n:c", "type": "flow", "scope": "intraprocedural"},
    {"from": "n:c", "to": "n:exit", "type": "flow", "scope": "intraprocedural"}
  ]
}`

func TestCollapseBasicBlocksLinearChain(t *testing.T) {
	g, err := ParseString(chainGraph)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	out := CollapseBasicBlocks(g, nil, false)

	ids := out.AllNodeIDs()
	want := []string{"n:entry", "n:exit"}
	if len(ids) != len(want) {
		t.Fatalf("AllNodeIDs() after collapse = %v, want %v", ids, want)
	}
	for i, id := range want {
		if ids[i] != id {
			t.Errorf("AllNodeIDs()[%d] = %q, want %q", i, ids[i], id)
		}
	}

	entry := out.MustNode("n:entry")
	wantCollapsed := map[string]bool{"n:a": true, "n:b": true, "n:c": true}
	if len(entry.CollapsedNodes()) != len(wantCollapsed) {
		t.Fatalf("CollapsedNodes() = %v, want members of %v", entry.CollapsedNodes(), wantCollapsed)
	}
	for _, id := range entry.CollapsedNodes() {
		if !wantCollapsed[id] {
			t.Errorf("unexpected collapsed node id %q", id)
		}
	}

	// original graph is untouched.
	if _, ok := g.NodeWithID("n:a"); !ok {
		t.Error("CollapseBasicBlocks must not mutate its input graph")
	}
}

func TestCollapseBasicBlocksRespectsExclude(t *testing.T) {
	g, err := ParseString(chainGraph)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	out := CollapseBasicBlocks(g, map[string]bool{"n:b": true}, false)
	if _, ok := out.NodeWithID("n:b"); !ok {
		t.Error("an excluded node must survive collapse")
	}
}

// callSiteChainGraph is a chain entry -> cs -> after -> exit where cs is a
// true call-site node with exactly one predecessor and successor, exercising
// findCollapsible's callsite exclusion.
const callSiteChainGraph = `{
  "programStart": "n:entry",
  "nodes": [
    {"id": "n:entry", "kind": "entry", "procedure": "main", "file": "main.c", "lines": [1]},
    {"id": "n:cs", "kind": "callsite", "procedure": "main", "file": "main.c", "lines": [2]},
    {"id": "n:after", "kind": "normal", "procedure": "main", "file": "main.c", "lines": [3]},
    {"id": "n:exit", "kind": "exit", "procedure": "main", "file": "main.c", "lines": [4]}
  ],
  "edges": [
    {"from": "n:entry", "to": "n:cs", "type": "flow", "scope": "intraprocedural"},
    {"from": "n:cs", "to": "n:after", "type": "flow", "scope": "intraprocedural"},
    {"from": "n:after", "to": "n:exit", "type": "flow", "scope": "intraprocedural"}
  ]
}`

func TestCollapseBasicBlocksExcludesCallSiteByDefault(t *testing.T) {
	g, err := ParseString(callSiteChainGraph)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	out := CollapseBasicBlocks(g, nil, false)
	if _, ok := out.NodeWithID("n:cs"); !ok {
		t.Error("a callsite-kind node must survive collapse when combineCalls is false")
	}
}

func TestCollapseBasicBlocksCombinesCallSiteWhenRequested(t *testing.T) {
	g, err := ParseString(callSiteChainGraph)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	out := CollapseBasicBlocks(g, nil, true)
	if _, ok := out.NodeWithID("n:cs"); ok {
		t.Error("a callsite-kind node should be absorbed into its block when combineCalls is true")
	}
}

func TestExpandToOriginal(t *testing.T) {
	g, err := ParseString(chainGraph)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	out := CollapseBasicBlocks(g, nil, false)
	expanded := ExpandToOriginal(out, map[string]bool{"n:entry": true})
	want := map[string]bool{"n:entry": true, "n:a": true, "n:b": true, "n:c": true}
	if len(expanded) != len(want) {
		t.Fatalf("ExpandToOriginal() = %v, want %v", expanded, want)
	}
	for id := range want {
		if !expanded[id] {
			t.Errorf("ExpandToOriginal() missing %q", id)
		}
	}
}
