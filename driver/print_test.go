package driver

import (
	"bytes"
	"strings"
	"testing"

	"github.com/crashwalk/crashwalk/cfgmodel"
	"github.com/crashwalk/crashwalk/solver"
)

const singleFileGraph = `{
  "programStart": "n:entry",
  "nodes": [
    {"id": "n:entry", "kind": "entry", "procedure": "main", "file": "main.c", "lines": [1]},
    {"id": "n:a", "kind": "normal", "procedure": "main", "file": "main.c", "lines": [2]},
    {"id": "n:exit", "kind": "exit", "procedure": "main", "file": "main.c", "lines": [3]}
  ],
  "edges": [
    {"from": "n:entry", "to": "n:a", "type": "flow", "scope": "intraprocedural"},
    {"from": "n:a", "to": "n:exit", "type": "flow", "scope": "intraprocedural"}
  ]
}`

func TestLineSetToString(t *testing.T) {
	got := lineSetToString(map[int]bool{3: true, 0: true, 1: true})
	if got != "1,3" {
		t.Errorf("lineSetToString = %q, want %q (sorted, dropping line 0)", got, "1,3")
	}
}

func TestPrintNodeResultCompact(t *testing.T) {
	c := solver.NewClassification()
	c.DefYes["n:1"] = true
	c.DefNo["n:2"] = true
	c.Maybe["n:3"] = true
	c.Maybe["n:4"] = true

	var buf bytes.Buffer
	printNodeResult(&buf, c, false)
	out := buf.String()
	if !strings.Contains(out, "defYes (1, 25.0%)") {
		t.Errorf("output missing defYes line: %q", out)
	}
	if !strings.Contains(out, "maybe (2, 50.0%)") {
		t.Errorf("output missing maybe line: %q", out)
	}
	if strings.Contains(out, "n:1") {
		t.Error("compact style should not list node ids")
	}
}

func TestPrintNodeResultFull(t *testing.T) {
	c := solver.NewClassification()
	c.DefYes["n:1"] = true

	var buf bytes.Buffer
	printNodeResult(&buf, c, true)
	if !strings.Contains(buf.String(), "n:1") {
		t.Error("full style should list node ids")
	}
}

func TestPrintResultUnknownStyle(t *testing.T) {
	g, err := cfgmodel.ParseString(singleFileGraph)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	c := solver.NewClassification()
	var out, errOut bytes.Buffer
	if err := PrintResult(&out, &errOut, g, c, "bogus", false); err == nil {
		t.Error("expected an error for an unrecognized result style")
	}
}

func TestPrintLinesResultCsiclipse(t *testing.T) {
	g, err := cfgmodel.ParseString(singleFileGraph)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	c := solver.NewClassification()
	c.DefYes["n:entry"] = true
	c.DefYes["n:a"] = true
	c.DefNo["n:exit"] = true

	var buf bytes.Buffer
	if err := printLinesResult(&buf, g, c, true, false); err != nil {
		t.Fatalf("printLinesResult: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "main;main.c;global;1,2;3;\n") {
		t.Errorf("csiclipse line mismatch, got %q", out)
	}
}

func TestPrintLinesResultStandard(t *testing.T) {
	g, err := cfgmodel.ParseString(singleFileGraph)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	c := solver.NewClassification()
	c.DefYes["n:entry"] = true

	var buf bytes.Buffer
	if err := printLinesResult(&buf, g, c, false, false); err != nil {
		t.Fatalf("printLinesResult: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "main.c\n==========\n") {
		t.Errorf("standard style missing file header, got %q", out)
	}
	if !strings.Contains(out, "Yes: 1\n") {
		t.Errorf("standard style missing Yes line, got %q", out)
	}
}

func TestPrintLinesResultIntraRequiresSingleProcedure(t *testing.T) {
	g, err := cfgmodel.ParseString(singleFileGraph)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	c := solver.NewClassification()
	var buf bytes.Buffer
	if err := printLinesResult(&buf, g, c, false, true); err != nil {
		t.Fatalf("printLinesResult with a single procedure and -intra should succeed: %v", err)
	}
}
