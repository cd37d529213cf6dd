package failure

import (
	"strings"
	"testing"
)

func TestLoadJSONCurrentFormat(t *testing.T) {
	const doc = `{
		"crashstack": [
			{"call": ["n:1"], "entry": ["n:2"]},
			{"crash": ["n:3"]}
		],
		"obsYes": [
			{"reliable": false, "entries": [["n:4"], ["n:5", "n:6"]]}
		],
		"obsNo": [["n:7"]]
	}`
	report, err := LoadJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if len(report.Stack) != 2 {
		t.Fatalf("Stack has %d frames, want 2", len(report.Stack))
	}
	if !report.Stack[1].Crash || report.Stack[1].CallNodes[0] != "n:3" {
		t.Errorf("last stack frame = %#v, want the crash frame at n:3", report.Stack[1])
	}
	if len(report.ObsYes) != 1 || len(report.ObsYes[0]) != 2 {
		t.Fatalf("ObsYes = %#v, want one two-group vector", report.ObsYes)
	}
	if report.ObsYes[0][1][0] != "n:5" || report.ObsYes[0][1][1] != "n:6" {
		t.Errorf("ObsYes[0][1] = %v, want [n:5 n:6]", report.ObsYes[0][1])
	}
	if len(report.ObsNo) != 1 || report.ObsNo[0][0] != "n:7" {
		t.Errorf("ObsNo = %#v, want [[n:7]]", report.ObsNo)
	}
}

func TestLoadJSONLegacyFormat(t *testing.T) {
	const doc = `{
		"stack": [{"call": ["n:1"], "entry": ["n:2"]}],
		"crash": ["n:3"]
	}`
	report, err := LoadJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if len(report.Stack) != 2 {
		t.Fatalf("Stack has %d frames, want 2", len(report.Stack))
	}
	if !report.Stack[1].Crash || report.Stack[1].CallNodes[0] != "n:3" {
		t.Errorf("legacy crash frame = %#v, want crash at n:3", report.Stack[1])
	}
}

func TestLoadJSONRejectsBothStackFormats(t *testing.T) {
	const doc = `{
		"crashstack": [{"crash": ["n:1"]}],
		"stack": [{"call": ["n:2"], "entry": ["n:3"]}],
		"crash": ["n:4"]
	}`
	if _, err := LoadJSON(strings.NewReader(doc)); err == nil {
		t.Error("expected an error when both crashstack and legacy stack/crash are present")
	}
}

func TestLoadJSONRequiresUnreliableObsYes(t *testing.T) {
	const doc = `{
		"crashstack": [{"crash": ["n:1"]}],
		"obsYes": [{"entries": [["n:2"]]}]
	}`
	if _, err := LoadJSON(strings.NewReader(doc)); err == nil {
		t.Error(`expected an error when an obsYes entry omits "reliable": false`)
	}
}

func TestLoadJSONRejectsAmbiguousStackFrame(t *testing.T) {
	const doc = `{
		"crashstack": [
			{"call": ["n:1"], "entry": ["n:2"], "crash": ["n:3"]},
			{"crash": ["n:4"]}
		]
	}`
	if _, err := LoadJSON(strings.NewReader(doc)); err == nil {
		t.Error("expected an error when a frame carries both call/entry and crash fields")
	}
}

func TestLoadJSONRejectsMisplacedCrashFrame(t *testing.T) {
	const doc = `{
		"crashstack": [
			{"crash": ["n:1"]},
			{"call": ["n:2"], "entry": ["n:3"]}
		]
	}`
	if _, err := LoadJSON(strings.NewReader(doc)); err == nil {
		t.Error("expected an error when the crash frame is not last")
	}
}

func TestLoadJSONNoCrashStack(t *testing.T) {
	if _, err := LoadJSON(strings.NewReader(`{}`)); err == nil {
		t.Error("expected an error for a report with no crash stack at all")
	}
}
