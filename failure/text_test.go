package failure

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseStackLine(t *testing.T) {
	golden := []struct {
		line string
		want []Frame
	}{
		{
			line: "n:1|n:2;n:3|n:4;n:5,n:6",
			want: []Frame{
				{CallNodes: []string{"n:1"}, EntryNodes: []string{"n:2"}},
				{CallNodes: []string{"n:3"}, EntryNodes: []string{"n:4"}},
				{CallNodes: []string{"n:5", "n:6"}, Crash: true},
			},
		},
		{
			line: "n:7",
			want: []Frame{{CallNodes: []string{"n:7"}, Crash: true}},
		},
	}
	for _, gold := range golden {
		got, err := ParseStackLine(gold.line)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", gold.line, err)
			continue
		}
		if !reflect.DeepEqual(got, gold.want) {
			t.Errorf("%q: got %#v, want %#v", gold.line, got, gold.want)
		}
	}
}

func TestParseStackLineErrors(t *testing.T) {
	bad := []string{
		"",
		"n:1;n:2|n:3;n:4", // non-last frame is a bare crash group
		"n:1|n:2|n:3",     // malformed, three '|'-parts
	}
	for _, line := range bad {
		if _, err := ParseStackLine(line); err == nil {
			t.Errorf("%q: expected an error", line)
		}
	}
}

func TestParseObsYesLine(t *testing.T) {
	got := ParseObsYesLine("n:1,n:2;n:3")
	want := [][]string{{"n:1", "n:2"}, {"n:3"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseObsYesLine = %#v, want %#v", got, want)
	}
}

func TestParseObsNoLine(t *testing.T) {
	got, err := ParseObsNoLine("n:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"n:1"}) {
		t.Errorf("ParseObsNoLine = %#v, want [n:1]", got)
	}
	if _, err := ParseObsNoLine("n:1,n:2"); err == nil {
		t.Error("expected an error for a non-singleton obsNo line")
	}
}

func TestLoadTextReport(t *testing.T) {
	text := strings.Join([]string{
		"n:1|n:2;n:3",
		"---",
		"n:4;n:5,n:6",
		"---",
		"n:7",
	}, "\n")
	report, err := LoadTextReport(strings.NewReader(text))
	if err != nil {
		t.Fatalf("LoadTextReport: %v", err)
	}
	wantStack := []Frame{
		{CallNodes: []string{"n:1"}, EntryNodes: []string{"n:2"}},
		{CallNodes: []string{"n:3"}, Crash: true},
	}
	if !reflect.DeepEqual(report.Stack, wantStack) {
		t.Errorf("Stack = %#v, want %#v", report.Stack, wantStack)
	}
	wantObsYes := [][][]string{{{"n:4"}, {"n:5", "n:6"}}}
	if !reflect.DeepEqual(report.ObsYes, wantObsYes) {
		t.Errorf("ObsYes = %#v, want %#v", report.ObsYes, wantObsYes)
	}
	wantObsNo := [][]string{{"n:7"}}
	if !reflect.DeepEqual(report.ObsNo, wantObsNo) {
		t.Errorf("ObsNo = %#v, want %#v", report.ObsNo, wantObsNo)
	}
}

func TestLoadTextReportEmpty(t *testing.T) {
	if _, err := LoadTextReport(strings.NewReader("")); err == nil {
		t.Error("expected an error for an empty report")
	}
}
