package main

import "testing"

func TestRepeatedFlagSetAppends(t *testing.T) {
	var r repeatedFlag
	if err := r.Set("a;b"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := r.Set("c"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(r) != 2 || r[0] != "a;b" || r[1] != "c" {
		t.Errorf("repeatedFlag = %#v, want [a;b c]", r)
	}
}

func TestRepeatedFlagString(t *testing.T) {
	r := repeatedFlag{"a", "b"}
	if got := r.String(); got != "a,b" {
		t.Errorf("String() = %q, want %q", got, "a,b")
	}
}
