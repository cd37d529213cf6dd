package solver

import "testing"

func classOf(yes, no, maybe []string) *Classification {
	c := NewClassification()
	for _, id := range yes {
		c.DefYes[id] = true
	}
	for _, id := range no {
		c.DefNo[id] = true
	}
	for _, id := range maybe {
		c.Maybe[id] = true
	}
	return c
}

func TestRefines(t *testing.T) {
	coarse := classOf([]string{"a"}, nil, []string{"b", "c"})
	precise := classOf([]string{"a", "b"}, []string{"c"}, nil)

	if !Refines(precise, coarse) {
		t.Error("precise should refine coarse: it resolves every node coarse left as maybe")
	}
	if Refines(coarse, precise) {
		t.Error("coarse should not refine precise: it is strictly less informative")
	}
}

func TestRefinesReflexive(t *testing.T) {
	c := classOf([]string{"a"}, []string{"b"}, []string{"c"})
	if !Refines(c, c) {
		t.Error("a classification should always refine itself")
	}
}

func TestSatisfiesCompare(t *testing.T) {
	coarse := classOf([]string{"a"}, nil, []string{"b", "c"})
	precise := classOf([]string{"a", "b"}, []string{"c"}, nil)

	if !SatisfiesCompare(CompareGt, precise, coarse) {
		t.Error("precise compare-gt coarse should hold")
	}
	if !SatisfiesCompare(CompareLt, coarse, precise) {
		t.Error("coarse compare-lt precise should hold")
	}
	if SatisfiesCompare(CompareEq, precise, coarse) {
		t.Error("precise and coarse are not equal")
	}
	if !SatisfiesCompare(CompareEq, coarse, coarse) {
		t.Error("a classification should compare-eq itself")
	}
}

func TestSatisfiesCompareUnknownRelation(t *testing.T) {
	c := classOf([]string{"a"}, nil, nil)
	if SatisfiesCompare(Compare(99), c, c) {
		t.Error("an unrecognized compare relation should never be satisfied")
	}
}
