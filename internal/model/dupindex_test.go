package model

import (
	"sort"
	"testing"
)

func threeSets() []*ProblemSet {
	return []*ProblemSet{
		{Key: "blind75", Problems: []*Problem{
			{Name: "Two Sum"},
			{Name: "3Sum"},
			{Name: "Valid Anagram"},
		}},
		{Key: "neetcode150", Problems: []*Problem{
			{Name: "Two Sum"},
			{Name: "Valid Anagram"},
			{Name: "Group Anagrams"},
		}},
		{Key: "grind169", Problems: []*Problem{
			{Name: "Two Sum"},
			{Name: "Merge Intervals"},
		}},
	}
}

func TestBuildDuplicateIndex(t *testing.T) {
	idx := BuildDuplicateIndex(threeSets())

	keys := idx.SetsFor("Two Sum")
	sort.Strings(keys)
	want := []string{"blind75", "grind169", "neetcode150"}
	if len(keys) != len(want) {
		t.Fatalf("Two Sum in %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Two Sum in %v, want %v", keys, want)
		}
	}

	if !idx.IsDuplicate("Valid Anagram") {
		t.Error("Valid Anagram appears in two sets, should be a duplicate")
	}
	if idx.IsDuplicate("Group Anagrams") {
		t.Error("Group Anagrams appears in one set, should not be a duplicate")
	}
	if idx.SetsFor("Merge Intervals") != nil {
		t.Error("single-set names should not be in the index")
	}
}

func TestBuildDuplicateIndexIgnoresRepeatsWithinASet(t *testing.T) {
	sets := []*ProblemSet{
		{Key: "only", Problems: []*Problem{
			{Name: "Two Sum"},
			{Name: "Two Sum"},
		}},
	}
	idx := BuildDuplicateIndex(sets)
	if idx.IsDuplicate("Two Sum") {
		t.Error("a name repeated within one set is not a cross-set duplicate")
	}
}

func TestExtendPromotesNewDuplicate(t *testing.T) {
	sets := threeSets()
	idx := BuildDuplicateIndex(sets)

	// Import adds Group Anagrams to a second set.
	sets[0].Problems = append(sets[0].Problems, &Problem{Name: "Group Anagrams"})
	idx.Extend(sets, "Group Anagrams")

	if !idx.IsDuplicate("Group Anagrams") {
		t.Error("Extend should promote a name now present in two sets")
	}

	// A name still in one set stays out.
	idx.Extend(sets, "Merge Intervals")
	if idx.IsDuplicate("Merge Intervals") {
		t.Error("Extend must not promote a single-set name")
	}
}
