package model

// DuplicateIndex maps a problem name to the keys of every set containing
// it, restricted to names appearing in two or more sets. It is derived at
// data-load time and extended only when new problems arrive via import.
type DuplicateIndex map[string][]string

// BuildDuplicateIndex derives the index from the loaded sets.
func BuildDuplicateIndex(sets []*ProblemSet) DuplicateIndex {
	occurrences := make(map[string][]string)
	for _, set := range sets {
		seen := make(map[string]bool, len(set.Problems))
		for _, p := range set.Problems {
			if seen[p.Name] {
				continue
			}
			seen[p.Name] = true
			occurrences[p.Name] = append(occurrences[p.Name], set.Key)
		}
	}

	idx := make(DuplicateIndex)
	for name, keys := range occurrences {
		if len(keys) >= 2 {
			idx[name] = keys
		}
	}
	return idx
}

// SetsFor returns the set keys containing name, or nil if the name is not
// duplicated.
func (idx DuplicateIndex) SetsFor(name string) []string {
	return idx[name]
}

// IsDuplicate reports whether name appears in two or more sets.
func (idx DuplicateIndex) IsDuplicate(name string) bool {
	return len(idx[name]) >= 2
}

// Extend records that name now appears in setKey as well, promoting the
// name into the index once it reaches two distinct sets. newProblems-mode
// imports call this so propagation covers freshly added entries.
func (idx DuplicateIndex) Extend(sets []*ProblemSet, name string) {
	var keys []string
	for _, set := range sets {
		if set.Find(name) != nil {
			keys = append(keys, set.Key)
		}
	}
	if len(keys) >= 2 {
		idx[name] = keys
	}
}
