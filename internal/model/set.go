package model

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ProblemSet is an ordered sequence of problems, keyed by the stem of the
// file it was loaded from (e.g. "blind75").
type ProblemSet struct {
	Key      string
	Problems []*Problem
}

// Find returns the first problem with the given name, or nil.
// Matching is exact: case- and whitespace-sensitive.
func (s *ProblemSet) Find(name string) *Problem {
	for _, p := range s.Problems {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// setFileColumns is the minimum column count for a problem-set row:
// name, difficulty, intermediate time, advanced time, top time, pattern.
const setFileColumns = 6

// ReadSetFile reads and parses a tab-separated problem-set file.
//
// The first row is a header and is skipped. Each data row needs at least
// the six definition columns; rows with fewer are skipped with a warning
// to stderr. Extra columns (solved, time to solve, comments, solved date)
// are honored when present, so a previously exported full-mode file loads
// back with progress intact.
func ReadSetFile(path string) (*ProblemSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open problem-set file %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse problem-set file %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("problem-set file %s is empty", path)
	}

	set := &ProblemSet{Key: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}

	for i, row := range rows[1:] {
		if len(row) < setFileColumns {
			fmt.Fprintf(os.Stderr, "Warning: skipping row %d in %s: expected at least %d columns, got %d\n",
				i+2, filepath.Base(path), setFileColumns, len(row))
			continue
		}
		name := strings.TrimSpace(row[0])
		if name == "" {
			continue
		}
		p := &Problem{
			Name:             name,
			Difficulty:       ParseDifficulty(row[1]),
			IntermediateTime: strings.TrimSpace(row[2]),
			AdvancedTime:     strings.TrimSpace(row[3]),
			TopTime:          strings.TrimSpace(row[4]),
			Pattern:          strings.TrimSpace(row[5]),
		}
		if len(row) >= 10 {
			p.Solved = strings.EqualFold(strings.TrimSpace(row[6]), "true")
			p.TimeToSolve = strings.TrimSpace(row[7])
			p.Comments = row[8]
			p.SolvedDate = strings.TrimSpace(row[9])
		}
		set.Problems = append(set.Problems, p)
	}

	if len(set.Problems) == 0 {
		return nil, fmt.Errorf("problem-set file %s contains no problems", path)
	}
	return set, nil
}

// ReadAllSetFiles loads every *.tsv file in dir, sorted by file name so the
// set order is stable across runs. Individual file failures are logged to
// stderr and skipped; an error is returned only if the directory cannot be
// read or no set loads at all.
func ReadAllSetFiles(dir string) ([]*ProblemSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem-set directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tsv") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var sets []*ProblemSet
	for _, name := range names {
		set, err := ReadSetFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping problem-set file %s: %v\n", name, err)
			continue
		}
		sets = append(sets, set)
	}

	if len(sets) == 0 {
		return nil, fmt.Errorf("no problem-set files loaded from %s", dir)
	}
	return sets, nil
}
