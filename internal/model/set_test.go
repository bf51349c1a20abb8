package model

import (
	"os"
	"path/filepath"
	"testing"
)

const setHeader = "Problem Name\tDifficulty\tIntermediate Time\tAdvanced Time\tTop Time\tPattern\n"

func writeSetFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestReadSetFile(t *testing.T) {
	content := setHeader +
		"Two Sum\tEasy\t25\t15\t10\tHash Map\n" +
		"3Sum\tMedium\t40\t30\t20\tTwo Pointers\n"
	path := writeSetFile(t, t.TempDir(), "blind75.tsv", content)

	set, err := ReadSetFile(path)
	if err != nil {
		t.Fatalf("ReadSetFile: %v", err)
	}
	if set.Key != "blind75" {
		t.Errorf("key = %q, want blind75", set.Key)
	}
	if len(set.Problems) != 2 {
		t.Fatalf("loaded %d problems, want 2", len(set.Problems))
	}

	p := set.Problems[0]
	if p.Name != "Two Sum" || p.Difficulty != DifficultyEasy || p.TopTime != "10" || p.Pattern != "Hash Map" {
		t.Errorf("first problem = %+v", p)
	}
	if p.Solved || p.TimeToSolve != "" {
		t.Errorf("progress fields should be empty without extra columns: %+v", p)
	}
}

func TestReadSetFileSkipsShortRows(t *testing.T) {
	content := setHeader +
		"Two Sum\tEasy\t25\t15\t10\tHash Map\n" +
		"Broken Row\tEasy\n" +
		"3Sum\tMedium\t40\t30\t20\tTwo Pointers\n"
	path := writeSetFile(t, t.TempDir(), "sets.tsv", content)

	set, err := ReadSetFile(path)
	if err != nil {
		t.Fatalf("ReadSetFile: %v", err)
	}
	if len(set.Problems) != 2 {
		t.Errorf("loaded %d problems, want 2 (short row skipped)", len(set.Problems))
	}
	if set.Find("Broken Row") != nil {
		t.Error("short row should not have loaded")
	}
}

func TestReadSetFileLoadsProgressColumns(t *testing.T) {
	content := "Problem Name\tDifficulty\tIntermediate Time\tAdvanced Time\tTop Time\tPattern\tSolved\tTime To Solve\tComments\tSolved Date\n" +
		"Two Sum\tEasy\t25\t15\t10\tHash Map\tTRUE\t12\tuse a map\t2026-01-15\n"
	path := writeSetFile(t, t.TempDir(), "export.tsv", content)

	set, err := ReadSetFile(path)
	if err != nil {
		t.Fatalf("ReadSetFile: %v", err)
	}
	p := set.Problems[0]
	if !p.Solved || p.TimeToSolve != "12" || p.Comments != "use a map" || p.SolvedDate != "2026-01-15" {
		t.Errorf("progress columns not loaded: %+v", p)
	}
}

func TestReadSetFileEmpty(t *testing.T) {
	path := writeSetFile(t, t.TempDir(), "empty.tsv", "")
	if _, err := ReadSetFile(path); err == nil {
		t.Error("expected an error for an empty file")
	}

	path = writeSetFile(t, t.TempDir(), "headeronly.tsv", setHeader)
	if _, err := ReadSetFile(path); err == nil {
		t.Error("expected an error for a header-only file")
	}
}

func TestReadAllSetFiles(t *testing.T) {
	dir := t.TempDir()
	writeSetFile(t, dir, "b-neetcode.tsv", setHeader+"3Sum\tMedium\t40\t30\t20\tTwo Pointers\n")
	writeSetFile(t, dir, "a-blind75.tsv", setHeader+"Two Sum\tEasy\t25\t15\t10\tHash Map\n")
	writeSetFile(t, dir, "notes.txt", "not a set file")
	writeSetFile(t, dir, "corrupt.tsv", "")

	sets, err := ReadAllSetFiles(dir)
	if err != nil {
		t.Fatalf("ReadAllSetFiles: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("loaded %d sets, want 2", len(sets))
	}
	if sets[0].Key != "a-blind75" || sets[1].Key != "b-neetcode" {
		t.Errorf("sets not sorted by file name: %q, %q", sets[0].Key, sets[1].Key)
	}
}

func TestReadAllSetFilesNoneLoaded(t *testing.T) {
	if _, err := ReadAllSetFiles(t.TempDir()); err == nil {
		t.Error("expected an error when no set files load")
	}
}

func TestFind(t *testing.T) {
	set := &ProblemSet{Key: "blind75", Problems: []*Problem{
		{Name: "Two Sum"},
		{Name: "3Sum"},
	}}
	if set.Find("3Sum") == nil {
		t.Error("Find missed an existing problem")
	}
	if set.Find("two sum") != nil {
		t.Error("Find should be case-sensitive")
	}
	if set.Find("Missing") != nil {
		t.Error("Find should return nil for an absent name")
	}
}
