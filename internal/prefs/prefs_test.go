package prefs

import "testing"

func TestFilterConfigMergeCloud(t *testing.T) {
	setKeys := []string{"blind75", "neetcode150"}
	local := DefaultFilterConfig(setKeys)
	local.TabStates["blind75"] = TabFilter{Difficulty: "Easy"}

	cloud := FilterConfig{
		ActiveTab: "neetcode150",
		TabStates: map[string]TabFilter{
			"blind75":     {Difficulty: "Hard", Search: "sum"},
			"neetcode150": {Solved: "unsolved"},
		},
	}

	got := local.MergeCloud(cloud, setKeys)
	if got.ActiveTab != "neetcode150" {
		t.Errorf("active tab = %q, want cloud's", got.ActiveTab)
	}
	if got.TabStates["blind75"].Difficulty != "Hard" {
		t.Error("cloud tab state should replace the local one")
	}
	if got.TabStates["neetcode150"].Solved != "unsolved" {
		t.Error("cloud-only tab state should be adopted")
	}
}

func TestFilterConfigMergeRejectsUnknownTab(t *testing.T) {
	setKeys := []string{"blind75"}
	local := DefaultFilterConfig(setKeys)

	got := local.MergeCloud(FilterConfig{ActiveTab: "grind169"}, setKeys)
	if got.ActiveTab != "blind75" {
		t.Errorf("active tab = %q, should keep local when cloud names an unknown set", got.ActiveTab)
	}
}

func TestExportPrefsMergeCloud(t *testing.T) {
	local := DefaultExportPrefs()
	got := local.MergeCloud(ExportPrefs{DefaultFormat: "tsv"})
	if got.DefaultFormat != "tsv" {
		t.Errorf("format = %q, want cloud's tsv", got.DefaultFormat)
	}
	if got.DefaultMode != "user" {
		t.Errorf("mode = %q, empty cloud field should keep local", got.DefaultMode)
	}
}

func TestUIPrefsMergeCloud(t *testing.T) {
	local := DefaultUIPrefs()
	local.ColumnVisibility["pattern"] = false
	local.SortPreferences["blind75"] = SortPref{Column: "difficulty", Direction: "desc"}

	cloud := UIPrefs{
		Theme: "dark",
		ColumnVisibility: map[string]bool{
			"pattern":  true,
			"comments": false,
		},
		SortPreferences: map[string]SortPref{
			"blind75": {Column: "name", Direction: "asc"},
		},
	}

	got := local.MergeCloud(cloud)
	if got.Theme != "dark" {
		t.Errorf("theme = %q, want cloud's", got.Theme)
	}
	if !got.ColumnVisibility["pattern"] {
		t.Error("column visible in cloud should become visible (OR rule)")
	}
	if !got.ColumnVisibility["comments"] {
		t.Error("column hidden only in cloud must stay visible locally (OR rule)")
	}
	if got.SortPreferences["blind75"].Column != "name" {
		t.Error("sort preference should be cloud-wins")
	}
}

func TestUIPrefsSortForDefault(t *testing.T) {
	p := DefaultUIPrefs()
	if got := p.SortFor("blind75"); got.Column != "name" || got.Direction != "asc" {
		t.Errorf("default sort = %+v, want name asc", got)
	}
}
