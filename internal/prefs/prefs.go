// Package prefs holds the three small preference records that sync as
// independent cloud documents alongside the awareness config: active-tab
// filters, export defaults, and UI preferences. Each carries its own
// cloud-merge policy.
package prefs

// TabFilter is the saved filter state of one problem-set tab.
type TabFilter struct {
	Difficulty string `json:"difficultyFilter"`
	Solved     string `json:"solvedFilter"`
	Pattern    string `json:"patternFilter"`
	Color      string `json:"colorFilter"`
	Search     string `json:"searchTerm"`
}

// FilterConfig tracks which set is active and each set's filter state.
type FilterConfig struct {
	ActiveTab string               `json:"activeTab"`
	TabStates map[string]TabFilter `json:"tabStates"`
}

// DefaultFilterConfig selects the first loaded set with no filters.
func DefaultFilterConfig(setKeys []string) FilterConfig {
	cfg := FilterConfig{TabStates: make(map[string]TabFilter)}
	if len(setKeys) > 0 {
		cfg.ActiveTab = setKeys[0]
	}
	return cfg
}

// MergeCloud applies a cloud document with cloud-wins semantics. The
// active tab is adopted only when it names a set this device actually
// has; tab states merge key-by-key with cloud entries replacing local
// ones.
func (c FilterConfig) MergeCloud(cloud FilterConfig, setKeys []string) FilterConfig {
	out := FilterConfig{ActiveTab: c.ActiveTab, TabStates: make(map[string]TabFilter, len(c.TabStates))}
	for k, v := range c.TabStates {
		out.TabStates[k] = v
	}
	if cloud.ActiveTab != "" {
		for _, key := range setKeys {
			if key == cloud.ActiveTab {
				out.ActiveTab = cloud.ActiveTab
				break
			}
		}
	}
	for k, v := range cloud.TabStates {
		out.TabStates[k] = v
	}
	return out
}

// ExportPrefs remembers the last-used export format and mode.
type ExportPrefs struct {
	DefaultFormat string `json:"defaultFormat"`
	DefaultMode   string `json:"defaultMode"`
}

// DefaultExportPrefs returns the built-in export defaults.
func DefaultExportPrefs() ExportPrefs {
	return ExportPrefs{DefaultFormat: "json", DefaultMode: "user"}
}

// MergeCloud is cloud-wins for each non-empty field.
func (p ExportPrefs) MergeCloud(cloud ExportPrefs) ExportPrefs {
	out := p
	if cloud.DefaultFormat != "" {
		out.DefaultFormat = cloud.DefaultFormat
	}
	if cloud.DefaultMode != "" {
		out.DefaultMode = cloud.DefaultMode
	}
	return out
}

// SortPref is one tab's sort order.
type SortPref struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// UIPrefs covers theme, column visibility, and per-tab sort order.
type UIPrefs struct {
	Theme            string              `json:"theme"`
	ColumnVisibility map[string]bool     `json:"columnVisibility"`
	SortPreferences  map[string]SortPref `json:"sortPreferences"`
}

// DefaultUIPrefs shows every column with a light theme.
func DefaultUIPrefs() UIPrefs {
	return UIPrefs{
		Theme: "light",
		ColumnVisibility: map[string]bool{
			"intermediateTime": true,
			"advancedTime":     true,
			"topTime":          true,
			"pattern":          true,
			"comments":         true,
			"solvedDate":       true,
		},
		SortPreferences: make(map[string]SortPref),
	}
}

// SortFor returns the sort order for a tab, defaulting to name ascending.
func (p UIPrefs) SortFor(setKey string) SortPref {
	if s, ok := p.SortPreferences[setKey]; ok && s.Column != "" {
		return s
	}
	return SortPref{Column: "name", Direction: "asc"}
}

// MergeCloud merges a cloud document: theme and sort preferences are
// cloud-wins, column visibility is OR'd so a column shown on either
// device stays shown. Hiding a column therefore only takes effect on the
// device that hid it until the other device hides it too.
func (p UIPrefs) MergeCloud(cloud UIPrefs) UIPrefs {
	out := UIPrefs{
		Theme:            p.Theme,
		ColumnVisibility: make(map[string]bool, len(p.ColumnVisibility)),
		SortPreferences:  make(map[string]SortPref, len(p.SortPreferences)),
	}
	for k, v := range p.ColumnVisibility {
		out.ColumnVisibility[k] = v
	}
	for k, v := range p.SortPreferences {
		out.SortPreferences[k] = v
	}

	if cloud.Theme != "" {
		out.Theme = cloud.Theme
	}
	for col, visible := range cloud.ColumnVisibility {
		if visible {
			out.ColumnVisibility[col] = true
		}
	}
	for k, v := range cloud.SortPreferences {
		out.SortPreferences[k] = v
	}
	return out
}
