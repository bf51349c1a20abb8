package transfer

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/grindpulse/grindsync/internal/model"
)

// FlexBool is a bool that unmarshals from native booleans, "true" in any
// case, and "1", since solved flags arrive in all three shapes depending
// on the source format. It marshals as a plain bool.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = FlexBool(t)
	case string:
		*b = FlexBool(parseBoolValue(t))
	case float64:
		*b = FlexBool(t == 1)
	default:
		return fmt.Errorf("cannot parse %v as solved flag", v)
	}
	return nil
}

func (b *FlexBool) UnmarshalYAML(node *yaml.Node) error {
	*b = FlexBool(parseBoolValue(node.Value))
	return nil
}

// UnmarshalText covers XML element content.
func (b *FlexBool) UnmarshalText(text []byte) error {
	*b = FlexBool(parseBoolValue(string(text)))
	return nil
}

// Row is one problem as it appears in an import or export payload. Every
// field except the name is a pointer: nil means the field was absent
// from the source, which is what mode detection and conflict detection
// key on. Exports populate exactly the fields their mode carries.
type Row struct {
	Name string `json:"name" yaml:"name" xml:"name"`

	Difficulty       *string `json:"difficulty,omitempty" yaml:"difficulty,omitempty" xml:"difficulty,omitempty"`
	IntermediateTime *string `json:"intermediate_time,omitempty" yaml:"intermediate_time,omitempty" xml:"intermediate_time,omitempty"`
	AdvancedTime     *string `json:"advanced_time,omitempty" yaml:"advanced_time,omitempty" xml:"advanced_time,omitempty"`
	TopTime          *string `json:"top_time,omitempty" yaml:"top_time,omitempty" xml:"top_time,omitempty"`
	Pattern          *string `json:"pattern,omitempty" yaml:"pattern,omitempty" xml:"pattern,omitempty"`

	Solved      *FlexBool `json:"solved,omitempty" yaml:"solved,omitempty" xml:"solved,omitempty"`
	TimeToSolve *string   `json:"time_to_solve,omitempty" yaml:"time_to_solve,omitempty" xml:"time_to_solve,omitempty"`
	Comments    *string   `json:"comments,omitempty" yaml:"comments,omitempty" xml:"comments,omitempty"`
	SolvedDate  *string   `json:"solved_date,omitempty" yaml:"solved_date,omitempty" xml:"solved_date,omitempty"`
}

// DetectMode infers the import mode from which fields the row carries.
// A row with both definition and progress fields is full; one with
// neither defaults to full as well.
func (r Row) DetectMode() Mode {
	hasUser := r.Solved != nil || r.TimeToSolve != nil || r.Comments != nil || r.SolvedDate != nil
	hasDef := r.Difficulty != nil || r.Pattern != nil || r.IntermediateTime != nil
	switch {
	case hasUser && !hasDef:
		return ModeUser
	case hasDef && !hasUser:
		return ModeProblems
	default:
		return ModeFull
	}
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *FlexBool {
	fb := FlexBool(b)
	return &fb
}

// rowForMode projects a problem onto the fields its export mode carries.
func rowForMode(p *model.Problem, mode Mode) Row {
	r := Row{Name: p.Name}
	if mode == ModeFull || mode == ModeProblems {
		r.Difficulty = strPtr(string(p.Difficulty))
		r.IntermediateTime = strPtr(p.IntermediateTime)
		r.AdvancedTime = strPtr(p.AdvancedTime)
		r.TopTime = strPtr(p.TopTime)
		r.Pattern = strPtr(p.Pattern)
	}
	if mode == ModeFull || mode == ModeUser {
		r.Solved = boolPtr(p.Solved)
		r.TimeToSolve = strPtr(p.TimeToSolve)
		r.Comments = strPtr(p.Comments)
		r.SolvedDate = strPtr(p.SolvedDate)
	}
	return r
}

// fieldValue returns the textual value of one canonical field, empty for
// fields the row does not carry.
func (r Row) fieldValue(field string) string {
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	switch field {
	case "name":
		return r.Name
	case "difficulty":
		return str(r.Difficulty)
	case "intermediate_time":
		return str(r.IntermediateTime)
	case "advanced_time":
		return str(r.AdvancedTime)
	case "top_time":
		return str(r.TopTime)
	case "pattern":
		return str(r.Pattern)
	case "solved":
		if r.Solved == nil {
			return ""
		}
		if bool(*r.Solved) {
			return "true"
		}
		return "false"
	case "time_to_solve":
		return str(r.TimeToSolve)
	case "comments":
		return str(r.Comments)
	case "solved_date":
		return str(r.SolvedDate)
	default:
		return ""
	}
}

// setField assigns one canonical field from parsed text. Unknown fields
// are dropped.
func (r *Row) setField(field, value string) {
	switch field {
	case "name":
		r.Name = value
	case "difficulty":
		r.Difficulty = strPtr(value)
	case "intermediate_time":
		r.IntermediateTime = strPtr(value)
	case "advanced_time":
		r.AdvancedTime = strPtr(value)
	case "top_time":
		r.TopTime = strPtr(value)
	case "pattern":
		r.Pattern = strPtr(value)
	case "solved":
		r.Solved = boolPtr(parseBoolValue(value))
	case "time_to_solve":
		r.TimeToSolve = strPtr(value)
	case "comments":
		r.Comments = strPtr(value)
	case "solved_date":
		r.SolvedDate = strPtr(value)
	}
}
