package rules

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Rule is one typed filter predicate over a population field.
type Rule struct {
	Key         string `json:"key"`
	Operator    string `json:"operator"`
	Value       Value  `json:"value"`
	FeatureType string `json:"feature_type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Subject is one population record viewed as a field lookup. Field returns
// Null for fields the record does not carry.
type Subject interface {
	SubjectID() string
	Field(name string) Value
}

// Diagnostic records a per-rule evaluation problem (a value that could not be
// coerced, an unknown operator). Evaluation continues past it.
type Diagnostic struct {
	ID       string `json:"id"`
	RecordID string `json:"record_id"`
	RuleKey  string `json:"rule_key"`
	Operator string `json:"operator"`
	Detail   string `json:"detail"`
}

// Match pairs a matched subject with its computed match score.
type Match struct {
	Subject Subject
	Score   float64
}

// Result is the outcome of evaluating a rule set against a population.
// Matches preserve input order; Top returns a score-ranked prefix.
type Result struct {
	Matches     []Match
	Count       int
	Diagnostics []Diagnostic
}

// Evaluate filters subjects by the conjunction of all rules. Rule order never
// affects membership. Malformed values evaluate to no-match with a diagnostic;
// evaluation of remaining rules and subjects continues.
func Evaluate(subjects []Subject, rs []Rule) *Result {
	res := &Result{}
	for _, s := range subjects {
		matched := true
		for _, r := range rs {
			ok, diag := evalRule(s, r)
			if diag != nil {
				res.Diagnostics = append(res.Diagnostics, *diag)
			}
			if !ok {
				matched = false
				break
			}
		}
		if matched {
			res.Matches = append(res.Matches, Match{Subject: s, Score: MatchScore(s)})
		}
	}
	res.Count = len(res.Matches)
	return res
}

// Top returns the n highest-scoring matches, score descending, input order on
// ties. n larger than the match count returns everything.
func (r *Result) Top(n int) []Match {
	ranked := make([]Match, len(r.Matches))
	copy(ranked, r.Matches)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if n >= 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

func evalRule(s Subject, r Rule) (bool, *Diagnostic) {
	field := s.Field(r.Key)

	switch r.Operator {
	case "=", "==":
		return field.Equal(r.Value), nil

	case "in":
		// A scalar rule value is treated as a single-element list.
		for _, item := range r.Value.Items() {
			if field.Equal(item) {
				return true, nil
			}
		}
		return false, nil

	case ">", ">=", "<", "<=":
		fv, ok := field.Float()
		if !ok {
			return false, diag(s, r, fmt.Sprintf("field value %q is not numeric", field.Text()))
		}
		rv, ok := r.Value.Float()
		if !ok {
			return false, diag(s, r, fmt.Sprintf("rule value %q is not numeric", r.Value.Text()))
		}
		switch r.Operator {
		case ">":
			return fv > rv, nil
		case ">=":
			return fv >= rv, nil
		case "<":
			return fv < rv, nil
		default:
			return fv <= rv, nil
		}

	case "between":
		bounds := r.Value.Items()
		if len(bounds) != 2 {
			return false, diag(s, r, fmt.Sprintf("between needs two bounds, got %d", len(bounds)))
		}
		lo, lok := bounds[0].Float()
		hi, hok := bounds[1].Float()
		if !lok || !hok {
			return false, diag(s, r, fmt.Sprintf("non-numeric bound in %s", r.Value.Text()))
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		fv, ok := field.Float()
		if !ok {
			return false, diag(s, r, fmt.Sprintf("field value %q is not numeric", field.Text()))
		}
		return fv >= lo && fv <= hi, nil

	case "contains":
		for _, item := range field.Items() {
			if item.Equal(r.Value) {
				return true, nil
			}
		}
		return false, nil

	case "not_empty":
		return len(field.Items()) > 0, nil

	case "empty":
		return len(field.Items()) == 0, nil

	default:
		return false, diag(s, r, fmt.Sprintf("unknown operator %q", r.Operator))
	}
}

func diag(s Subject, r Rule, detail string) *Diagnostic {
	return &Diagnostic{
		ID:       uuid.NewString(),
		RecordID: s.SubjectID(),
		RuleKey:  r.Key,
		Operator: r.Operator,
		Detail:   detail,
	}
}
