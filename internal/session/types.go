// Package session owns per-conversation state: the turn history, the
// consolidated targeting context carried across turns, and the heuristics
// that decide whether a new input refines the previous campaign.
package session

import (
	"time"

	"github.com/corrift/segmentd/internal/metrics"
)

// Clarity values for an extracted Intent.
const (
	ClarityClear     = "clear"
	ClarityAmbiguous = "ambiguous"
)

// SizeRange is an optional preferred audience size window.
type SizeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Intent is the structured targeting request extracted from free text.
// Immutable once returned from a stage; carried across turns by value.
type Intent struct {
	BusinessGoal    string     `json:"business_goal"`
	KPI             string     `json:"kpi"`
	TargetTiers     []string   `json:"target_tiers"`
	BehaviorFilters []string   `json:"behavior_filters"`
	Constraints     []string   `json:"constraints"`
	SizePreference  *SizeRange `json:"size_preference,omitempty"`
	Clarity         string     `json:"clarity"`
}

// Clone returns a deep copy.
func (i Intent) Clone() Intent {
	cp := i
	cp.TargetTiers = cloneStrings(i.TargetTiers)
	cp.BehaviorFilters = cloneStrings(i.BehaviorFilters)
	cp.Constraints = cloneStrings(i.Constraints)
	if i.SizePreference != nil {
		r := *i.SizePreference
		cp.SizePreference = &r
	}
	return cp
}

// ConversationTurn is the immutable record of one completed run.
type ConversationTurn struct {
	UserInput    string             `json:"user_input"`
	Intent       Intent             `json:"intent"`
	AudienceSize int                `json:"audience_size"`
	AudienceIDs  []string           `json:"audience_ids,omitempty"`
	Metrics      metrics.Prediction `json:"metrics"`
	Response     string             `json:"response"`
	Timestamp    time.Time          `json:"timestamp"`
}

// Context is the consolidated cross-turn strategy state: the latest intent
// wins per field, while the constraint set is the union of every constraint
// ever seen in the session.
type Context struct {
	Intent      Intent   `json:"intent"`
	Constraints []string `json:"constraints"`
}

// Session is one user's multi-turn conversation state.
type Session struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Turns     []ConversationTurn `json:"turns"`
	Context   Context            `json:"context"`
}

func cloneStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	out := make([]string, len(ss))
	copy(out, ss)
	return out
}

func cloneSession(s *Session) Session {
	cp := *s
	cp.Turns = make([]ConversationTurn, len(s.Turns))
	for i, t := range s.Turns {
		ct := t
		ct.Intent = t.Intent.Clone()
		ct.AudienceIDs = cloneStrings(t.AudienceIDs)
		cp.Turns[i] = ct
	}
	cp.Context.Intent = s.Context.Intent.Clone()
	cp.Context.Constraints = cloneStrings(s.Context.Constraints)
	return cp
}
