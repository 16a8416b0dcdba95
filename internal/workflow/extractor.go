package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/corrift/segmentd/internal/llm"
	"github.com/corrift/segmentd/internal/session"
)

// ErrExtraction marks a recoverable intent extraction failure: no turn is
// committed and the caller may resubmit the same input.
var ErrExtraction = errors.New("intent extraction failed")

const defaultStageTimeout = 30 * time.Second

// ExtractInput is everything the intent stage needs for one call.
type ExtractInput struct {
	UserInput      string
	Context        string
	IsModification bool
	PreviousIntent *session.Intent
}

// Extractor derives a structured Intent from free text, in fresh or
// incremental mode.
type Extractor struct {
	model   llm.Chatter
	timeout time.Duration
}

func NewExtractor(model llm.Chatter) *Extractor {
	return &Extractor{model: model, timeout: defaultStageTimeout}
}

// Extract runs one intent extraction. onDelta receives incremental model
// text; a non-nil return from it aborts the call.
//
// In incremental mode the result is a complete Intent: fields the new input
// does not mention are carried over from the previous intent unchanged, the
// constraint set is unioned, and explicitly negated constraints are removed.
// A non-parseable response falls back to the previous intent in incremental
// mode and fails with ErrExtraction otherwise.
func (e *Extractor) Extract(ctx context.Context, in ExtractInput, onDelta func(string) error) (session.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.model.ChatStream(ctx, llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: buildIntentPrompt(in)}},
		Temperature: 0.2,
		MaxTokens:   1024,
	}, onDelta)
	if err != nil {
		return session.Intent{}, fmt.Errorf("intent model call: %w", err)
	}

	parsed, err := parseIntent(raw)
	if err != nil {
		if in.IsModification && in.PreviousIntent != nil {
			slog.Warn("intent unparseable, keeping previous intent", "error", err)
			prev := in.PreviousIntent.Clone()
			prev.Clarity = session.ClarityClear
			return prev, nil
		}
		return session.Intent{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	intent := parsed
	if in.IsModification && in.PreviousIntent != nil {
		intent = mergeIntent(*in.PreviousIntent, parsed, in.UserInput)
	}
	intent.Clarity = clarity(intent)
	return intent, nil
}

// parseIntent extracts the JSON object embedded in a model response. Models
// frequently wrap JSON in code fences or prepend filler text.
func parseIntent(raw string) (session.Intent, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return session.Intent{}, err
	}
	var intent session.Intent
	if err := json.Unmarshal([]byte(obj), &intent); err != nil {
		return session.Intent{}, fmt.Errorf("unmarshal intent: %w", err)
	}
	return intent, nil
}

// extractJSONObject strips markdown fences and returns the first {...} span.
func extractJSONObject(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		if strings.HasPrefix(s, "json") {
			s = s[4:]
		}
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return s[start : end+1], nil
}

// mergeIntent applies incremental-mode semantics: fields the model did not
// re-state carry over from prev byte for byte; constraints union, minus any
// the new input explicitly negates.
func mergeIntent(prev, parsed session.Intent, input string) session.Intent {
	out := prev.Clone()

	if parsed.BusinessGoal != "" {
		out.BusinessGoal = parsed.BusinessGoal
	}
	if parsed.KPI != "" {
		out.KPI = parsed.KPI
	}
	if len(parsed.TargetTiers) > 0 {
		out.TargetTiers = append([]string(nil), parsed.TargetTiers...)
	}
	if len(parsed.BehaviorFilters) > 0 {
		out.BehaviorFilters = append([]string(nil), parsed.BehaviorFilters...)
	}
	if parsed.SizePreference != nil {
		r := *parsed.SizePreference
		out.SizePreference = &r
	}

	kept := out.Constraints[:0]
	for _, c := range out.Constraints {
		if !negates(input, c) {
			kept = append(kept, c)
		}
	}
	out.Constraints = kept
	for _, c := range parsed.Constraints {
		if !contains(out.Constraints, c) {
			out.Constraints = append(out.Constraints, c)
		}
	}
	return out
}

var negationPrefixes = []string{"去掉", "移除", "不要", "取消"}

// negates reports whether input explicitly asks to drop constraint c.
func negates(input, c string) bool {
	for _, p := range negationPrefixes {
		if strings.Contains(input, p+c) {
			return true
		}
	}
	return false
}

// clarity is the deterministic backstop over the model's own judgement:
// ambiguous iff the intent carries neither a business goal nor any
// audience-identifying signal. One concrete audience signal is enough for
// clear even with a generic goal.
func clarity(i session.Intent) string {
	hasAudience := len(i.TargetTiers) > 0 || len(i.BehaviorFilters) > 0 ||
		len(i.Constraints) > 0 || i.SizePreference != nil
	if i.BusinessGoal == "" && !hasAudience {
		return session.ClarityAmbiguous
	}
	return session.ClarityClear
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
