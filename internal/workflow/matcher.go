package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/corrift/segmentd/internal/catalog"
	"github.com/corrift/segmentd/internal/llm"
	"github.com/corrift/segmentd/internal/rules"
	"github.com/corrift/segmentd/internal/session"
)

// Match statuses. A refinement need is a normal branch outcome, not an
// error.
const (
	MatchSuccess         = "success"
	MatchNeedsRefinement = "needs_refinement"
)

// MatchResult is the feature matching stage output.
type MatchResult struct {
	Rules  []rules.Rule `json:"rules"`
	Status string       `json:"match_status"`
	Gap    string       `json:"gap,omitempty"`
}

// Matcher resolves qualitative intent terms to concrete schema fields and
// operators, validating everything against the feature catalog.
type Matcher struct {
	model   llm.Chatter
	timeout time.Duration
}

func NewMatcher(model llm.Chatter) *Matcher {
	return &Matcher{model: model, timeout: defaultStageTimeout}
}

// Match converts an Intent into validated feature rules. Concepts with no
// schema field and no reasonable proxy yield needs_refinement plus a
// description of the specific gap.
func (m *Matcher) Match(ctx context.Context, intent session.Intent, onDelta func(string) error) (MatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	raw, err := m.model.ChatStream(ctx, llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: buildMatchPrompt(intent)}},
		Temperature: 0.2,
		MaxTokens:   1024,
	}, onDelta)
	if err != nil {
		return MatchResult{}, fmt.Errorf("matcher model call: %w", err)
	}

	parsed, err := parseMatch(raw)
	if err != nil {
		slog.Warn("matcher output unparseable, deriving rules from intent", "error", err)
		parsed = MatchResult{Rules: deriveRules(intent), Status: MatchSuccess}
	}

	return validate(parsed), nil
}

func parseMatch(raw string) (MatchResult, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return MatchResult{}, err
	}
	var res MatchResult
	if err := json.Unmarshal([]byte(obj), &res); err != nil {
		return MatchResult{}, fmt.Errorf("unmarshal match result: %w", err)
	}
	if len(res.Rules) == 0 && res.Status != MatchNeedsRefinement {
		return MatchResult{}, fmt.Errorf("match result carries no rules")
	}
	return res, nil
}

// validate checks every proposed rule against the catalog, annotates the
// feature type, and applies light inference (an age phrase becomes a between
// rule). Unknown fields turn the result into needs_refinement.
func validate(res MatchResult) MatchResult {
	out := MatchResult{Status: res.Status, Gap: res.Gap}
	if out.Status == "" {
		out.Status = MatchSuccess
	}

	var gaps []string
	for _, r := range res.Rules {
		r = inferAgeRule(r)
		feat, ok := catalog.ByName(r.Key)
		if !ok {
			gaps = append(gaps, fmt.Sprintf("无法将「%s」映射到任何人群特征字段", r.Key))
			continue
		}
		if !feat.SupportsOperator(r.Operator) {
			gaps = append(gaps, fmt.Sprintf("特征「%s」不支持操作符 %s", feat.DisplayName, r.Operator))
			continue
		}
		r.FeatureType = feat.Type
		if r.Description == "" {
			r.Description = feat.DisplayName
		}
		out.Rules = append(out.Rules, r)
	}

	if len(gaps) > 0 {
		out.Status = MatchNeedsRefinement
		if out.Gap != "" {
			gaps = append([]string{out.Gap}, gaps...)
		}
		out.Gap = strings.Join(gaps, "；")
	}
	if len(out.Rules) == 0 && out.Status == MatchSuccess {
		out.Status = MatchNeedsRefinement
		out.Gap = "未能从意图中得到任何可执行的圈选条件"
	}
	return out
}

var agePhrase = regexp.MustCompile(`^(\d+)\s*[-~到至]\s*(\d+)\s*岁?$`)

// inferAgeRule maps an age phrase like "25-34岁" on the numeric age field to
// an inclusive between rule.
func inferAgeRule(r rules.Rule) rules.Rule {
	if r.Key != "age" || r.Operator == "between" {
		return r
	}
	m := agePhrase.FindStringSubmatch(strings.TrimSpace(r.Value.Text()))
	if m == nil {
		return r
	}
	lo, err1 := strconv.Atoi(m[1])
	hi, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return r
	}
	r.Operator = "between"
	r.Value = rules.List(rules.Number(float64(lo)), rules.Number(float64(hi)))
	return r
}

// deriveRules builds a deterministic baseline rule set straight from the
// intent when the model output is unusable.
func deriveRules(intent session.Intent) []rules.Rule {
	var rs []rules.Rule
	if len(intent.TargetTiers) > 0 {
		rs = append(rs, rules.Rule{
			Key:         "tier",
			Operator:    "in",
			Value:       rules.Strings(intent.TargetTiers...),
			Description: "会员等级筛选",
		})
	}
	if len(rs) == 0 {
		rs = append(rs, rules.Rule{
			Key:         "score",
			Operator:    ">=",
			Value:       rules.Number(85),
			Description: "高潜力客户",
		})
	}
	return rs
}
