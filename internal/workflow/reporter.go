package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/corrift/segmentd/internal/catalog"
	"github.com/corrift/segmentd/internal/llm"
	"github.com/corrift/segmentd/internal/metrics"
	"github.com/corrift/segmentd/internal/rules"
	"github.com/corrift/segmentd/internal/session"
)

// TargetTrait groups validated rules under the catalog category they came
// from, for presentation in the final proposal.
type TargetTrait struct {
	Category string       `json:"category"`
	Rules    []rules.Rule `json:"rules"`
}

// Proposal is the structured circling scheme returned alongside the report.
type Proposal struct {
	ID             string        `json:"id"`
	MarketingGoal  string        `json:"marketing_goal"`
	KPI            string        `json:"kpi,omitempty"`
	Constraints    []string      `json:"constraints,omitempty"`
	TargetTraits   []TargetTrait `json:"target_traits"`
	TargetAudience int           `json:"target_audience"`
}

// Reporter composes the final natural language summary and the structured
// proposal.
type Reporter struct {
	model   llm.Chatter
	timeout time.Duration
}

func NewReporter(model llm.Chatter) *Reporter {
	return &Reporter{model: model, timeout: defaultStageTimeout}
}

func (r *Reporter) Compose(ctx context.Context, intent session.Intent, matched []rules.Rule, strategy Strategy, pred metrics.Prediction, onDelta func(string) error) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.model.ChatStream(ctx, llm.Request{
		Messages: []llm.Message{{
			Role:    "user",
			Content: buildReportPrompt(intent, strategy.Narrative, pred.AudienceSize, pred.ConversionRate),
		}},
		Temperature: 0.5,
		MaxTokens:   1024,
	}, onDelta)
	if err != nil {
		return "", fmt.Errorf("reporter model call: %w", err)
	}

	report := strings.TrimSpace(raw)
	if report == "" {
		slog.Warn("reporter returned empty output, using fallback")
		report = fallbackReport(intent, pred)
	}
	return report, nil
}

func fallbackReport(intent session.Intent, pred metrics.Prediction) string {
	goal := intent.BusinessGoal
	if goal == "" {
		goal = "本次营销活动"
	}
	return fmt.Sprintf(
		"## 人群圈选报告\n\n本次围绕「%s」共圈选 %d 位客户，预估转化率 %.1f%%，预估带来收入 ¥%.0f，投资回报率 %.1f%%。建议按推荐策略分批触达，并在活动后回收实际转化数据用于下一轮校准。",
		goal, pred.AudienceSize, pred.ConversionRate*100, pred.EstimatedRevenue, pred.ROI)
}

// BuildProposal assembles the structured proposal from the validated rules,
// grouped by catalog category.
func BuildProposal(intent session.Intent, matched []rules.Rule, audienceSize int) Proposal {
	p := Proposal{
		ID:             uuid.NewString(),
		MarketingGoal:  intent.BusinessGoal,
		KPI:            intent.KPI,
		Constraints:    append([]string(nil), intent.Constraints...),
		TargetAudience: audienceSize,
	}
	order := make([]string, 0, 4)
	grouped := make(map[string][]rules.Rule)
	for _, rl := range matched {
		cat := categoryOf(rl.Key)
		if _, ok := grouped[cat]; !ok {
			order = append(order, cat)
		}
		grouped[cat] = append(grouped[cat], rl)
	}
	for _, cat := range order {
		p.TargetTraits = append(p.TargetTraits, TargetTrait{Category: cat, Rules: grouped[cat]})
	}
	return p
}

func categoryOf(key string) string {
	if f, ok := catalog.ByName(key); ok {
		return f.Category
	}
	return "其他"
}
