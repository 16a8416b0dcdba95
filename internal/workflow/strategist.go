package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/corrift/segmentd/internal/llm"
	"github.com/corrift/segmentd/internal/rules"
	"github.com/corrift/segmentd/internal/session"
)

// Strategy is the composed campaign recommendation for a matched audience.
type Strategy struct {
	Narrative string `json:"narrative"`
	Summary   string `json:"summary"`
}

// Strategist turns an intent plus validated rules into channel, timing and
// messaging recommendations.
type Strategist struct {
	model   llm.Chatter
	timeout time.Duration
}

func NewStrategist(model llm.Chatter) *Strategist {
	return &Strategist{model: model, timeout: defaultStageTimeout}
}

func (s *Strategist) Compose(ctx context.Context, intent session.Intent, matched []rules.Rule, onDelta func(string) error) (Strategy, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.model.ChatStream(ctx, llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: buildStrategyPrompt(intent, matched)}},
		Temperature: 0.7,
		MaxTokens:   1024,
	}, onDelta)
	if err != nil {
		return Strategy{}, fmt.Errorf("strategist model call: %w", err)
	}

	narrative := strings.TrimSpace(raw)
	if narrative == "" {
		slog.Warn("strategist returned empty output, using fallback")
		narrative = fallbackStrategy(intent)
	}
	return Strategy{Narrative: narrative, Summary: summarize(narrative)}, nil
}

func fallbackStrategy(intent session.Intent) string {
	goal := intent.BusinessGoal
	if goal == "" {
		goal = "提升目标人群转化"
	}
	return fmt.Sprintf("围绕「%s」目标，建议通过企业微信一对一触达高价值客户，配合门店专属权益短信提醒，活动前三天完成首轮推送。", goal)
}

// summarize takes the first sentence of the narrative as the one-line stage
// summary.
func summarize(narrative string) string {
	for _, sep := range []string{"。", "\n"} {
		if i := strings.Index(narrative, sep); i > 0 {
			return narrative[:i+len(sep)]
		}
	}
	return narrative
}
