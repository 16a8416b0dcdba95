package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// MockModel is a deterministic stand-in used when no endpoint is configured
// or the upstream is unreachable. It keys off the stage prompt and the user
// text embedded in it, so the pipeline stays operable and testable without a
// live model.
type MockModel struct{}

func NewMockModel() *MockModel { return &MockModel{} }

func (m *MockModel) Chat(_ context.Context, req Request) (string, error) {
	return m.respond(req), nil
}

// ChatStream emits the canned response in small chunks so the streaming path
// is exercised end to end.
func (m *MockModel) ChatStream(ctx context.Context, req Request, onDelta func(string) error) (string, error) {
	full := m.respond(req)
	if onDelta != nil {
		runes := []rune(full)
		const chunk = 8
		for i := 0; i < len(runes); i += chunk {
			end := i + chunk
			if end > len(runes) {
				end = len(runes)
			}
			if err := ctx.Err(); err != nil {
				return string(runes[:i]), err
			}
			if err := onDelta(string(runes[i:end])); err != nil {
				return string(runes[:i]), err
			}
		}
	}
	return full, nil
}

func (m *MockModel) respond(req Request) string {
	prompt := ""
	for _, msg := range req.Messages {
		prompt += msg.Content + "\n"
	}
	switch {
	case strings.Contains(prompt, "特征规则"):
		return m.rulesJSON(intentText(prompt))
	case strings.Contains(prompt, "营销策略建议"):
		return "基于已识别的目标人群，建议通过会员专属渠道推送个性化内容，分阶段触达并跟踪转化表现。"
	case strings.Contains(prompt, "营销意图"):
		return m.intentJSON(userText(prompt))
	default:
		return "本次圈选已完成，目标人群已按设定条件筛选，预估指标见下方明细。"
	}
}

// userText isolates the user-authored portion of an intent prompt so that
// neither template boilerplate nor prior-turn history counts as a targeting
// signal. On multi-turn prompts only the new-input section matters; signals
// from earlier turns already live in the previous intent and must not leak
// back in, or a narrowing request could never shrink the tier set.
func userText(prompt string) string {
	if i := strings.Index(prompt, "## 新的用户输入"); i >= 0 {
		sect := prompt[i:]
		if j := strings.Index(sect, "---"); j >= 0 {
			sect = sect[:j]
		}
		return sect
	}
	if i := strings.Index(prompt, "用户需求："); i >= 0 {
		return prompt[i+len("用户需求："):]
	}
	return prompt
}

// intentText isolates the recognized-intent section of a matcher prompt.
func intentText(prompt string) string {
	if i := strings.Index(prompt, "## 已识别意图"); i >= 0 {
		return prompt[i:]
	}
	return prompt
}

var goalSignals = []string{"提升", "促进", "转化", "复购", "推广", "新品", "召回", "激活", "活动", "销售"}

var audienceSignals = []string{
	"VVIP", "VIP", "会员", "高价值", "消费", "购买", "浏览", "加购",
	"年龄", "岁", "女性", "男性", "客户", "忠诚", "到店", "门店",
}

// genericAudience words alone carry no targeting signal.
var genericAudience = []string{"用户", "人群"}

func (m *MockModel) intentJSON(prompt string) string {
	intent := map[string]any{
		"business_goal":    "",
		"kpi":              "",
		"target_tiers":     []string{},
		"behavior_filters": []string{},
		"constraints":      []string{},
		"clarity":          "ambiguous",
	}

	hasGoal := containsAny(prompt, goalSignals)
	hasAudience := containsAny(prompt, audienceSignals)

	if hasGoal {
		intent["business_goal"] = "提升目标人群转化"
		intent["kpi"] = "conversion"
	}

	var tiers []string
	if strings.Contains(prompt, "VVIP") {
		tiers = append(tiers, "VVIP")
	}
	// Avoid double-counting the VIP substring of VVIP.
	if strings.Contains(strings.ReplaceAll(prompt, "VVIP", ""), "VIP") {
		tiers = append(tiers, "VIP")
	}
	if len(tiers) > 0 {
		intent["target_tiers"] = tiers
	}

	var behaviors []string
	for _, b := range []string{"购买", "浏览", "加购", "到店"} {
		if strings.Contains(prompt, b) {
			behaviors = append(behaviors, b+"行为活跃")
		}
	}
	if len(behaviors) > 0 {
		intent["behavior_filters"] = behaviors
	}

	if hasGoal || hasAudience {
		intent["clarity"] = "clear"
	}

	b, _ := json.Marshal(intent)
	return string(b)
}

func (m *MockModel) rulesJSON(prompt string) string {
	type rule struct {
		Key         string `json:"key"`
		Operator    string `json:"operator"`
		Value       any    `json:"value"`
		FeatureType string `json:"feature_type"`
		Description string `json:"description"`
	}
	var rs []rule

	var tiers []string
	if strings.Contains(prompt, "VVIP") {
		tiers = append(tiers, "VVIP")
	}
	if strings.Contains(strings.ReplaceAll(prompt, "VVIP", ""), "VIP") {
		tiers = append(tiers, "VIP")
	}
	if len(tiers) > 0 {
		rs = append(rs, rule{Key: "tier", Operator: "in", Value: tiers, FeatureType: "categorical", Description: "会员等级筛选"})
	}
	if strings.Contains(prompt, "消费") {
		rs = append(rs, rule{Key: "r12m_spending", Operator: ">", Value: 100000, FeatureType: "numeric", Description: "近12个月消费额门槛"})
	}
	if strings.Contains(prompt, "手袋") {
		rs = append(rs, rule{Key: "category_browsing.手袋", Operator: ">", Value: 5, FeatureType: "numeric", Description: "手袋品类兴趣"})
	}
	if len(rs) == 0 {
		rs = append(rs, rule{Key: "score", Operator: ">=", Value: 85, FeatureType: "numeric", Description: "高潜力客户"})
	}

	out := map[string]any{"rules": rs, "match_status": "success"}
	b, _ := json.Marshal(out)
	return string(b)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
