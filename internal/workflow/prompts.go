package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/corrift/segmentd/internal/catalog"
	"github.com/corrift/segmentd/internal/rules"
	"github.com/corrift/segmentd/internal/session"
)

// buildIntentPrompt renders the intent extraction prompt. The user content
// always comes last so downstream parsing of the prompt (and the offline
// mock) can separate instructions from user text.
func buildIntentPrompt(in ExtractInput) string {
	var b strings.Builder
	b.WriteString("你是奢侈品牌的营销策略助手。请从输入中提取结构化的营销意图，只输出一个JSON对象，不要输出其他内容。\n\n")
	b.WriteString("JSON字段：\n")
	b.WriteString("- business_goal: 业务目标描述，无法判断时为空字符串\n")
	b.WriteString("- kpi: 核心KPI标签（如 conversion、revenue、retention），无法判断时为空字符串\n")
	b.WriteString("- target_tiers: 涉及的等级标签数组（VVIP/VIP/Member），未提及时为空数组\n")
	b.WriteString("- behavior_filters: 行为筛选描述数组，按提及顺序排列\n")
	b.WriteString("- constraints: 约束条件文本数组\n")
	b.WriteString("- size_preference: 期望圈选规模 {\"min\":N,\"max\":M}，未提及时省略\n")
	b.WriteString("- clarity: \"clear\" 或 \"ambiguous\"\n\n")

	if in.IsModification && in.PreviousIntent != nil {
		prev, _ := json.Marshal(in.PreviousIntent)
		b.WriteString("这是一次增量调整。请基于之前的营销意图，只替换新输入明确提到的字段，未提及的字段原样保留；约束条件在原有基础上累积，除非新输入明确要求去掉某项。\n\n")
		b.WriteString("之前的营销意图：\n")
		b.Write(prev)
		b.WriteString("\n\n")
		b.WriteString(in.Context)
	} else {
		b.WriteString("请仅根据下面的用户需求提取营销意图。\n\n")
		if in.Context != "" {
			b.WriteString(in.Context)
		} else {
			b.WriteString("用户需求：" + in.UserInput)
		}
	}
	return b.String()
}

// buildMatchPrompt renders the feature matching prompt: the feature schema
// first, then the recognized intent last.
func buildMatchPrompt(intent session.Intent) string {
	var b strings.Builder
	b.WriteString("请将下面已识别的营销意图转换为具体的特征规则，只输出一个JSON对象：\n")
	b.WriteString(`{"rules":[{"key":"字段名","operator":"操作符","value":"值","feature_type":"类型","description":"说明"}],"match_status":"success|needs_refinement","gap":"无法映射的概念说明"}` + "\n\n")
	b.WriteString("可用操作符：==、in、>、>=、<、<=、between。\n\n")
	b.WriteString("## 可用特征字段\n\n")
	for _, c := range catalog.Categories {
		feats := catalog.ByCategory(c)
		if len(feats) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n", c)
		for _, f := range feats {
			fmt.Fprintf(&b, "- %s（%s，%s）：%s\n", f.Name, f.DisplayName, f.Type, f.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("## 已识别意图\n\n")
	payload, _ := json.Marshal(intent)
	b.Write(payload)
	return b.String()
}

// buildStrategyPrompt renders the strategy composition prompt.
func buildStrategyPrompt(intent session.Intent, rs []rules.Rule) string {
	var b strings.Builder
	b.WriteString("请基于以下营销意图和圈选规则，撰写一段简洁的营销策略建议（200字以内），说明触达渠道、节奏和内容方向。\n\n")
	b.WriteString("营销意图：\n")
	payload, _ := json.Marshal(intent)
	b.Write(payload)
	b.WriteString("\n\n圈选规则：\n")
	for _, r := range rs {
		fmt.Fprintf(&b, "- %s %s %s（%s）\n", r.Key, r.Operator, r.Value.Text(), r.Description)
	}
	return b.String()
}

// buildReportPrompt renders the final report prompt.
func buildReportPrompt(intent session.Intent, strategy string, audienceSize int, conversionRate float64) string {
	var b strings.Builder
	b.WriteString("请汇总本次人群圈选结果，生成一段面向营销人员的总结报告（250字以内）。\n\n")
	fmt.Fprintf(&b, "业务目标：%s\nKPI：%s\n圈选人数：%d\n预估转化率：%.1f%%\n", intent.BusinessGoal, intent.KPI, audienceSize, conversionRate*100)
	if strategy != "" {
		b.WriteString("\n策略建议：\n" + strategy + "\n")
	}
	return b.String()
}
