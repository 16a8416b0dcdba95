package session

import (
	"fmt"
	"strings"
)

// contextWindow bounds the per-turn history summary rendered into LLM
// context. The accumulated constraint block is unbounded on purpose.
const contextWindow = 10

// BuildContext renders the LLM context for a new input: a bounded summary of
// the last turns, the unbounded current strategy state, and the new input
// verbatim.
func BuildContext(s Session, input string) string {
	if len(s.Turns) == 0 {
		return "用户需求：" + input
	}

	history := historySummary(s.Turns, contextWindow)
	latest := s.Context.Intent

	constraints := "无"
	if len(s.Context.Constraints) > 0 {
		constraints = strings.Join(s.Context.Constraints, ", ")
	}

	var b strings.Builder
	b.WriteString("## 对话历史\n\n")
	b.WriteString(history)
	b.WriteString("\n\n## 累积的营销策略信息\n\n")
	b.WriteString("基于以上对话历史，当前累积的营销策略包括：\n")
	fmt.Fprintf(&b, "- 业务目标: %s\n", orNA(latest.BusinessGoal))
	fmt.Fprintf(&b, "- KPI目标: %s\n", orNA(latest.KPI))
	fmt.Fprintf(&b, "- 目标人群: %s\n", orNA(strings.Join(latest.TargetTiers, ", ")))
	fmt.Fprintf(&b, "- 所有约束条件: %s\n", constraints)
	b.WriteString("\n## 新的用户输入\n\n")
	b.WriteString(input)
	b.WriteString("\n\n---\n\n")
	b.WriteString(`**重要说明**：
这是一个多轮对话。新的用户输入可能是：
1. **补充信息**：在现有需求基础上增加新的约束或条件（如"不要最近购买过的"、"只要女性客户"）
2. **修改需求**：调整之前的某些条件（如"去掉年龄限制"、"改成500人"、"换成VVIP"）
3. **全新需求**：提出完全不同的营销目标

请仔细分析新输入，**融合所有历史信息**：
- 如果是补充或修改，请在现有信息基础上累积新的约束条件
- 保留之前明确提到的所有有效约束和目标
- 合并所有轮次的需求，形成完整的意图理解
`)
	return b.String()
}

func historySummary(turns []ConversationTurn, maxTurns int) string {
	recent := turns
	if len(recent) > maxTurns {
		recent = recent[len(recent)-maxTurns:]
	}

	parts := make([]string, 0, len(recent))
	for i, t := range recent {
		constraints := "无"
		if len(t.Intent.Constraints) > 0 {
			constraints = strings.Join(t.Intent.Constraints, ", ")
		}
		parts = append(parts, fmt.Sprintf(
			"第%d轮:\n  用户输入: %s\n  业务目标: %s\n  KPI目标: %s\n  目标人群: %s\n  约束条件: %s\n  圈选人数: %d人\n",
			i+1,
			t.UserInput,
			orNA(t.Intent.BusinessGoal),
			orNA(t.Intent.KPI),
			orNA(strings.Join(t.Intent.TargetTiers, ", ")),
			constraints,
			t.AudienceSize,
		))
	}
	return strings.Join(parts, "\n")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
