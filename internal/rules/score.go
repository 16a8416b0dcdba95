package rules

import "strings"

const (
	scoreWeight    = 0.3
	behaviorWeight = 0.7
)

var tierWeights = map[string]float64{
	"VVIP":   1.0,
	"VIP":    0.8,
	"Member": 0.5,
}

// MatchScore rates a subject's fit on a 0–100 scale: tier weight normalized
// to 50 points, the base score and behavior signals contributing small
// tie-breaking adjustments on top.
func MatchScore(s Subject) float64 {
	tier := s.Field("tier").Text()
	w, ok := tierWeights[tier]
	if !ok {
		w = 0.5
	}
	total := w * 50

	if base, ok := s.Field("score").Float(); ok {
		total += base * (scoreWeight / 100)
	}

	reason := s.Field("reason").Text()
	behavior := 0.0
	if strings.Contains(reason, "购买") {
		behavior += 20
	}
	if strings.Contains(reason, "浏览") {
		behavior += 15
	}
	if strings.Contains(reason, "加购") {
		behavior += 15
	}
	if strings.Contains(reason, "参加") {
		behavior += 10
	}
	total += behavior * (behaviorWeight / 100)

	if total > 100 {
		total = 100
	}
	return total
}
