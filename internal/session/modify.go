package session

import "strings"

// ModificationDetector decides whether an input refines the previous
// campaign. The keyword heuristic below is an acknowledged approximation;
// the interface exists so it can be replaced by a learned classifier.
type ModificationDetector interface {
	IsModification(input string) bool
}

// modificationKeywords signal addition, removal, narrowing, expansion or
// exclusivity relative to an existing strategy.
var modificationKeywords = []string{
	"改", "调整", "修改", "去掉", "移除", "增加", "减少",
	"只要", "不要", "扩大", "缩小", "限制", "放宽",
	"换成", "改成", "变成", "更新",
}

// KeywordDetector flags inputs containing any modification keyword.
type KeywordDetector struct {
	keywords []string
}

func NewKeywordDetector() *KeywordDetector {
	return &KeywordDetector{keywords: modificationKeywords}
}

// NewKeywordDetectorWith uses a custom keyword list.
func NewKeywordDetectorWith(keywords []string) *KeywordDetector {
	return &KeywordDetector{keywords: keywords}
}

func (d *KeywordDetector) IsModification(input string) bool {
	for _, kw := range d.keywords {
		if strings.Contains(input, kw) {
			return true
		}
	}
	return false
}
