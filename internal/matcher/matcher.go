package matcher

import (
	"strings"

	"github.com/LJTian/ContentRadar/internal/storage"
)

// scoreSaturation 出现次数达到该值后分值封顶为 1.0
const scoreSaturation = 10

// Result 单个关键词的命中结果，分值在 (0,1] 之间；
// 没有命中的关键词不会出现在结果里
type Result struct {
	Keyword     storage.Keyword
	Occurrences int
	Score       float64
}

// Match 对一段文本做全部给定关键词的独立匹配。
// 匹配是大小写不敏感的非重叠子串计数，关键词之间互不影响；
// 文本为空或没有关键词时返回空结果。
func Match(text string, keywords []storage.Keyword) []Result {
	if text == "" || len(keywords) == 0 {
		return nil
	}
	lower := strings.ToLower(text)

	var results []Result
	for _, kw := range keywords {
		term := storage.NormalizeTerm(kw.Term)
		if term == "" {
			continue
		}
		count := strings.Count(lower, term)
		if count == 0 {
			continue
		}
		results = append(results, Result{
			Keyword:     kw,
			Occurrences: count,
			Score:       Score(count),
		})
	}
	return results
}

// Score 把出现次数折算成 [0,1] 的相关度：次数/10，线性封顶
func Score(occurrences int) float64 {
	if occurrences <= 0 {
		return 0
	}
	s := float64(occurrences) / scoreSaturation
	if s > 1 {
		return 1
	}
	return s
}
