package ranking

import "github.com/smerrill2/social-learning-app-sub001/internal/models"

const (
	DiversityWindow = 5
	MaxConsecutive  = 2
)

// Diversify 限制滑动窗口内同一来源/分类的重复次数。
// 被拒绝的条目不会丢弃，按原相对顺序追加到末尾，输出是输入的一个排列。
func Diversify(items []models.UnifiedItem) []models.UnifiedItem {
	accepted := make([]models.UnifiedItem, 0, len(items))
	var deferred []models.UnifiedItem
	window := make([]models.UnifiedItem, 0, DiversityWindow)

	for _, item := range items {
		sources, categories := 0, 0
		for _, w := range window {
			if w.SourceLabel == item.SourceLabel {
				sources++
			}
			if w.Category == item.Category {
				categories++
			}
		}
		if sources >= MaxConsecutive || categories >= MaxConsecutive {
			deferred = append(deferred, item)
			continue
		}
		accepted = append(accepted, item)
		window = append(window, item)
		if len(window) > DiversityWindow {
			window = window[len(window)-DiversityWindow:]
		}
	}
	return append(accepted, deferred...)
}
